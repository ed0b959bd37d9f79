package workflow

import (
	"context"
	"sync"
	"time"
)

// healthCheckTimeout bounds one Status call's collaborator probes.
const healthCheckTimeout = 3 * time.Second

// StageHealth is the readiness of one analysis collaborator (extractor,
// detector, secondary detector).
type StageHealth struct {
	Name   string
	Ready  bool
	Detail string
}

// HealthCheck reports the readiness of one collaborator.
type HealthCheck func(ctx context.Context) StageHealth

// HealthyStage reports name as ready.
func HealthyStage(name string) StageHealth {
	return StageHealth{Name: name, Ready: true}
}

// UnhealthyStage reports name as unavailable with the reason in detail.
func UnhealthyStage(name, detail string) StageHealth {
	return StageHealth{Name: name, Detail: detail}
}

// runHealthChecks probes every collaborator concurrently and keeps the
// registration order in the result.
func runHealthChecks(ctx context.Context, checks []HealthCheck) []StageHealth {
	if len(checks) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	results := make([]StageHealth, len(checks))
	var wg sync.WaitGroup
	for i, check := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = check(ctx)
		}()
	}
	wg.Wait()
	return results
}
