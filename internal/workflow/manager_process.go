package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"deepshield/internal/logging"
	"deepshield/internal/services"
	"deepshield/internal/store"
)

const releaseTimeout = 5 * time.Second

func (m *Manager) process(ctx context.Context, lane int, laneLogger *slog.Logger, claim store.Claim) {
	runCtx := services.WithPostID(ctx, claim.PostID)
	runCtx = services.WithWorker(runCtx, laneName(lane))
	runCtx = services.WithRequestID(runCtx, uuid.NewString())
	logger := logging.WithContext(runCtx, laneLogger)

	m.setActive(lane, claim.PostID)
	defer m.setActive(lane, "")

	started := time.Now()
	logger.Info("analysis started",
		logging.String(logging.FieldEventType, "analysis_started"),
		logging.Int("attempt", claim.Attempt),
		logging.String("media_path", claim.MediaPath),
	)

	outcome := m.runWithHeartbeat(runCtx, claim)
	analysis, runErr := outcome.analysis, outcome.err

	switch {
	case outcome.lost:
		logging.WarnWithContext(logger, "analysis result discarded", "analysis_discarded",
			logging.String(logging.FieldImpact, "another run owns the post"),
		)
	case runErr != nil && ctx.Err() != nil:
		m.release(logger, claim)
	case runErr != nil:
		m.fail(runCtx, logger, claim, runErr, time.Since(started))
	default:
		m.complete(runCtx, logger, claim, analysis, time.Since(started))
	}
}

type runOutcome struct {
	analysis store.Analysis
	err      error
	// lost reports that the claim was taken over while the run was in flight.
	lost bool
}

// runWithHeartbeat runs the primary pipeline under the analysis deadline.
func (m *Manager) runWithHeartbeat(ctx context.Context, claim store.Claim) runOutcome {
	runCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	var lost atomic.Bool
	hbCtx, hbCancel := context.WithCancel(runCtx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.heartbeat.StartLoop(hbCtx, &hbWG, claim, func() {
		lost.Store(true)
		cancel()
	})

	analysis, err := m.primary.Run(runCtx, claim.MediaPath)
	if err != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, services.ErrTimeout) {
		err = services.Wrap(services.ErrTimeout, "analysis", "run", "analysis deadline exceeded", err)
	}
	hbCancel()
	hbWG.Wait()
	return runOutcome{analysis: analysis, err: err, lost: lost.Load()}
}

func (m *Manager) complete(ctx context.Context, logger *slog.Logger, claim store.Claim, analysis store.Analysis, elapsed time.Duration) {
	ok, err := m.store.CompleteAnalysis(ctx, claim, analysis)
	if err != nil {
		m.setLastError(err)
		logging.ErrorWithContext(logger, "failed to persist analysis", "analysis_persist_failed", logging.Error(err))
		m.release(logger, claim)
		return
	}
	if !ok {
		logging.WarnWithContext(logger, "analysis result discarded", "analysis_discarded",
			logging.String(logging.FieldImpact, "claim no longer current"),
		)
		return
	}
	m.setLastPost(claim.PostID)
	logger.Info("analysis completed",
		logging.String(logging.FieldEventType, "analysis_completed"),
		logging.String("verdict", analysis.Summary.Status),
		logging.Int("frames", analysis.Summary.TotalFrames),
		logging.Int("fake_frames", analysis.Summary.FakeFrames),
		logging.Duration("elapsed", elapsed),
	)
	m.notifyCompleted(ctx, claim.PostID, analysis)
}

func (m *Manager) fail(ctx context.Context, logger *slog.Logger, claim store.Claim, runErr error, elapsed time.Duration) {
	message := m.failureMessage(runErr)
	ok, err := m.store.FailAnalysis(ctx, claim, message)
	if err != nil {
		m.setLastError(err)
		logging.ErrorWithContext(logger, "failed to persist analysis failure", "analysis_persist_failed", logging.Error(err))
		m.release(logger, claim)
		return
	}
	if !ok {
		logging.WarnWithContext(logger, "analysis failure discarded", "analysis_discarded",
			logging.String(logging.FieldImpact, "claim no longer current"),
		)
		return
	}
	m.setLastError(runErr)
	m.setLastPost(claim.PostID)
	logging.ErrorWithContext(logger, "analysis failed", "analysis_failed",
		logging.Error(runErr),
		logging.String("error_message", message),
		logging.Duration("elapsed", elapsed),
	)
	m.notifyFailed(ctx, claim.PostID, message)
}

func (m *Manager) release(logger *slog.Logger, claim store.Claim) {
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	if err := m.store.ReleaseClaim(ctx, claim); err != nil {
		logging.WarnWithContext(logger, "failed to release analysis claim", "claim_release_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "post resumes after the heartbeat timeout"),
		)
		return
	}
	logger.Info("analysis interrupted; claim released", logging.String(logging.FieldEventType, "analysis_released"))
}

func (m *Manager) failureMessage(err error) string {
	if errors.Is(err, services.ErrTimeout) {
		return fmt.Sprintf("analysis timed out after %s", m.timeout)
	}
	if msg := services.Message(err); msg != "" {
		return msg
	}
	return "analysis failed"
}
