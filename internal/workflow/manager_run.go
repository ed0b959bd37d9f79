package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"deepshield/internal/logging"
)

const errorRetryInterval = 2 * time.Second

// Start launches the worker lanes.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if m.primary == nil {
		m.mu.Unlock()
		return errors.New("analysis pipeline not configured")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(m.workers)
	m.mu.Unlock()

	for lane := range m.workers {
		go m.runLane(runCtx, lane)
	}
	m.logger.Info("analysis workers started", logging.Int("workers", m.workers))
	return nil
}

// Stop cancels in-flight runs, releases their claims and waits for the lanes to exit.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.logger.Info("analysis workers stopped")
}

func (m *Manager) laneLogger(lane int) *slog.Logger {
	return m.logger.With(
		logging.String(logging.FieldComponent, fmt.Sprintf("workflow-lane-%d", lane)),
		logging.String(logging.FieldWorker, laneName(lane)),
	)
}

func laneName(lane int) string {
	return fmt.Sprintf("lane-%d", lane)
}

func (m *Manager) runLane(ctx context.Context, lane int) {
	defer m.wg.Done()
	logger := m.laneLogger(lane)

	for {
		if ctx.Err() != nil {
			return
		}

		if lane == 0 {
			if err := m.heartbeat.ReclaimStale(ctx, logger); err != nil && ctx.Err() == nil {
				logging.WarnWithContext(logger, "reclaim stale claims failed", "claims_reclaim_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "crashed analyses may stay stuck in processing"),
				)
			}
		}

		claim, err := m.store.ClaimNextAnalysis(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.setLastError(err)
			logging.ErrorWithContext(logger, "failed to claim next analysis", "claim_failed", logging.Error(err))
			m.sleep(ctx, errorRetryInterval)
			continue
		}
		if claim == nil {
			m.waitForWork(ctx)
			continue
		}

		m.process(ctx, lane, logger, *claim)
	}
}

func (m *Manager) waitForWork(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-m.wake:
	case <-time.After(m.pollInterval):
	}
}

func (m *Manager) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
