package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"deepshield/internal/logging"
	"deepshield/internal/store"
)

// HeartbeatMonitor refreshes claim heartbeats and releases stale claims.
type HeartbeatMonitor struct {
	store             *store.Store
	logger            *slog.Logger
	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration
}

// NewHeartbeatMonitor creates a new monitor.
func NewHeartbeatMonitor(st *store.Store, logger *slog.Logger, interval, timeout time.Duration) *HeartbeatMonitor {
	return &HeartbeatMonitor{
		store:             st,
		logger:            logger,
		heartbeatInterval: interval,
		heartbeatTimeout:  timeout,
	}
}

// ReclaimStale releases claims whose heartbeat is older than the timeout.
func (h *HeartbeatMonitor) ReclaimStale(ctx context.Context, logger *slog.Logger) error {
	if h.heartbeatTimeout <= 0 {
		return nil
	}
	cutoff := time.Now().Add(-h.heartbeatTimeout)
	reclaimed, err := h.store.ReclaimStaleClaims(ctx, cutoff)
	if err != nil {
		return err
	}
	if reclaimed > 0 {
		logger.Info("reclaimed stale analysis claims",
			logging.Int64("count", reclaimed),
			logging.String(logging.FieldEventType, "claims_reclaimed"),
		)
	}
	return nil
}

// StartLoop refreshes the heartbeat of claim until ctx is cancelled. When the
// claim is no longer current, lost is called once and the loop exits.
func (h *HeartbeatMonitor) StartLoop(ctx context.Context, wg *sync.WaitGroup, claim store.Claim, lost func()) {
	defer wg.Done()
	if h.heartbeatInterval <= 0 {
		return
	}
	ticker := time.NewTicker(h.heartbeatInterval)
	defer ticker.Stop()

	logger := logging.WithContext(ctx, h.logger.With(logging.String(logging.FieldComponent, "workflow-heartbeat")))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			current, err := h.store.UpdateHeartbeat(ctx, claim)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					logger.Debug("heartbeat update cancelled")
				} else {
					logger.Warn("heartbeat update failed", logging.Error(err))
				}
				continue
			}
			if !current {
				logger.Warn("analysis claim lost; abandoning run",
					logging.String(logging.FieldEventType, "claim_lost"),
				)
				if lost != nil {
					lost()
				}
				return
			}
		}
	}
}
