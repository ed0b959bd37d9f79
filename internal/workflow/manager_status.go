package workflow

import (
	"context"
	"sort"

	"deepshield/internal/logging"
	"deepshield/internal/store"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running      bool
	Workers      int
	ActivePosts  []string
	LastError    string
	LastPostID   string
	StatusCounts map[store.Status]int
	Health       []StageHealth
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	summary := StatusSummary{
		Running:    m.running,
		Workers:    m.workers,
		LastPostID: m.lastPostID,
	}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	for _, postID := range m.active {
		summary.ActivePosts = append(summary.ActivePosts, postID)
	}
	m.mu.RUnlock()
	sort.Strings(summary.ActivePosts)

	counts, err := m.store.StatusCounts(ctx)
	if err != nil {
		m.logger.Warn("failed to read status counts", logging.Error(err))
	}
	summary.StatusCounts = counts

	summary.Health = runHealthChecks(ctx, m.health)
	return summary
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastPost(postID string) {
	m.mu.Lock()
	m.lastPostID = postID
	m.mu.Unlock()
}

func (m *Manager) setActive(lane int, postID string) {
	m.mu.Lock()
	if postID == "" {
		delete(m.active, lane)
	} else {
		m.active[lane] = postID
	}
	m.mu.Unlock()
}
