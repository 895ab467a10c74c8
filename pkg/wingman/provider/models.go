// models.go caches the model catalog of the active provider. The cache
// refreshes when the active provider changes and on a cron schedule,
// replacing the interval polling the original settings surface used.
package provider

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// ModelCache holds the last fetched model list for the active provider.
type ModelCache struct {
	mu        sync.RWMutex
	active    Provider
	models    []string
	fetchedAt time.Time

	schedule string
	cron     *cron.Cron
	logger   *slog.Logger
}

// NewModelCache creates a cache refreshing on the given cron schedule
// (e.g. "@hourly"). An empty schedule disables periodic refresh.
func NewModelCache(schedule string, logger *slog.Logger) *ModelCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &ModelCache{
		schedule: schedule,
		logger:   logger.With("component", "models"),
	}
}

// Start begins the periodic refresh. Safe to call with no active
// provider; refreshes become no-ops until SetProvider is called.
func (m *ModelCache) Start(ctx context.Context) error {
	if m.schedule == "" {
		return nil
	}

	m.cron = cron.New()
	_, err := m.cron.AddFunc(m.schedule, func() {
		refreshCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		m.Refresh(refreshCtx)
	})
	if err != nil {
		return err
	}

	m.cron.Start()
	m.logger.Debug("periodic model refresh scheduled", "schedule", m.schedule)
	return nil
}

// Stop halts the periodic refresh.
func (m *ModelCache) Stop() {
	if m.cron != nil {
		m.cron.Stop()
	}
}

// SetProvider swaps the active provider. When the provider actually
// changes the catalog is refreshed immediately.
func (m *ModelCache) SetProvider(ctx context.Context, p Provider) {
	m.mu.Lock()
	changed := m.active == nil || p == nil || m.active.Name() != p.Name()
	m.active = p
	if changed {
		m.models = nil
		m.fetchedAt = time.Time{}
	}
	m.mu.Unlock()

	if changed && p != nil {
		m.Refresh(ctx)
	}
}

// Refresh fetches the catalog from the active provider. Failures keep
// the previous list.
func (m *ModelCache) Refresh(ctx context.Context) {
	m.mu.RLock()
	active := m.active
	m.mu.RUnlock()

	if active == nil {
		return
	}

	models, err := active.ListModels(ctx)
	if err != nil {
		m.logger.Warn("model list refresh failed",
			"provider", active.Name(),
			"error", err,
		)
		return
	}

	m.mu.Lock()
	m.models = models
	m.fetchedAt = time.Now()
	m.mu.Unlock()

	m.logger.Info("model list refreshed",
		"provider", active.Name(),
		"models", len(models),
	)
}

// Models returns a copy of the cached model list.
func (m *ModelCache) Models() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.models))
	copy(out, m.models)
	return out
}

// FetchedAt returns when the cache was last refreshed successfully.
func (m *ModelCache) FetchedAt() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fetchedAt
}
