package costs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Refresher periodically refreshes cached dynamic prices so that
// normalization never waits on a provider query.
type Refresher struct {
	schedule string
	cron     *cron.Cron
	mu       sync.Mutex
	prices   []*CachedPrice
	logger   *slog.Logger
	running  bool
}

// NewRefresher creates a refresher running on a standard cron schedule.
func NewRefresher(schedule string, logger *slog.Logger) *Refresher {
	if logger == nil {
		logger = slog.Default().With("component", "metering.refresher")
	}
	return &Refresher{
		schedule: schedule,
		cron:     cron.New(),
		logger:   logger,
	}
}

// Add registers prices to refresh.
func (r *Refresher) Add(prices ...*CachedPrice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prices = append(r.prices, prices...)
}

// Len returns the number of registered prices.
func (r *Refresher) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.prices)
}

// RefreshAll refreshes every registered price once. Failing prices keep
// their previous value; all failures are returned joined.
func (r *Refresher) RefreshAll(ctx context.Context) error {
	r.mu.Lock()
	prices := append([]*CachedPrice(nil), r.prices...)
	r.mu.Unlock()

	var errs []error
	for _, p := range prices {
		if err := p.Refresh(ctx); err != nil {
			r.logger.Warn("price refresh failed", "price", p.Name(), "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Start performs an initial refresh and schedules the rest. An empty
// schedule disables scheduling.
func (r *Refresher) Start(ctx context.Context) error {
	if r.schedule == "" {
		r.logger.Info("price refresh schedule not configured, skipping refresher")
		return nil
	}
	if _, err := cron.ParseStandard(r.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", r.schedule, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return nil
	}

	if _, err := r.cron.AddFunc(r.schedule, func() {
		if err := r.RefreshAll(ctx); err != nil {
			r.logger.Error("scheduled price refresh incomplete", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule price refresh: %w", err)
	}

	go func() {
		if err := r.RefreshAll(ctx); err != nil {
			r.logger.Warn("initial price refresh incomplete", "error", err)
		}
	}()

	r.cron.Start()
	r.running = true
	r.logger.Info("price refresher started", "schedule", r.schedule, "prices", len(r.prices))

	go func() {
		<-ctx.Done()
		r.Stop()
	}()
	return nil
}

// Stop stops the schedule and waits for a running refresh to finish.
func (r *Refresher) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.mu.Unlock()

	// A running job takes r.mu in RefreshAll, so wait without holding it.
	<-r.cron.Stop().Done()
	r.logger.Info("price refresher stopped")
}

// NextRun returns the next scheduled refresh.
func (r *Refresher) NextRun() (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := r.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}, false
	}
	return entries[0].Next, true
}
