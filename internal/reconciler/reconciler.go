// Package reconciler sweeps non-terminal scrape runs and re-queries
// their status. Watches started by the API live in the server process,
// so runs orphaned by a restart or crash would otherwise stay pending
// or running forever.
package reconciler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/instalens/instalens/internal/models"
	"github.com/instalens/instalens/internal/scraper"
	"github.com/instalens/instalens/internal/store"
	"github.com/instalens/instalens/pkg/logging"
)

// StatusApplier resolves a run's current state, applying any observed
// transition before returning. The engine's ScrapeStatus satisfies it.
type StatusApplier interface {
	ScrapeStatus(ctx context.Context, runID string) (*models.ScrapeRun, error)
}

// Reconciler drives orphaned runs to a terminal state
type Reconciler struct {
	store    store.Store
	applier  StatusApplier
	interval time.Duration
	logger   *zap.Logger
}

// New creates a reconciler sweeping at the given interval
func New(st store.Store, applier StatusApplier, interval time.Duration) *Reconciler {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Reconciler{
		store:    st,
		applier:  applier,
		interval: interval,
		logger:   logging.GetLogger().With(zap.String("component", "reconciler")),
	}
}

// Run sweeps until ctx is cancelled
func (r *Reconciler) Run(ctx context.Context) error {
	r.logger.Info("Starting run reconciler", zap.Duration("interval", r.interval))

	for {
		if err := r.Sweep(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.logger.Error("Sweep failed", zap.Error(err))
		}

		if !r.wait(ctx) {
			return ctx.Err()
		}
	}
}

// Sweep queries every non-terminal run once. Transient runner failures
// leave the run for the next sweep; a run the runner no longer knows
// is left alone too, its own watch or a manual status read settles it.
func (r *Reconciler) Sweep(ctx context.Context) error {
	runs, err := r.store.ListActiveRuns(ctx)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		return nil
	}

	r.logger.Debug("Sweeping active runs", zap.Int("count", len(runs)))

	for _, run := range runs {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		observed, err := r.applier.ScrapeStatus(ctx, run.ID)
		if err != nil {
			if scraper.IsTransient(err) {
				r.logger.Warn("Runner unavailable during sweep",
					zap.String("run_id", run.ID), zap.Error(err))
				continue
			}
			r.logger.Error("Failed to reconcile run",
				zap.String("run_id", run.ID), zap.Error(err))
			continue
		}

		if observed.IsTerminal() {
			r.logger.Info("Reconciled orphaned run",
				zap.String("run_id", run.ID),
				zap.String("status", observed.Status))
		}
	}
	return nil
}

// wait sleeps one interval, returning false when ctx is cancelled
func (r *Reconciler) wait(ctx context.Context) bool {
	timer := time.NewTimer(r.interval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
