// Package poller drives repeated status queries for in-flight scrape
// runs until a terminal state is observed or the caller cancels.
package poller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/instalens/instalens/internal/models"
	"github.com/instalens/instalens/internal/scraper"
	"github.com/instalens/instalens/pkg/logging"
)

// StatusQuerier resolves the current state of a run. The engine wires
// a querier that hits the scrape runner and applies the observed
// transition to the job store before returning.
type StatusQuerier interface {
	QueryStatus(ctx context.Context, runID string) (*models.ScrapeRun, error)
}

// QuerierFunc adapts a function to the StatusQuerier interface
type QuerierFunc func(ctx context.Context, runID string) (*models.ScrapeRun, error)

// QueryStatus implements StatusQuerier
func (f QuerierFunc) QueryStatus(ctx context.Context, runID string) (*models.ScrapeRun, error) {
	return f(ctx, runID)
}

// TerminalHook is invoked once per watch when a terminal state is
// first observed, before observers see the terminal update. A later
// watch of the same run fires the hook again, so hooks must be
// idempotent.
type TerminalHook func(run *models.ScrapeRun)

// Update is what observers receive on each poll tick
type Update struct {
	Run       *models.ScrapeRun
	Err       error
	Transient bool
}

// Options control one watch
type Options struct {
	Interval    time.Duration
	MaxFailures int
	Enabled     bool
}

// DefaultOptions returns the standard watch settings
func DefaultOptions() Options {
	return Options{
		Interval:    3 * time.Second,
		MaxFailures: 5,
		Enabled:     true,
	}
}

// Poller watches scrape runs. At most one watch should be active per
// run; the job store's single-in-flight-run invariant keeps that true
// for watches started through the engine.
type Poller struct {
	querier    StatusQuerier
	onTerminal TerminalHook
	defaults   Options
	logger     *zap.Logger

	mu       sync.Mutex
	signaled map[string]bool
}

// New creates a poller. onTerminal may be nil.
func New(querier StatusQuerier, onTerminal TerminalHook, defaults Options) *Poller {
	if defaults.Interval <= 0 {
		defaults.Interval = 3 * time.Second
	}
	if defaults.MaxFailures <= 0 {
		defaults.MaxFailures = 5
	}
	return &Poller{
		querier:    querier,
		onTerminal: onTerminal,
		defaults:   defaults,
		logger:     logging.GetLogger().With(zap.String("component", "poller")),
		signaled:   make(map[string]bool),
	}
}

// Start begins watching a run. An empty runID or a disabled watch is a
// no-op, not an error: the returned channel is nil. The channel closes
// when the run reaches a terminal state, the failure budget is spent,
// or ctx is cancelled.
func (p *Poller) Start(ctx context.Context, runID string, opts *Options) <-chan Update {
	options := p.defaults
	if opts != nil {
		options = *opts
		if options.Interval <= 0 {
			options.Interval = p.defaults.Interval
		}
		if options.MaxFailures <= 0 {
			options.MaxFailures = p.defaults.MaxFailures
		}
	}
	if runID == "" || !options.Enabled {
		return nil
	}

	updates := make(chan Update, 1)
	go p.watch(ctx, runID, options, updates)
	return updates
}

// watch is the poll loop: an immediate first query, then one query per
// interval tick until termination
func (p *Poller) watch(ctx context.Context, runID string, options Options, updates chan Update) {
	defer close(updates)
	defer p.forget(runID)

	ticker := time.NewTicker(options.Interval)
	defer ticker.Stop()

	failures := 0
	for {
		done := p.poll(ctx, runID, options, updates, &failures)
		if done {
			return
		}

		select {
		case <-ctx.Done():
			// Cancellation stops the schedule without touching run
			// state; the job continues server-side
			p.logger.Debug("Watch cancelled", zap.String("run_id", runID))
			return
		case <-ticker.C:
		}
	}
}

// poll performs one status query. It returns true when the watch is
// finished.
func (p *Poller) poll(ctx context.Context, runID string, options Options, updates chan Update, failures *int) bool {
	run, err := p.querier.QueryStatus(ctx, runID)
	if err != nil {
		if ctx.Err() != nil {
			return true
		}
		if scraper.IsTransient(err) {
			*failures++
			p.logger.Warn("Transient status query failure",
				zap.String("run_id", runID),
				zap.Int("consecutive_failures", *failures),
				zap.Error(err))
			if *failures < options.MaxFailures {
				// Soft error: surface it and keep the schedule
				publish(updates, Update{Err: err, Transient: true})
				return false
			}
			err = fmt.Errorf("abandoning watch after %d consecutive failures: %w",
				*failures, err)
		}
		p.logger.Error("Status query failed hard",
			zap.String("run_id", runID), zap.Error(err))
		publish(updates, Update{Err: err})
		return true
	}

	*failures = 0

	if run.IsTerminal() {
		// Signal invalidation before observers can see the terminal
		// update, so no reader observes the terminal state with a
		// stale cache
		p.signalTerminal(run)
		publish(updates, Update{Run: run})
		p.logger.Info("Run reached terminal state",
			zap.String("run_id", runID),
			zap.String("status", run.Status))
		return true
	}

	publish(updates, Update{Run: run})
	return false
}

// signalTerminal invokes the terminal hook once per watch. The dedupe
// entry guards overlapping watches of the same run; forget evicts it
// when the watch ends, so the set never grows with process lifetime.
func (p *Poller) signalTerminal(run *models.ScrapeRun) {
	p.mu.Lock()
	already := p.signaled[run.ID]
	p.signaled[run.ID] = true
	p.mu.Unlock()

	if already || p.onTerminal == nil {
		return
	}
	p.onTerminal(run)
}

// forget evicts a run's dedupe entry once its watch is over
func (p *Poller) forget(runID string) {
	p.mu.Lock()
	delete(p.signaled, runID)
	p.mu.Unlock()
}

// publish delivers an update without ever blocking the schedule: a
// slow observer sees the latest state, not a backlog
func publish(updates chan Update, update Update) {
	for {
		select {
		case updates <- update:
			return
		default:
			select {
			case <-updates:
			default:
			}
		}
	}
}
