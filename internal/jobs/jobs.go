// Package jobs runs the periodic maintenance sweeps: marking missed appointments
// as no-shows and reporting low or expiring inventory.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/openlis/lis-api/internal/models"
	"github.com/openlis/lis-api/pkg/logger"
	"github.com/openlis/lis-api/pkg/metrics"
	"github.com/robfig/cron/v3"
)

const (
	JobNoShow    = "no_show_sweep"
	JobInventory = "inventory_sweep"
)

// NoShowMarker is satisfied by appointments.Service.
type NoShowMarker interface {
	MarkNoShows(ctx context.Context, now time.Time, grace time.Duration) (int64, error)
}

// InventoryAlerter is satisfied by inventory.Service.
type InventoryAlerter interface {
	Alerts(ctx context.Context, now time.Time, days int) (low, expiring []models.InventoryItem, err error)
}

type Options struct {
	NoShowGrace      time.Duration
	ExpiryWindowDays int
	Timeout          time.Duration
}

// Runner executes individual sweeps. It is used by the cron Scheduler and by the
// admin CLI for one-off runs.
type Runner struct {
	noShows   NoShowMarker
	inventory InventoryAlerter
	opts      Options
	now       func() time.Time
}

func NewRunner(noShows NoShowMarker, inventory InventoryAlerter, opts Options) *Runner {
	if opts.Timeout <= 0 {
		opts.Timeout = time.Minute
	}
	return &Runner{noShows: noShows, inventory: inventory, opts: opts, now: time.Now}
}

func (r *Runner) record(job string, start time.Time, err error) error {
	outcome := "ok"
	ev := logger.L().Info()
	if err != nil {
		outcome = "error"
		ev = logger.L().Error().Err(err)
	}
	metrics.JobRuns.WithLabelValues(job, outcome).Inc()
	ev.Str("job", job).Dur("took", time.Since(start)).Msg("job finished")
	return err
}

// NoShowSweep marks scheduled appointments whose end plus the grace period has passed.
func (r *Runner) NoShowSweep(ctx context.Context) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()
	_, err := r.noShows.MarkNoShows(ctx, r.now().UTC(), r.opts.NoShowGrace)
	return r.record(JobNoShow, start, err)
}

// InventorySweep logs one warning per low-stock or soon-expiring item.
func (r *Runner) InventorySweep(ctx context.Context) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()
	low, expiring, err := r.inventory.Alerts(ctx, r.now().UTC(), r.opts.ExpiryWindowDays)
	if err == nil {
		for _, it := range low {
			logger.L().Warn().Str("sku", it.SKU).Int("quantity", it.Quantity).Int("reorderLevel", it.ReorderLevel).Msg("inventory low stock")
		}
		for _, it := range expiring {
			logger.L().Warn().Str("sku", it.SKU).Time("expiresAt", *it.ExpiresAt).Msg("inventory expiring")
		}
	}
	return r.record(JobInventory, start, err)
}

// RunOnce runs the named job, or every job for "all".
func (r *Runner) RunOnce(ctx context.Context, name string) error {
	switch name {
	case JobNoShow:
		return r.NoShowSweep(ctx)
	case JobInventory:
		return r.InventorySweep(ctx)
	case "all":
		errNoShow := r.NoShowSweep(ctx)
		if err := r.InventorySweep(ctx); err != nil {
			return err
		}
		return errNoShow
	}
	return fmt.Errorf("unknown job %q (want %s, %s or all)", name, JobNoShow, JobInventory)
}

// Scheduler runs the Runner's sweeps on cron specs, evaluated in UTC.
type Scheduler struct {
	cron *cron.Cron
}

func NewScheduler(r *Runner, noShowSpec, inventorySpec string) (*Scheduler, error) {
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cronLogger{}),
		cron.WithChain(cron.Recover(cronLogger{}), cron.SkipIfStillRunning(cronLogger{})),
	)
	jobs := []struct {
		spec string
		run  func(context.Context) error
	}{
		{noShowSpec, r.NoShowSweep},
		{inventorySpec, r.InventorySweep},
	}
	for _, j := range jobs {
		if _, err := c.AddFunc(j.spec, func() { _ = j.run(context.Background()) }); err != nil {
			return nil, fmt.Errorf("cron spec %q: %w", j.spec, err)
		}
	}
	return &Scheduler{cron: c}, nil
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop stops scheduling and returns a context that is done once running jobs finish.
func (s *Scheduler) Stop() context.Context { return s.cron.Stop() }

// Entries is the number of scheduled jobs.
func (s *Scheduler) Entries() int { return len(s.cron.Entries()) }

// cronLogger routes cron's own messages through zerolog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.L().Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.L().Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
