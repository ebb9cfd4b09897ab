package core

import (
	"context"
	"fmt"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// Dispatcher materializes delivery jobs for due content and rolls the
// per-job outcomes back up into the aggregate content status. It makes no
// platform calls; the delivery worker owns those.
//
// Multiple dispatcher instances may run against the same datastore: job
// creation rides on the (content_id, platform) unique constraint, so a
// concurrent insert losing the race is treated as success.
type Dispatcher struct {
	contents ContentStore
	jobs     DeliveryJobStore
	enqueuer JobEnqueuer
	metrics  MetricsRecorder
	logger   Logger
	config   DispatcherConfig
	now      func() time.Time
}

func NewDispatcher(
	contents ContentStore,
	jobs DeliveryJobStore,
	config DispatcherConfig,
	options ...DispatcherOption,
) (*Dispatcher, error) {
	if contents == nil {
		return nil, fmt.Errorf("core: content store is required")
	}
	if jobs == nil {
		return nil, fmt.Errorf("core: delivery job store is required")
	}
	defaults := DefaultConfig().Dispatcher
	if config.TickInterval <= 0 {
		config.TickInterval = defaults.TickInterval
	}
	if config.RollupInterval <= 0 {
		config.RollupInterval = defaults.RollupInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}

	dispatcher := &Dispatcher{
		contents: contents,
		jobs:     jobs,
		metrics:  NopMetricsRecorder{},
		logger:   glog.Ensure(nil),
		config:   config,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, option := range options {
		if option != nil {
			option(dispatcher)
		}
	}
	return dispatcher, nil
}

type DispatcherOption func(*Dispatcher)

func WithDispatcherLogger(logger Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

func WithDispatcherEnqueuer(enqueuer JobEnqueuer) DispatcherOption {
	return func(d *Dispatcher) {
		d.enqueuer = enqueuer
	}
}

func WithDispatcherMetrics(recorder MetricsRecorder) DispatcherOption {
	return func(d *Dispatcher) {
		if recorder != nil {
			d.metrics = recorder
		}
	}
}

func WithDispatcherClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

// Tick finds due content and ensures one pending delivery job exists per
// target platform. Existing jobs are counted, not recreated.
func (d *Dispatcher) Tick(ctx context.Context) (DispatchStats, error) {
	if d == nil || d.contents == nil || d.jobs == nil {
		return DispatchStats{}, fmt.Errorf("core: dispatcher is not configured")
	}

	now := d.now()
	due, err := d.contents.FindDue(ctx, now, d.config.BatchSize)
	if err != nil {
		return DispatchStats{}, fmt.Errorf("core: find due content: %w", err)
	}

	stats := DispatchStats{Due: len(due)}
	var tickErr error
	for _, content := range due {
		for _, platform := range content.Platforms {
			job, created, ensureErr := d.jobs.EnsureJob(ctx, content.ID, platform)
			if ensureErr != nil {
				tickErr = joinErrors(tickErr, fmt.Errorf(
					"core: ensure job for content %d platform %s: %w",
					content.ID, platform, ensureErr,
				))
				continue
			}
			if !created {
				stats.Existing++
				continue
			}
			stats.Created++
			d.logger.Info("delivery job created",
				"content_id", content.ID,
				"platform", string(platform),
				"job_id", job.ID,
			)
			if d.enqueuer != nil {
				if enqErr := d.enqueuer.Enqueue(ctx, &JobExecutionMessage{
					JobID: JobIDDeliver,
					Parameters: map[string]any{
						"delivery_job_id": job.ID,
						"content_id":      content.ID,
						"platform":        string(platform),
					},
					IdempotencyKey: DeliveryKey(content.ID, platform, content.ScheduledFor),
				}); enqErr != nil {
					// Queue wake-up is best effort; the polling claim loop
					// still picks the job up.
					d.logger.Error("enqueue delivery job", "job_id", job.ID, "error", enqErr)
				}
			}
		}
	}

	d.metrics.IncCounter(ctx, "publisher.dispatch.created", int64(stats.Created), nil)
	return stats, tickErr
}

// Rollup recomputes aggregate content status from delivery jobs for
// content still in a non-terminal state.
func (d *Dispatcher) Rollup(ctx context.Context) (int, error) {
	if d == nil || d.contents == nil || d.jobs == nil {
		return 0, fmt.Errorf("core: dispatcher is not configured")
	}

	candidates, err := d.contents.ListForRollup(ctx, d.config.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("core: list rollup candidates: %w", err)
	}

	updated := 0
	var rollupErr error
	for _, content := range candidates {
		jobs, listErr := d.jobs.ListForContent(ctx, content.ID)
		if listErr != nil {
			rollupErr = joinErrors(rollupErr, listErr)
			continue
		}
		next := RollupContentStatus(content.Status, jobs)
		if next == content.Status {
			continue
		}
		if updateErr := d.contents.UpdateStatus(ctx, content.ID, next); updateErr != nil {
			rollupErr = joinErrors(rollupErr, updateErr)
			continue
		}
		updated++
		d.logger.Info("content status rolled up",
			"content_id", content.ID,
			"status", string(next),
		)
	}
	return updated, rollupErr
}

// Run loops Tick and Rollup on their configured cadences until the context
// is canceled.
func (d *Dispatcher) Run(ctx context.Context) error {
	if d == nil {
		return fmt.Errorf("core: dispatcher is nil")
	}

	lastRollup := d.now()
	for {
		if _, err := d.Tick(ctx); err != nil {
			d.logger.Error("dispatch tick", "error", err)
		}
		if d.now().Sub(lastRollup) >= d.config.RollupInterval {
			if _, err := d.Rollup(ctx); err != nil {
				d.logger.Error("content rollup", "error", err)
			}
			lastRollup = d.now()
		}
		if err := waitWithContext(ctx, d.config.TickInterval); err != nil {
			return err
		}
	}
}

func waitWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func joinErrors(existing error, next error) error {
	if existing == nil {
		return next
	}
	if next == nil {
		return existing
	}
	return fmt.Errorf("%w; %v", existing, next)
}
