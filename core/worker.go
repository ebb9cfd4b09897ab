package core

import (
	"context"
	"fmt"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

const (
	JobIDDeliver = "publisher.delivery.publish"
	JobIDRollup  = "publisher.content.rollup"
)

// DeliveryWorker drains eligible delivery jobs: claim, resolve credentials,
// publish through the platform adapter, persist the outcome. Any number of
// workers may run concurrently; the store's conditional-update claim is the
// only mutual-exclusion mechanism, so a lost race simply claims nothing.
type DeliveryWorker struct {
	contents    ContentStore
	jobs        DeliveryJobStore
	registry    *PublisherRegistry
	credentials CredentialProvider
	policy      RetryPolicy
	throttle    PublishThrottle
	metrics     MetricsRecorder
	logger      Logger
	config      WorkerConfig
	now         func() time.Time
}

func NewDeliveryWorker(
	contents ContentStore,
	jobs DeliveryJobStore,
	registry *PublisherRegistry,
	credentials CredentialProvider,
	policy RetryPolicy,
	config WorkerConfig,
	options ...WorkerOption,
) (*DeliveryWorker, error) {
	if contents == nil {
		return nil, fmt.Errorf("core: content store is required")
	}
	if jobs == nil {
		return nil, fmt.Errorf("core: delivery job store is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("core: publisher registry is required")
	}
	if credentials == nil {
		return nil, fmt.Errorf("core: credential provider is required")
	}
	defaults := DefaultConfig().Worker
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.PublishTimeout <= 0 {
		config.PublishTimeout = defaults.PublishTimeout
	}

	worker := &DeliveryWorker{
		contents:    contents,
		jobs:        jobs,
		registry:    registry,
		credentials: credentials,
		policy:      policy,
		metrics:     NopMetricsRecorder{},
		logger:      glog.Ensure(nil),
		config:      config,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, option := range options {
		if option != nil {
			option(worker)
		}
	}
	return worker, nil
}

type WorkerOption func(*DeliveryWorker)

func WithWorkerLogger(logger Logger) WorkerOption {
	return func(w *DeliveryWorker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

func WithWorkerMetrics(recorder MetricsRecorder) WorkerOption {
	return func(w *DeliveryWorker) {
		if recorder != nil {
			w.metrics = recorder
		}
	}
}

// WithWorkerThrottle installs a per-platform gate checked before each
// publish attempt. Throttled claims are rescheduled without consuming
// retry budget.
func WithWorkerThrottle(throttle PublishThrottle) WorkerOption {
	return func(w *DeliveryWorker) {
		if throttle != nil {
			w.throttle = throttle
		}
	}
}

func WithWorkerClock(now func() time.Time) WorkerOption {
	return func(w *DeliveryWorker) {
		if now != nil {
			w.now = now
		}
	}
}

// RunOnce claims and drives at most one delivery attempt. It reports
// whether a job was claimed so callers can drain eagerly while work
// remains and fall back to the poll interval when idle.
func (w *DeliveryWorker) RunOnce(ctx context.Context) (bool, WorkerStats, error) {
	if w == nil || w.jobs == nil {
		return false, WorkerStats{}, fmt.Errorf("core: delivery worker is not configured")
	}

	job, claimed, err := w.jobs.Claim(ctx, w.now())
	if err != nil {
		return false, WorkerStats{}, fmt.Errorf("core: claim delivery job: %w", err)
	}
	if !claimed {
		return false, WorkerStats{}, nil
	}

	stats := WorkerStats{Claimed: 1}
	outcome, err := w.attempt(ctx, job)
	switch outcome {
	case DeliveryStatusPublished:
		stats.Published = 1
	case DeliveryStatusRetrying:
		stats.Retried = 1
	case DeliveryStatusFailed:
		stats.Failed = 1
	}
	return true, stats, err
}

// attempt is the single linear path for one delivery attempt: load content,
// resolve credentials, publish, persist. Suspension points sit only at the
// store and HTTP boundaries.
func (w *DeliveryWorker) attempt(ctx context.Context, job DeliveryJob) (DeliveryStatus, error) {
	content, err := w.contents.Get(ctx, job.ContentID)
	if err != nil {
		return w.settleFailure(ctx, job, fmt.Errorf("core: load content %d: %w", job.ContentID, err))
	}

	publisher, ok := w.registry.Get(job.Platform)
	if !ok {
		// Registry membership is checked at startup; a miss here means the
		// row predates the current deployment's platform set.
		return w.settlePermanent(ctx, job, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, job.Platform))
	}

	if w.throttle != nil {
		if err := w.throttle.Acquire(ctx, job.Platform); err != nil {
			return w.settleThrottled(ctx, job, err)
		}
	}

	creds, err := w.credentials.Resolve(ctx, content.UserID, job.Platform)
	if err != nil {
		return w.settleFailure(ctx, job, TransientError("core: resolve credentials", err))
	}

	publishCtx, cancel := context.WithTimeout(ctx, w.config.PublishTimeout)
	defer cancel()

	result, err := publisher.Publish(publishCtx, PublishRequest{
		Content:        content,
		Platform:       job.Platform,
		Credentials:    creds,
		IdempotencyKey: DeliveryKey(content.ID, job.Platform, content.ScheduledFor),
	})
	w.settleThrottle(ctx, job.Platform, err)
	if err != nil {
		return w.settleFailure(ctx, job, err)
	}

	publishedAt := w.now()
	if err := w.jobs.MarkPublished(ctx, job.ID, result.ExternalID, publishedAt); err != nil {
		return DeliveryStatusPublishing, fmt.Errorf("core: mark published: %w", err)
	}
	w.metrics.IncCounter(ctx, "publisher.delivery.published", 1, map[string]string{
		"platform": string(job.Platform),
	})
	w.logger.Info("delivery published",
		"job_id", job.ID,
		"content_id", job.ContentID,
		"platform", string(job.Platform),
		"external_id", result.ExternalID,
	)
	return DeliveryStatusPublished, nil
}

func (w *DeliveryWorker) settleThrottle(ctx context.Context, platform Platform, cause error) {
	if w.throttle == nil {
		return
	}
	if err := w.throttle.Settle(ctx, platform, cause); err != nil {
		w.logger.Warn("throttle settle failed", "platform", string(platform), "error", err)
	}
}

// settleThrottled reschedules a claim that never reached the platform. The
// retry count stays untouched: a throttled claim is not an attempt.
func (w *DeliveryWorker) settleThrottled(ctx context.Context, job DeliveryJob, cause error) (DeliveryStatus, error) {
	delay, ok := RetryAfterHint(cause)
	if !ok || delay <= 0 {
		delay = w.policy.NextAttempt(job.RetryCount).Delay
	}
	nextRetryAt := w.now().Add(delay)
	if err := w.jobs.MarkRetrying(ctx, job.ID, job.RetryCount, nextRetryAt, cause); err != nil {
		return DeliveryStatusPublishing, joinErrors(cause, fmt.Errorf("core: mark retrying: %w", err))
	}
	w.metrics.IncCounter(ctx, "publisher.delivery.throttled", 1, map[string]string{
		"platform": string(job.Platform),
	})
	w.logger.Info("delivery deferred by platform throttle",
		"job_id", job.ID,
		"platform", string(job.Platform),
		"next_retry_at", nextRetryAt,
	)
	return DeliveryStatusRetrying, nil
}

func (w *DeliveryWorker) settleFailure(ctx context.Context, job DeliveryJob, cause error) (DeliveryStatus, error) {
	if !IsTransient(cause) {
		return w.settlePermanent(ctx, job, cause)
	}

	decision := w.policy.NextAttempt(job.RetryCount)
	if decision.Final {
		return w.settlePermanent(ctx, job, cause)
	}

	nextRetryAt := w.now().Add(decision.Delay)
	if err := w.jobs.MarkRetrying(ctx, job.ID, job.RetryCount+1, nextRetryAt, cause); err != nil {
		return DeliveryStatusPublishing, joinErrors(cause, fmt.Errorf("core: mark retrying: %w", err))
	}
	w.metrics.IncCounter(ctx, "publisher.delivery.retried", 1, map[string]string{
		"platform": string(job.Platform),
	})
	w.logger.Info("delivery scheduled for retry",
		"job_id", job.ID,
		"platform", string(job.Platform),
		"retry_count", job.RetryCount+1,
		"next_retry_at", nextRetryAt,
		"error", cause,
	)
	return DeliveryStatusRetrying, cause
}

func (w *DeliveryWorker) settlePermanent(ctx context.Context, job DeliveryJob, cause error) (DeliveryStatus, error) {
	if err := w.jobs.MarkFailed(ctx, job.ID, cause); err != nil {
		return DeliveryStatusPublishing, joinErrors(cause, fmt.Errorf("core: mark failed: %w", err))
	}
	w.metrics.IncCounter(ctx, "publisher.delivery.failed", 1, map[string]string{
		"platform": string(job.Platform),
	})
	w.logger.Error("delivery failed",
		"job_id", job.ID,
		"platform", string(job.Platform),
		"retry_count", job.RetryCount,
		"error", cause,
	)
	return DeliveryStatusFailed, cause
}

// Run drains jobs until the context is canceled, sleeping the poll
// interval whenever no job is eligible.
func (w *DeliveryWorker) Run(ctx context.Context) error {
	if w == nil {
		return fmt.Errorf("core: delivery worker is nil")
	}
	for {
		claimed, _, err := w.RunOnce(ctx)
		if err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		if claimed {
			continue
		}
		if err := waitWithContext(ctx, w.config.PollInterval); err != nil {
			return err
		}
	}
}
