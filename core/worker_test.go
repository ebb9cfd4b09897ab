package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestWorker(t *testing.T, contents *stubContentStore, jobs *stubDeliveryJobStore, publisher Publisher, at time.Time) *DeliveryWorker {
	t.Helper()
	publishers := []Publisher{}
	if publisher != nil {
		publishers = append(publishers, publisher)
	}
	registry, err := NewPublisherRegistry(publishers...)
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	worker, err := NewDeliveryWorker(
		contents,
		jobs,
		registry,
		&stubCredentialProvider{},
		DefaultRetryPolicy(),
		WorkerConfig{},
		WithWorkerClock(testClock(at)),
	)
	if err != nil {
		t.Fatalf("build worker: %v", err)
	}
	return worker
}

func seedDueJob(t *testing.T, jobs *stubDeliveryJobStore, contentID int64, platform Platform) DeliveryJob {
	t.Helper()
	job, created, err := jobs.EnsureJob(context.Background(), contentID, platform)
	if err != nil || !created {
		t.Fatalf("seed job: created=%v err=%v", created, err)
	}
	return job
}

func TestWorkerPublishesClaimedJob(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	scheduledFor := now.Add(-time.Minute)
	contents := newStubContentStore(Content{
		ID:           1,
		UserID:       10,
		Platforms:    []Platform{PlatformDiscord},
		ScheduledFor: scheduledFor,
		Status:       ContentStatusScheduled,
	})
	jobs := newStubDeliveryJobStore()
	seedDueJob(t, jobs, 1, PlatformDiscord)
	publisher := &stubPublisher{
		platform: PlatformDiscord,
		results:  []publishOutcome{{externalID: "msg-123"}},
	}

	worker := newTestWorker(t, contents, jobs, publisher, now)

	claimed, stats, err := worker.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !claimed || stats.Published != 1 {
		t.Fatalf("expected one published job, got claimed=%v stats=%+v", claimed, stats)
	}

	job := jobs.get(1, PlatformDiscord)
	if job.Status != DeliveryStatusPublished {
		t.Fatalf("expected published, got %s", job.Status)
	}
	if job.ExternalID != "msg-123" {
		t.Fatalf("expected external id recorded, got %q", job.ExternalID)
	}
	if job.PublishedAt == nil || !job.PublishedAt.Equal(now) {
		t.Fatalf("expected published_at=%s, got %v", now, job.PublishedAt)
	}

	if len(publisher.calls) != 1 {
		t.Fatalf("expected one publish call, got %d", len(publisher.calls))
	}
	expectedKey := DeliveryKey(1, PlatformDiscord, scheduledFor)
	if publisher.calls[0].IdempotencyKey != expectedKey {
		t.Fatalf("expected idempotency key %q, got %q", expectedKey, publisher.calls[0].IdempotencyKey)
	}
}

func TestWorkerIdleWhenNothingDue(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	contents := newStubContentStore()
	jobs := newStubDeliveryJobStore()

	worker := newTestWorker(t, contents, jobs, &stubPublisher{platform: PlatformDiscord}, now)

	claimed, stats, err := worker.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claimed || stats.Claimed != 0 {
		t.Fatalf("expected idle run, got claimed=%v stats=%+v", claimed, stats)
	}
}

func TestWorkerTransientFailureSchedulesRetry(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	contents := newStubContentStore(Content{
		ID:           1,
		Platforms:    []Platform{PlatformDiscord},
		ScheduledFor: now.Add(-time.Minute),
		Status:       ContentStatusScheduled,
	})
	jobs := newStubDeliveryJobStore()
	seedDueJob(t, jobs, 1, PlatformDiscord)
	publisher := &stubPublisher{
		platform: PlatformDiscord,
		results:  []publishOutcome{{err: TransientError("upstream 503", nil)}},
	}

	worker := newTestWorker(t, contents, jobs, publisher, now)

	claimed, stats, err := worker.RunOnce(context.Background())
	if err == nil {
		t.Fatalf("expected the transient failure to surface")
	}
	if !claimed || stats.Retried != 1 {
		t.Fatalf("expected one retried job, got claimed=%v stats=%+v", claimed, stats)
	}

	job := jobs.get(1, PlatformDiscord)
	if job.Status != DeliveryStatusRetrying {
		t.Fatalf("expected retrying, got %s", job.Status)
	}
	if job.RetryCount != 1 {
		t.Fatalf("expected retry count 1, got %d", job.RetryCount)
	}
	expectedRetryAt := now.Add(2 * time.Second)
	if job.NextRetryAt == nil || !job.NextRetryAt.Equal(expectedRetryAt) {
		t.Fatalf("expected next retry at %s, got %v", expectedRetryAt, job.NextRetryAt)
	}
	if job.ErrorMessage == "" {
		t.Fatalf("expected error message recorded")
	}
}

func TestWorkerRetryNotDueIsNotClaimed(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	contents := newStubContentStore(Content{
		ID:           1,
		Platforms:    []Platform{PlatformDiscord},
		ScheduledFor: now.Add(-time.Minute),
		Status:       ContentStatusScheduled,
	})
	jobs := newStubDeliveryJobStore()
	job := seedDueJob(t, jobs, 1, PlatformDiscord)
	if err := jobs.MarkRetrying(context.Background(), job.ID, 1, now.Add(time.Minute), errors.New("503")); err != nil {
		t.Fatalf("mark retrying: %v", err)
	}

	worker := newTestWorker(t, contents, jobs, &stubPublisher{platform: PlatformDiscord}, now)

	claimed, _, err := worker.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claimed {
		t.Fatalf("job with future next_retry_at must not be claimed")
	}
}

func TestWorkerPermanentFailureFailsImmediately(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	contents := newStubContentStore(Content{
		ID:           1,
		Platforms:    []Platform{PlatformDiscord},
		ScheduledFor: now.Add(-time.Minute),
		Status:       ContentStatusScheduled,
	})
	jobs := newStubDeliveryJobStore()
	seedDueJob(t, jobs, 1, PlatformDiscord)
	publisher := &stubPublisher{
		platform: PlatformDiscord,
		results:  []publishOutcome{{err: PermanentError("content rejected", nil)}},
	}

	worker := newTestWorker(t, contents, jobs, publisher, now)

	claimed, stats, err := worker.RunOnce(context.Background())
	if err == nil {
		t.Fatalf("expected the permanent failure to surface")
	}
	if !claimed || stats.Failed != 1 {
		t.Fatalf("expected one failed job, got claimed=%v stats=%+v", claimed, stats)
	}

	job := jobs.get(1, PlatformDiscord)
	if job.Status != DeliveryStatusFailed {
		t.Fatalf("expected failed, got %s", job.Status)
	}
	if job.RetryCount != 0 {
		t.Fatalf("permanent failure must not consume retry budget, got %d", job.RetryCount)
	}
}

func TestWorkerExhaustedRetryBudgetFails(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	contents := newStubContentStore(Content{
		ID:           1,
		Platforms:    []Platform{PlatformDiscord},
		ScheduledFor: now.Add(-time.Minute),
		Status:       ContentStatusScheduled,
	})
	jobs := newStubDeliveryJobStore()
	job := seedDueJob(t, jobs, 1, PlatformDiscord)
	if err := jobs.MarkRetrying(context.Background(), job.ID, 3, now.Add(-time.Second), errors.New("503")); err != nil {
		t.Fatalf("mark retrying: %v", err)
	}
	publisher := &stubPublisher{
		platform: PlatformDiscord,
		results:  []publishOutcome{{err: TransientError("upstream 503", nil)}},
	}

	worker := newTestWorker(t, contents, jobs, publisher, now)

	claimed, stats, err := worker.RunOnce(context.Background())
	if err == nil {
		t.Fatalf("expected failure to surface")
	}
	if !claimed || stats.Failed != 1 {
		t.Fatalf("expected failure after exhausted budget, got claimed=%v stats=%+v", claimed, stats)
	}
	if got := jobs.get(1, PlatformDiscord); got.Status != DeliveryStatusFailed {
		t.Fatalf("expected failed, got %s", got.Status)
	}
}

func TestWorkerUnsupportedPlatformFailsPermanently(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	contents := newStubContentStore(Content{
		ID:           1,
		Platforms:    []Platform{PlatformTwitter},
		ScheduledFor: now.Add(-time.Minute),
		Status:       ContentStatusScheduled,
	})
	jobs := newStubDeliveryJobStore()
	seedDueJob(t, jobs, 1, PlatformTwitter)

	// Registry only knows discord; the twitter row predates the deployment.
	worker := newTestWorker(t, contents, jobs, &stubPublisher{platform: PlatformDiscord}, now)

	claimed, stats, err := worker.RunOnce(context.Background())
	if !errors.Is(err, ErrUnsupportedPlatform) {
		t.Fatalf("expected ErrUnsupportedPlatform, got %v", err)
	}
	if !claimed || stats.Failed != 1 {
		t.Fatalf("expected failed job, got claimed=%v stats=%+v", claimed, stats)
	}
	if got := jobs.get(1, PlatformTwitter); got.Status != DeliveryStatusFailed {
		t.Fatalf("expected failed, got %s", got.Status)
	}
}

func TestWorkerCredentialFailureIsTransient(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	contents := newStubContentStore(Content{
		ID:           1,
		Platforms:    []Platform{PlatformDiscord},
		ScheduledFor: now.Add(-time.Minute),
		Status:       ContentStatusScheduled,
	})
	jobs := newStubDeliveryJobStore()
	seedDueJob(t, jobs, 1, PlatformDiscord)

	registry, err := NewPublisherRegistry(&stubPublisher{platform: PlatformDiscord})
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	worker, err := NewDeliveryWorker(
		contents,
		jobs,
		registry,
		&stubCredentialProvider{resolveErr: errors.New("token store unavailable")},
		DefaultRetryPolicy(),
		WorkerConfig{},
		WithWorkerClock(testClock(now)),
	)
	if err != nil {
		t.Fatalf("build worker: %v", err)
	}

	claimed, stats, runErr := worker.RunOnce(context.Background())
	if runErr == nil {
		t.Fatalf("expected credential failure to surface")
	}
	if !claimed || stats.Retried != 1 {
		t.Fatalf("expected retry, got claimed=%v stats=%+v", claimed, stats)
	}
	if got := jobs.get(1, PlatformDiscord); got.Status != DeliveryStatusRetrying {
		t.Fatalf("expected retrying, got %s", got.Status)
	}
}

// Transient failure then success: the full retry path a worker walks when an
// upstream blips on the first attempt.
func TestWorkerRecoversAfterTransientFailure(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	contents := newStubContentStore(Content{
		ID:           1,
		Platforms:    []Platform{PlatformDiscord},
		ScheduledFor: start.Add(-time.Minute),
		Status:       ContentStatusScheduled,
	})
	jobs := newStubDeliveryJobStore()
	seedDueJob(t, jobs, 1, PlatformDiscord)
	publisher := &stubPublisher{
		platform: PlatformDiscord,
		results: []publishOutcome{
			{err: TransientError("upstream 503", nil)},
			{externalID: "msg-after-retry"},
		},
	}

	clock := start
	registry, err := NewPublisherRegistry(publisher)
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	worker, err := NewDeliveryWorker(
		contents,
		jobs,
		registry,
		&stubCredentialProvider{},
		DefaultRetryPolicy(),
		WorkerConfig{},
		WithWorkerClock(func() time.Time { return clock }),
	)
	if err != nil {
		t.Fatalf("build worker: %v", err)
	}

	if claimed, stats, _ := worker.RunOnce(context.Background()); !claimed || stats.Retried != 1 {
		t.Fatalf("expected first attempt to retry, got claimed=%v stats=%+v", claimed, stats)
	}

	// Before the backoff elapses the job is invisible.
	clock = start.Add(time.Second)
	if claimed, _, err := worker.RunOnce(context.Background()); err != nil || claimed {
		t.Fatalf("expected nothing claimable before backoff, got claimed=%v err=%v", claimed, err)
	}

	clock = start.Add(3 * time.Second)
	claimed, stats, err := worker.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error on second attempt: %v", err)
	}
	if !claimed || stats.Published != 1 {
		t.Fatalf("expected second attempt to publish, got claimed=%v stats=%+v", claimed, stats)
	}

	job := jobs.get(1, PlatformDiscord)
	if job.Status != DeliveryStatusPublished {
		t.Fatalf("expected published, got %s", job.Status)
	}
	if job.ExternalID != "msg-after-retry" {
		t.Fatalf("expected external id from retry, got %q", job.ExternalID)
	}
	if job.RetryCount != 1 {
		t.Fatalf("expected retry count 1 preserved, got %d", job.RetryCount)
	}
}

type stubThrottle struct {
	acquireErr error
	settled    []error
}

func (s *stubThrottle) Acquire(context.Context, Platform) error {
	return s.acquireErr
}

func (s *stubThrottle) Settle(_ context.Context, _ Platform, cause error) error {
	s.settled = append(s.settled, cause)
	return nil
}

func TestWorkerThrottledClaimDefersWithoutAttempt(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	contents := newStubContentStore(Content{
		ID:           1,
		Platforms:    []Platform{PlatformDiscord},
		ScheduledFor: now.Add(-time.Minute),
		Status:       ContentStatusScheduled,
	})
	jobs := newStubDeliveryJobStore()
	seedDueJob(t, jobs, 1, PlatformDiscord)
	publisher := &stubPublisher{platform: PlatformDiscord}
	throttle := &stubThrottle{
		acquireErr: RateLimitedError("platform throttled", nil).
			WithMetadata(map[string]any{"retry_after_ms": int64(30_000)}),
	}

	registry, err := NewPublisherRegistry(publisher)
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	worker, err := NewDeliveryWorker(
		contents,
		jobs,
		registry,
		&stubCredentialProvider{},
		DefaultRetryPolicy(),
		WorkerConfig{},
		WithWorkerClock(testClock(now)),
		WithWorkerThrottle(throttle),
	)
	if err != nil {
		t.Fatalf("build worker: %v", err)
	}

	claimed, stats, err := worker.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("expected deferred claim without error, got %v", err)
	}
	if !claimed || stats.Retried != 1 {
		t.Fatalf("expected one deferred job, got claimed=%v stats=%+v", claimed, stats)
	}
	if len(publisher.calls) != 0 {
		t.Fatalf("expected no publish call while throttled, got %d", len(publisher.calls))
	}

	job := jobs.get(1, PlatformDiscord)
	if job.Status != DeliveryStatusRetrying {
		t.Fatalf("expected retrying, got %s", job.Status)
	}
	if job.RetryCount != 0 {
		t.Fatalf("expected untouched retry budget, got %d", job.RetryCount)
	}
	expectedRetryAt := now.Add(30 * time.Second)
	if job.NextRetryAt == nil || !job.NextRetryAt.Equal(expectedRetryAt) {
		t.Fatalf("expected retry hint honored at %s, got %v", expectedRetryAt, job.NextRetryAt)
	}
}

func TestWorkerReportsOutcomeToThrottle(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	contents := newStubContentStore(Content{
		ID:           1,
		Platforms:    []Platform{PlatformDiscord},
		ScheduledFor: now.Add(-time.Minute),
		Status:       ContentStatusScheduled,
	})
	jobs := newStubDeliveryJobStore()
	seedDueJob(t, jobs, 1, PlatformDiscord)
	publisher := &stubPublisher{
		platform: PlatformDiscord,
		results:  []publishOutcome{{externalID: "msg-42"}},
	}
	throttle := &stubThrottle{}

	registry, err := NewPublisherRegistry(publisher)
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	worker, err := NewDeliveryWorker(
		contents,
		jobs,
		registry,
		&stubCredentialProvider{},
		DefaultRetryPolicy(),
		WorkerConfig{},
		WithWorkerClock(testClock(now)),
		WithWorkerThrottle(throttle),
	)
	if err != nil {
		t.Fatalf("build worker: %v", err)
	}

	if claimed, stats, err := worker.RunOnce(context.Background()); err != nil || !claimed || stats.Published != 1 {
		t.Fatalf("expected publish, got claimed=%v stats=%+v err=%v", claimed, stats, err)
	}
	if len(throttle.settled) != 1 || throttle.settled[0] != nil {
		t.Fatalf("expected success reported to throttle, got %#v", throttle.settled)
	}
}
