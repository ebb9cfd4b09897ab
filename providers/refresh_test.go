package providers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-publisher/core"
)

// singleJobStore holds one delivery job so worker flows can run against a
// deterministic claim surface.
type singleJobStore struct {
	job core.DeliveryJob
}

func (s *singleJobStore) EnsureJob(context.Context, int64, core.Platform) (core.DeliveryJob, bool, error) {
	return s.job, false, nil
}

func (s *singleJobStore) Claim(_ context.Context, now time.Time) (core.DeliveryJob, bool, error) {
	if s.job.Status != core.DeliveryStatusPending && s.job.Status != core.DeliveryStatusRetrying {
		return core.DeliveryJob{}, false, nil
	}
	if s.job.NextRetryAt != nil && s.job.NextRetryAt.After(now) {
		return core.DeliveryJob{}, false, nil
	}
	s.job.Status = core.DeliveryStatusPublishing
	return s.job, true, nil
}

func (s *singleJobStore) ListForContent(context.Context, int64) ([]core.DeliveryJob, error) {
	return []core.DeliveryJob{s.job}, nil
}

func (s *singleJobStore) MarkPublished(_ context.Context, _ int64, externalID string, publishedAt time.Time) error {
	s.job.Status = core.DeliveryStatusPublished
	s.job.ExternalID = externalID
	s.job.PublishedAt = &publishedAt
	return nil
}

func (s *singleJobStore) MarkRetrying(_ context.Context, _ int64, retryCount int, nextRetryAt time.Time, cause error) error {
	s.job.Status = core.DeliveryStatusRetrying
	s.job.RetryCount = retryCount
	s.job.NextRetryAt = &nextRetryAt
	s.job.ErrorMessage = cause.Error()
	return nil
}

func (s *singleJobStore) MarkFailed(_ context.Context, _ int64, cause error) error {
	s.job.Status = core.DeliveryStatusFailed
	s.job.ErrorMessage = cause.Error()
	return nil
}

func (s *singleJobStore) CancelForContent(context.Context, int64) (int, error) {
	return 0, nil
}

type singleContentStore struct {
	content core.Content
}

func (s *singleContentStore) FindDue(context.Context, time.Time, int) ([]core.Content, error) {
	return []core.Content{s.content}, nil
}

func (s *singleContentStore) Get(context.Context, int64) (core.Content, error) {
	return s.content, nil
}

func (s *singleContentStore) ListForRollup(context.Context, int) ([]core.Content, error) {
	return nil, nil
}

func (s *singleContentStore) UpdateStatus(context.Context, int64, core.ContentStatus) error {
	return nil
}

var (
	_ core.DeliveryJobStore = (*singleJobStore)(nil)
	_ core.ContentStore     = (*singleContentStore)(nil)
)

// staleTokenPublisher answers 401 so every attempt walks into the shared
// refresh retry.
type staleTokenPublisher struct {
	credentials core.CredentialProvider
	calls       int
}

func (p *staleTokenPublisher) Platform() core.Platform {
	return core.PlatformDiscord
}

func (p *staleTokenPublisher) Publish(ctx context.Context, req core.PublishRequest) (core.PublishResult, error) {
	return PublishWithRefresh(ctx, p.credentials, req, func(context.Context, string) (core.PublishResult, error) {
		p.calls++
		return core.PublishResult{}, core.AuthError("discord: unauthorized", nil)
	})
}

// A refresh outage during the in-attempt 401 retry leaves the job on the
// normal retry track instead of failing it terminally.
func TestWorkerRetriesDeliveryWhenRefreshFails(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	credentials := &refreshCountingProvider{refreshErr: errors.New("token endpoint unreachable")}
	publisher := &staleTokenPublisher{credentials: credentials}

	registry, err := core.NewPublisherRegistry(publisher)
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	contents := &singleContentStore{content: core.Content{
		ID:           1,
		UserID:       7,
		Platforms:    []core.Platform{core.PlatformDiscord},
		ScheduledFor: now.Add(-time.Minute),
		Status:       core.ContentStatusScheduled,
	}}
	jobs := &singleJobStore{job: core.DeliveryJob{
		ID:        11,
		ContentID: 1,
		Platform:  core.PlatformDiscord,
		Status:    core.DeliveryStatusPending,
	}}

	worker, err := core.NewDeliveryWorker(
		contents,
		jobs,
		registry,
		credentials,
		core.DefaultRetryPolicy(),
		core.WorkerConfig{},
		core.WithWorkerClock(func() time.Time { return now }),
	)
	if err != nil {
		t.Fatalf("build worker: %v", err)
	}

	claimed, stats, runErr := worker.RunOnce(context.Background())
	if runErr == nil {
		t.Fatalf("expected refresh failure to surface")
	}
	if !claimed || stats.Retried != 1 || stats.Failed != 0 {
		t.Fatalf("expected a scheduled retry, got claimed=%v stats=%+v", claimed, stats)
	}
	if jobs.job.Status != core.DeliveryStatusRetrying {
		t.Fatalf("expected retrying, got %s", jobs.job.Status)
	}
	if jobs.job.RetryCount != 1 {
		t.Fatalf("expected retry count 1, got %d", jobs.job.RetryCount)
	}
	if publisher.calls != 1 || credentials.refreshes != 1 {
		t.Fatalf("expected one publish and one refresh, got publishes=%d refreshes=%d", publisher.calls, credentials.refreshes)
	}
}
