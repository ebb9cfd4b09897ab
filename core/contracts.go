package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

// ContentStore is the dispatcher's read/rollup surface over scheduled
// content. Creation belongs to the excluded CRUD layer.
type ContentStore interface {
	FindDue(ctx context.Context, now time.Time, limit int) ([]Content, error)
	Get(ctx context.Context, id int64) (Content, error)
	ListForRollup(ctx context.Context, limit int) ([]Content, error)
	UpdateStatus(ctx context.Context, id int64, status ContentStatus) error
}

// DeliveryJobStore owns all delivery job mutations. Claim is the single
// concurrency-control primitive: a conditional update that moves one
// eligible job to publishing, or reports that no row was claimed.
type DeliveryJobStore interface {
	EnsureJob(ctx context.Context, contentID int64, platform Platform) (DeliveryJob, bool, error)
	Claim(ctx context.Context, now time.Time) (DeliveryJob, bool, error)
	ListForContent(ctx context.Context, contentID int64) ([]DeliveryJob, error)
	MarkPublished(ctx context.Context, jobID int64, externalID string, publishedAt time.Time) error
	MarkRetrying(ctx context.Context, jobID int64, retryCount int, nextRetryAt time.Time, cause error) error
	MarkFailed(ctx context.Context, jobID int64, cause error) error
	CancelForContent(ctx context.Context, contentID int64) (int, error)
}

type SubscriptionStore interface {
	Create(ctx context.Context, sub WebhookSubscription) (WebhookSubscription, error)
	GetByRemoteID(ctx context.Context, remoteID string) (WebhookSubscription, error)
	FindPendingByBroadcaster(ctx context.Context, broadcasterID string) (WebhookSubscription, error)
	Enable(ctx context.Context, id string, remoteID string) error
	Revoke(ctx context.Context, remoteID string) error
}

type InboundEventStore interface {
	// Insert persists the event unless its message id was already seen.
	// The bool reports whether a new row was created.
	Insert(ctx context.Context, event InboundEvent) (InboundEvent, bool, error)
}

// Credentials is an opaque platform access token plus refresh capability.
type Credentials struct {
	AccessToken string
	ExpiresAt   time.Time
}

// CredentialProvider resolves the current token for a user+platform pair
// and refreshes expired tokens transparently. Refresh failures surface as
// transient errors to the worker.
type CredentialProvider interface {
	Resolve(ctx context.Context, userID int64, platform Platform) (Credentials, error)
	Refresh(ctx context.Context, userID int64, platform Platform) (Credentials, error)
}

type PublishRequest struct {
	Content        Content
	Platform       Platform
	Credentials    Credentials
	IdempotencyKey string
}

type PublishResult struct {
	ExternalID string
	Metadata   map[string]any
}

// Publisher is the per-platform delivery capability. Implementations own
// payload formatting and a single local 401 refresh retry; cross-attempt
// state is the worker's job.
type Publisher interface {
	Platform() Platform
	Publish(ctx context.Context, req PublishRequest) (PublishResult, error)
}

type DispatchStats struct {
	Due      int
	Created  int
	Existing int
	RolledUp int
}

type WorkerStats struct {
	Claimed   int
	Published int
	Retried   int
	Failed    int
}

// JobExecutionMessage mirrors the go-job execution contract so queue-driven
// deployments can wake workers instead of polling.
type JobExecutionMessage struct {
	JobID          string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

// JobWorkerEvent carries worker lifecycle data for queue-driven delivery
// runs. Message may be nil when the queue loses the payload mid-flight.
type JobWorkerEvent struct {
	Message   *JobExecutionMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

type JobWorkerHook interface {
	OnStart(ctx context.Context, event JobWorkerEvent)
	OnSuccess(ctx context.Context, event JobWorkerEvent)
	OnFailure(ctx context.Context, event JobWorkerEvent)
	OnRetry(ctx context.Context, event JobWorkerEvent)
}

// PublishThrottle gates publish attempts per platform. Acquire returns a
// rate-limit error while the platform is throttled; Settle records the
// attempt outcome so the throttle can adapt. A nil Settle cause means the
// attempt succeeded.
type PublishThrottle interface {
	Acquire(ctx context.Context, platform Platform) error
	Settle(ctx context.Context, platform Platform, cause error) error
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}
