package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type contentRecord struct {
	bun.BaseModel `bun:"table:contents,alias:c"`

	ID           int64     `bun:"id,pk,autoincrement"`
	UserID       int64     `bun:"user_id,notnull"`
	Title        string    `bun:"title"`
	Body         string    `bun:"body,notnull"`
	ContentType  string    `bun:"content_type,notnull"`
	Hashtags     string    `bun:"hashtags"`
	Mentions     string    `bun:"mentions"`
	Attachments  []string  `bun:"attachments,type:jsonb,notnull"`
	Platforms    []string  `bun:"platforms,type:jsonb,notnull"`
	ScheduledFor time.Time `bun:"scheduled_for,notnull"`
	Status       string    `bun:"status,notnull"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt    time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// deliveryJobRecord rides on the (content_id, platform) unique constraint:
// concurrent dispatchers inserting the same pair collapse to one row.
type deliveryJobRecord struct {
	bun.BaseModel `bun:"table:delivery_jobs,alias:dj"`

	ID           int64          `bun:"id,pk,autoincrement"`
	ContentID    int64          `bun:"content_id,notnull,unique:ux_delivery_jobs_content_platform"`
	Platform     string         `bun:"platform,notnull,unique:ux_delivery_jobs_content_platform"`
	Status       string         `bun:"status,notnull"`
	ExternalID   string         `bun:"external_id"`
	ErrorMessage string         `bun:"error_message"`
	RetryCount   int            `bun:"retry_count,notnull"`
	NextRetryAt  *time.Time     `bun:"next_retry_at,nullzero"`
	PublishedAt  *time.Time     `bun:"published_at,nullzero"`
	Metadata     map[string]any `bun:"metadata,type:jsonb"`
	CreatedAt    time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt    time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type webhookSubscriptionRecord struct {
	bun.BaseModel `bun:"table:webhook_subscriptions,alias:ws"`

	ID            string    `bun:"id,pk"`
	BroadcasterID string    `bun:"broadcaster_id,notnull"`
	RemoteID      string    `bun:"remote_id"`
	Secret        string    `bun:"secret,notnull"`
	EventType     string    `bun:"event_type,notnull"`
	Status        string    `bun:"status,notnull"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// inboundEventRecord holds one verified notification per provider message
// id. The unique constraint is the redelivery dedup guard.
type inboundEventRecord struct {
	bun.BaseModel `bun:"table:inbound_events,alias:ie"`

	ID            string         `bun:"id,pk"`
	MessageID     string         `bun:"message_id,notnull,unique:ux_inbound_events_message_id"`
	BroadcasterID string         `bun:"broadcaster_id,notnull"`
	EventType     string         `bun:"event_type,notnull"`
	Payload       map[string]any `bun:"payload,type:jsonb,notnull"`
	ReceivedAt    time.Time      `bun:"received_at,nullzero,notnull,default:current_timestamp"`
}
