package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrUnsupportedPlatform             = errors.New("core: unsupported platform")
	ErrInvalidContentStatusTransition  = errors.New("core: invalid content status transition")
	ErrInvalidDeliveryStatusTransition = errors.New("core: invalid delivery job status transition")
	ErrContentNotFound                 = errors.New("core: content not found")
	ErrDeliveryJobNotFound             = errors.New("core: delivery job not found")
	ErrSubscriptionNotFound            = errors.New("core: webhook subscription not found")
)

type Platform string

const (
	PlatformDiscord   Platform = "discord"
	PlatformTwitter   Platform = "twitter"
	PlatformYouTube   Platform = "youtube"
	PlatformTwitch    Platform = "twitch"
	PlatformInstagram Platform = "instagram"
)

func ParsePlatform(value string) (Platform, error) {
	normalized := Platform(strings.TrimSpace(strings.ToLower(value)))
	switch normalized {
	case PlatformDiscord, PlatformTwitter, PlatformYouTube, PlatformTwitch, PlatformInstagram:
		return normalized, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedPlatform, value)
	}
}

type ContentStatus string

const (
	ContentStatusScheduled ContentStatus = "scheduled"
	ContentStatusPublished ContentStatus = "published"
	ContentStatusPartial   ContentStatus = "partial"
	ContentStatusFailed    ContentStatus = "failed"
	ContentStatusCanceled  ContentStatus = "canceled"
)

func (s ContentStatus) Terminal() bool {
	switch s {
	case ContentStatusPublished, ContentStatusPartial, ContentStatusFailed, ContentStatusCanceled:
		return true
	default:
		return false
	}
}

// Content is a user-authored piece scheduled for publication to one or more
// platforms. The CRUD surface creates it; only the dispatcher rollup and
// explicit cancellation mutate its status.
type Content struct {
	ID           int64
	UserID       int64
	Title        string
	Body         string
	ContentType  string
	Hashtags     string
	Mentions     string
	Attachments  []string
	Platforms    []Platform
	ScheduledFor time.Time
	Status       ContentStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type DeliveryStatus string

const (
	DeliveryStatusPending    DeliveryStatus = "pending"
	DeliveryStatusQueued     DeliveryStatus = "queued"
	DeliveryStatusPublishing DeliveryStatus = "publishing"
	DeliveryStatusPublished  DeliveryStatus = "published"
	DeliveryStatusFailed     DeliveryStatus = "failed"
	DeliveryStatusRetrying   DeliveryStatus = "retrying"
	DeliveryStatusCanceled   DeliveryStatus = "canceled"
)

func (s DeliveryStatus) Terminal() bool {
	switch s {
	case DeliveryStatusPublished, DeliveryStatusFailed, DeliveryStatusCanceled:
		return true
	default:
		return false
	}
}

// DeliveryJob tracks one delivery attempt stream per (content, platform)
// pair. Exactly one row exists per pair; the (content_id, platform) unique
// constraint doubles as the dispatch concurrency guard.
type DeliveryJob struct {
	ID           int64
	ContentID    int64
	Platform     Platform
	Status       DeliveryStatus
	ExternalID   string
	ErrorMessage string
	RetryCount   int
	NextRetryAt  *time.Time
	PublishedAt  *time.Time
	Metadata     map[string]any
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (j *DeliveryJob) TransitionTo(status DeliveryStatus, now time.Time) error {
	if j == nil {
		return nil
	}
	if j.Status == status {
		j.UpdatedAt = now
		return nil
	}
	if !deliveryTransitionAllowed(j.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidDeliveryStatusTransition, j.Status, status)
	}
	j.Status = status
	j.UpdatedAt = now
	return nil
}

func deliveryTransitionAllowed(current, next DeliveryStatus) bool {
	allowed := map[DeliveryStatus]map[DeliveryStatus]struct{}{
		DeliveryStatusPending: {
			DeliveryStatusQueued:     {},
			DeliveryStatusPublishing: {},
			DeliveryStatusCanceled:   {},
		},
		DeliveryStatusQueued: {
			DeliveryStatusPublishing: {},
			DeliveryStatusCanceled:   {},
		},
		DeliveryStatusPublishing: {
			DeliveryStatusPublished: {},
			DeliveryStatusRetrying:  {},
			DeliveryStatusFailed:    {},
			DeliveryStatusCanceled:  {},
		},
		DeliveryStatusRetrying: {
			DeliveryStatusPublishing: {},
			DeliveryStatusCanceled:   {},
		},
	}
	_, ok := allowed[current][next]
	return ok
}

type SubscriptionStatus string

const (
	SubscriptionStatusPending SubscriptionStatus = "pending"
	SubscriptionStatusEnabled SubscriptionStatus = "enabled"
	SubscriptionStatusRevoked SubscriptionStatus = "revoked"
)

// WebhookSubscription tracks one EventSub registration per broadcaster.
// RemoteID stays empty until the provider completes the verification
// handshake; Secret signs every notification for this subscription.
type WebhookSubscription struct {
	ID            string
	BroadcasterID string
	RemoteID      string
	Secret        string
	EventType     string
	Status        SubscriptionStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// InboundEvent is one verified provider notification. MessageID is the
// dedup key: at-least-once redelivery never produces a second row.
type InboundEvent struct {
	ID            string
	MessageID     string
	BroadcasterID string
	EventType     string
	Payload       map[string]any
	ReceivedAt    time.Time
}

// RollupContentStatus computes the aggregate content status from its
// delivery jobs. Mixed terminal outcomes surface as partial rather than
// hiding behind published or failed.
func RollupContentStatus(current ContentStatus, jobs []DeliveryJob) ContentStatus {
	if current == ContentStatusCanceled {
		return current
	}
	if len(jobs) == 0 {
		return current
	}

	published := 0
	terminal := 0
	for _, job := range jobs {
		if job.Status == DeliveryStatusPublished {
			published++
		}
		if job.Status.Terminal() {
			terminal++
		}
	}

	if published == len(jobs) {
		return ContentStatusPublished
	}
	if terminal < len(jobs) {
		return ContentStatusScheduled
	}
	if published > 0 {
		return ContentStatusPartial
	}
	return ContentStatusFailed
}
