package sqlstore

import (
	"time"

	"github.com/goliatone/go-publisher/core"
)

func (r *contentRecord) toDomain() core.Content {
	if r == nil {
		return core.Content{}
	}
	platforms := make([]core.Platform, 0, len(r.Platforms))
	for _, value := range r.Platforms {
		platform, err := core.ParsePlatform(value)
		if err != nil {
			continue
		}
		platforms = append(platforms, platform)
	}
	return core.Content{
		ID:           r.ID,
		UserID:       r.UserID,
		Title:        r.Title,
		Body:         r.Body,
		ContentType:  r.ContentType,
		Hashtags:     r.Hashtags,
		Mentions:     r.Mentions,
		Attachments:  copyStringSlice(r.Attachments),
		Platforms:    platforms,
		ScheduledFor: r.ScheduledFor,
		Status:       core.ContentStatus(r.Status),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func (r *deliveryJobRecord) toDomain() core.DeliveryJob {
	if r == nil {
		return core.DeliveryJob{}
	}
	return core.DeliveryJob{
		ID:           r.ID,
		ContentID:    r.ContentID,
		Platform:     core.Platform(r.Platform),
		Status:       core.DeliveryStatus(r.Status),
		ExternalID:   r.ExternalID,
		ErrorMessage: r.ErrorMessage,
		RetryCount:   r.RetryCount,
		NextRetryAt:  copyTimePointer(r.NextRetryAt),
		PublishedAt:  copyTimePointer(r.PublishedAt),
		Metadata:     copyAnyMap(r.Metadata),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func (r *webhookSubscriptionRecord) toDomain() core.WebhookSubscription {
	if r == nil {
		return core.WebhookSubscription{}
	}
	return core.WebhookSubscription{
		ID:            r.ID,
		BroadcasterID: r.BroadcasterID,
		RemoteID:      r.RemoteID,
		Secret:        r.Secret,
		EventType:     r.EventType,
		Status:        core.SubscriptionStatus(r.Status),
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func (r *inboundEventRecord) toDomain() core.InboundEvent {
	if r == nil {
		return core.InboundEvent{}
	}
	return core.InboundEvent{
		ID:            r.ID,
		MessageID:     r.MessageID,
		BroadcasterID: r.BroadcasterID,
		EventType:     r.EventType,
		Payload:       copyAnyMap(r.Payload),
		ReceivedAt:    r.ReceivedAt,
	}
}

func copyStringSlice(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	return append([]string(nil), values...)
}

func copyAnyMap(values map[string]any) map[string]any {
	if len(values) == 0 {
		return nil
	}
	copied := make(map[string]any, len(values))
	for key, value := range values {
		copied[key] = value
	}
	return copied
}

func copyTimePointer(input *time.Time) *time.Time {
	if input == nil {
		return nil
	}
	value := *input
	return &value
}

func platformStrings(platforms []core.Platform) []string {
	out := make([]string, 0, len(platforms))
	for _, platform := range platforms {
		out = append(out, string(platform))
	}
	return out
}
