package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-publisher/core"
)

// eventSubEnvelope is the subset of the callback payload the ingress needs.
// Notification event bodies stay opaque and are persisted as received.
type eventSubEnvelope struct {
	Challenge    string `json:"challenge"`
	Subscription struct {
		ID        string `json:"id"`
		Type      string `json:"type"`
		Status    string `json:"status"`
		Condition struct {
			BroadcasterUserID string `json:"broadcaster_user_id"`
		} `json:"condition"`
	} `json:"subscription"`
	Event map[string]any `json:"event"`
}

// Ingress drives one received callback through the full lifecycle:
// resolve the subscription secret, verify the signature, then branch on the
// message kind. Verification handshakes activate the pending subscription,
// notifications are deduped by message id and persisted, revocations mark
// the subscription revoked.
type Ingress struct {
	Subscriptions core.SubscriptionStore
	Events        core.InboundEventStore
	Burst         BurstController
	Tolerance     time.Duration
	Logger        core.Logger
	Now           func() time.Time
}

func NewIngress(subscriptions core.SubscriptionStore, events core.InboundEventStore) *Ingress {
	return &Ingress{
		Subscriptions: subscriptions,
		Events:        events,
		Tolerance:     defaultTimestampTolerance,
		Logger:        glog.Ensure(nil),
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (i *Ingress) Handle(ctx context.Context, req InboundRequest) (InboundResult, error) {
	if i == nil || i.Subscriptions == nil || i.Events == nil {
		return InboundResult{}, fmt.Errorf("webhooks: ingress requires subscription and event stores")
	}

	messageType := strings.TrimSpace(strings.ToLower(headerValue(req.Headers, HeaderMessageType)))
	messageID := strings.TrimSpace(headerValue(req.Headers, HeaderMessageID))
	if messageType == "" || messageID == "" {
		return badRequest(), fmt.Errorf("webhooks: message type and message id headers are required")
	}
	// Absent timestamp or signature headers make the request malformed, not
	// untrusted; reject them before any signature check runs.
	if headerValue(req.Headers, HeaderMessageTimestamp) == "" || headerValue(req.Headers, HeaderMessageSignature) == "" {
		return badRequest(), fmt.Errorf("webhooks: message timestamp and signature headers are required")
	}

	var envelope eventSubEnvelope
	if err := json.Unmarshal(req.Body, &envelope); err != nil {
		return badRequest(), fmt.Errorf("webhooks: decode callback payload: %w", err)
	}

	subscription, found, err := i.resolveSubscription(ctx, messageType, envelope)
	if err != nil {
		return InboundResult{}, err
	}
	if !found {
		// Unknown subscriptions are acknowledged without processing so the
		// provider stops retrying rows we no longer track.
		i.logger().Info("callback for unknown subscription",
			"message_id", messageID,
			"remote_id", envelope.Subscription.ID,
		)
		return InboundResult{
			Accepted:   true,
			StatusCode: http.StatusOK,
			Metadata:   map[string]any{"unknown_subscription": true},
		}, nil
	}

	verifier := EventSubVerifier{Secret: subscription.Secret, Tolerance: i.Tolerance, Now: i.Now}
	if err := verifier.Verify(ctx, req); err != nil {
		return InboundResult{
			Accepted:   false,
			StatusCode: http.StatusForbidden,
			Metadata:   map[string]any{"rejected": true},
		}, err
	}

	switch messageType {
	case MessageTypeVerification:
		return i.handleVerification(ctx, subscription, envelope)
	case MessageTypeNotification:
		return i.handleNotification(ctx, messageID, subscription, envelope, req)
	case MessageTypeRevocation:
		return i.handleRevocation(ctx, envelope)
	default:
		return badRequest(), fmt.Errorf("webhooks: unsupported message type %q", messageType)
	}
}

// resolveSubscription locates the row that signs this message. The handshake
// arrives before the remote id is on file, so it resolves by broadcaster;
// every later message carries the remote subscription id.
func (i *Ingress) resolveSubscription(ctx context.Context, messageType string, envelope eventSubEnvelope) (core.WebhookSubscription, bool, error) {
	if messageType == MessageTypeVerification {
		broadcasterID := strings.TrimSpace(envelope.Subscription.Condition.BroadcasterUserID)
		if broadcasterID == "" {
			return core.WebhookSubscription{}, false, nil
		}
		subscription, err := i.Subscriptions.FindPendingByBroadcaster(ctx, broadcasterID)
		if errors.Is(err, core.ErrSubscriptionNotFound) {
			return core.WebhookSubscription{}, false, nil
		}
		if err != nil {
			return core.WebhookSubscription{}, false, fmt.Errorf("webhooks: find pending subscription: %w", err)
		}
		return subscription, true, nil
	}

	remoteID := strings.TrimSpace(envelope.Subscription.ID)
	if remoteID == "" {
		return core.WebhookSubscription{}, false, nil
	}
	subscription, err := i.Subscriptions.GetByRemoteID(ctx, remoteID)
	if errors.Is(err, core.ErrSubscriptionNotFound) {
		return core.WebhookSubscription{}, false, nil
	}
	if err != nil {
		return core.WebhookSubscription{}, false, fmt.Errorf("webhooks: load subscription: %w", err)
	}
	return subscription, true, nil
}

func (i *Ingress) handleVerification(ctx context.Context, subscription core.WebhookSubscription, envelope eventSubEnvelope) (InboundResult, error) {
	challenge := envelope.Challenge
	if strings.TrimSpace(challenge) == "" {
		return badRequest(), fmt.Errorf("webhooks: verification challenge is required")
	}
	remoteID := strings.TrimSpace(envelope.Subscription.ID)
	if remoteID == "" {
		return badRequest(), fmt.Errorf("webhooks: verification remote subscription id is required")
	}

	if err := i.Subscriptions.Enable(ctx, subscription.ID, remoteID); err != nil {
		return InboundResult{}, fmt.Errorf("webhooks: enable subscription: %w", err)
	}
	i.logger().Info("webhook subscription verified",
		"subscription_id", subscription.ID,
		"remote_id", remoteID,
		"event_type", envelope.Subscription.Type,
	)

	// The handshake response is the raw challenge string, not JSON.
	return InboundResult{
		Accepted:    true,
		StatusCode:  http.StatusOK,
		ContentType: "text/plain; charset=utf-8",
		Body:        []byte(challenge),
	}, nil
}

func (i *Ingress) handleNotification(ctx context.Context, messageID string, subscription core.WebhookSubscription, envelope eventSubEnvelope, req InboundRequest) (InboundResult, error) {
	if i.Burst != nil {
		decision, err := i.Burst.Allow(ctx, notificationBurstRequest(subscription, envelope, req))
		if err != nil {
			return InboundResult{}, err
		}
		if !decision.Allow {
			metadata := decision.Metadata
			if metadata == nil {
				metadata = map[string]any{}
			}
			metadata["message_id"] = messageID
			return InboundResult{
				Accepted:    true,
				StatusCode:  http.StatusOK,
				ContentType: "application/json",
				Body:        receivedBody(),
				Metadata:    metadata,
			}, nil
		}
	}

	receivedAt := time.Now().UTC()
	if i.Now != nil {
		receivedAt = i.Now().UTC()
	}
	event := core.InboundEvent{
		MessageID:     messageID,
		BroadcasterID: subscription.BroadcasterID,
		EventType:     envelope.Subscription.Type,
		Payload:       envelope.Event,
		ReceivedAt:    receivedAt,
	}
	stored, created, err := i.Events.Insert(ctx, event)
	if err != nil {
		return InboundResult{}, fmt.Errorf("webhooks: persist inbound event: %w", err)
	}
	if !created {
		return InboundResult{
			Accepted:    true,
			StatusCode:  http.StatusOK,
			ContentType: "application/json",
			Body:        receivedBody(),
			Metadata:    map[string]any{"deduped": true, "message_id": messageID},
		}, nil
	}

	i.logger().Info("inbound event stored",
		"event_id", stored.ID,
		"message_id", messageID,
		"broadcaster_id", subscription.BroadcasterID,
		"event_type", event.EventType,
	)
	return InboundResult{
		Accepted:    true,
		StatusCode:  http.StatusOK,
		ContentType: "application/json",
		Body:        receivedBody(),
		Metadata:    map[string]any{"message_id": messageID},
	}, nil
}

func (i *Ingress) handleRevocation(ctx context.Context, envelope eventSubEnvelope) (InboundResult, error) {
	remoteID := strings.TrimSpace(envelope.Subscription.ID)
	if err := i.Subscriptions.Revoke(ctx, remoteID); err != nil {
		return InboundResult{}, fmt.Errorf("webhooks: revoke subscription: %w", err)
	}
	i.logger().Info("webhook subscription revoked",
		"remote_id", remoteID,
		"status", envelope.Subscription.Status,
	)
	return InboundResult{
		Accepted:   true,
		StatusCode: http.StatusNoContent,
	}, nil
}

func (i *Ingress) logger() core.Logger {
	if i != nil && i.Logger != nil {
		return i.Logger
	}
	return glog.Ensure(nil)
}

func badRequest() InboundResult {
	return InboundResult{Accepted: false, StatusCode: http.StatusBadRequest}
}

func receivedBody() []byte {
	return []byte(`{"received":true}`)
}

func notificationBurstRequest(subscription core.WebhookSubscription, envelope eventSubEnvelope, req InboundRequest) InboundRequest {
	metadata := map[string]any{
		"broadcaster_user_id": subscription.BroadcasterID,
		"event_type":          envelope.Subscription.Type,
	}
	for key, value := range req.Metadata {
		metadata[key] = value
	}
	return InboundRequest{Headers: req.Headers, Body: req.Body, Metadata: metadata}
}
