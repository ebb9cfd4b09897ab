package webhooks

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-publisher/core"
	"github.com/goliatone/go-publisher/providers/twitch"
)

const subscriptionSecretBytes = 16

// RemoteSubscriber is the provider-side EventSub management surface.
type RemoteSubscriber interface {
	CreateSubscription(ctx context.Context, req twitch.CreateSubscriptionRequest) (twitch.RemoteSubscription, error)
	DeleteSubscription(ctx context.Context, remoteID string, appToken string) error
}

// AppTokenSource supplies the app access token management calls carry when
// the caller does not pass one explicitly.
type AppTokenSource interface {
	Token(ctx context.Context) (string, error)
}

// SubscriptionManager provisions and tears down EventSub subscriptions. A
// provisioned subscription stays pending locally until the verification
// handshake arrives at the ingress and enables it.
type SubscriptionManager struct {
	store  core.SubscriptionStore
	remote RemoteSubscriber
	tokens AppTokenSource
	logger core.Logger
}

func NewSubscriptionManager(store core.SubscriptionStore, remote RemoteSubscriber) (*SubscriptionManager, error) {
	if store == nil {
		return nil, fmt.Errorf("webhooks: subscription store is required")
	}
	if remote == nil {
		return nil, fmt.Errorf("webhooks: remote subscriber is required")
	}
	return &SubscriptionManager{
		store:  store,
		remote: remote,
		logger: glog.Ensure(nil),
	}, nil
}

func (m *SubscriptionManager) WithLogger(logger core.Logger) *SubscriptionManager {
	if m != nil && logger != nil {
		m.logger = logger
	}
	return m
}

// WithAppTokenSource resolves app tokens for management calls that arrive
// without one.
func (m *SubscriptionManager) WithAppTokenSource(tokens AppTokenSource) *SubscriptionManager {
	if m != nil && tokens != nil {
		m.tokens = tokens
	}
	return m
}

type ProvisionRequest struct {
	BroadcasterID string
	EventType     string
	// AppToken is the app access token EventSub management calls require.
	AppToken string
}

// Provision stores a pending local subscription with a fresh signing secret
// and registers the matching remote subscription. The local row is created
// first so the verification callback can resolve its secret.
func (m *SubscriptionManager) Provision(ctx context.Context, req ProvisionRequest) (core.WebhookSubscription, error) {
	if m == nil || m.store == nil || m.remote == nil {
		return core.WebhookSubscription{}, fmt.Errorf("webhooks: subscription manager is not configured")
	}
	broadcasterID := strings.TrimSpace(req.BroadcasterID)
	if broadcasterID == "" {
		return core.WebhookSubscription{}, fmt.Errorf("webhooks: broadcaster id is required")
	}
	eventType := strings.TrimSpace(req.EventType)
	if eventType == "" {
		eventType = twitch.EventTypeStreamOnline
	}

	appToken, err := m.resolveAppToken(ctx, req.AppToken)
	if err != nil {
		return core.WebhookSubscription{}, err
	}

	secret, err := newSubscriptionSecret()
	if err != nil {
		return core.WebhookSubscription{}, fmt.Errorf("webhooks: generate subscription secret: %w", err)
	}

	local, err := m.store.Create(ctx, core.WebhookSubscription{
		BroadcasterID: broadcasterID,
		Secret:        secret,
		EventType:     eventType,
		Status:        core.SubscriptionStatusPending,
	})
	if err != nil {
		return core.WebhookSubscription{}, err
	}

	remote, err := m.remote.CreateSubscription(ctx, twitch.CreateSubscriptionRequest{
		EventType:     eventType,
		BroadcasterID: broadcasterID,
		Secret:        secret,
		AppToken:      appToken,
	})
	if err != nil {
		return core.WebhookSubscription{}, err
	}

	m.logger.Info("eventsub subscription requested",
		"subscription_id", local.ID,
		"broadcaster_id", broadcasterID,
		"remote_id", remote.ID,
		"remote_status", remote.Status,
	)
	return local, nil
}

// Teardown deletes the remote subscription and marks the local row revoked.
func (m *SubscriptionManager) Teardown(ctx context.Context, remoteID string, appToken string) error {
	if m == nil || m.store == nil || m.remote == nil {
		return fmt.Errorf("webhooks: subscription manager is not configured")
	}
	remoteID = strings.TrimSpace(remoteID)
	if remoteID == "" {
		return fmt.Errorf("webhooks: remote subscription id is required")
	}
	appToken, err := m.resolveAppToken(ctx, appToken)
	if err != nil {
		return err
	}
	if err := m.remote.DeleteSubscription(ctx, remoteID, appToken); err != nil {
		return err
	}
	if err := m.store.Revoke(ctx, remoteID); err != nil {
		return err
	}
	m.logger.Info("eventsub subscription torn down", "remote_id", remoteID)
	return nil
}

func (m *SubscriptionManager) resolveAppToken(ctx context.Context, explicit string) (string, error) {
	explicit = strings.TrimSpace(explicit)
	if explicit != "" || m.tokens == nil {
		return explicit, nil
	}
	token, err := m.tokens.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("webhooks: resolve app token: %w", err)
	}
	return token, nil
}

func newSubscriptionSecret() (string, error) {
	buf := make([]byte, subscriptionSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
