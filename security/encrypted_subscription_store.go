package security

import (
	"context"
	"fmt"

	"github.com/goliatone/go-publisher/core"
)

// EncryptedSubscriptionStore seals webhook signing secrets before they hit
// the backing store and opens them on the way out. Callers above the
// decorator only ever see plaintext secrets; rows below it only ever hold
// envelopes.
type EncryptedSubscriptionStore struct {
	inner   core.SubscriptionStore
	secrets SecretProvider
}

func NewEncryptedSubscriptionStore(inner core.SubscriptionStore, secrets SecretProvider) (*EncryptedSubscriptionStore, error) {
	if inner == nil {
		return nil, fmt.Errorf("security: subscription store is required")
	}
	if secrets == nil {
		return nil, fmt.Errorf("security: secret provider is required")
	}
	return &EncryptedSubscriptionStore{inner: inner, secrets: secrets}, nil
}

func (s *EncryptedSubscriptionStore) Create(ctx context.Context, sub core.WebhookSubscription) (core.WebhookSubscription, error) {
	plaintext := sub.Secret
	if plaintext != "" {
		sealed, err := s.secrets.Encrypt(ctx, []byte(plaintext))
		if err != nil {
			return core.WebhookSubscription{}, fmt.Errorf("security: seal subscription secret: %w", err)
		}
		sub.Secret = string(sealed)
	}
	created, err := s.inner.Create(ctx, sub)
	if err != nil {
		return core.WebhookSubscription{}, err
	}
	created.Secret = plaintext
	return created, nil
}

func (s *EncryptedSubscriptionStore) GetByRemoteID(ctx context.Context, remoteID string) (core.WebhookSubscription, error) {
	sub, err := s.inner.GetByRemoteID(ctx, remoteID)
	if err != nil {
		return core.WebhookSubscription{}, err
	}
	return s.open(ctx, sub)
}

func (s *EncryptedSubscriptionStore) FindPendingByBroadcaster(ctx context.Context, broadcasterID string) (core.WebhookSubscription, error) {
	sub, err := s.inner.FindPendingByBroadcaster(ctx, broadcasterID)
	if err != nil {
		return core.WebhookSubscription{}, err
	}
	return s.open(ctx, sub)
}

func (s *EncryptedSubscriptionStore) Enable(ctx context.Context, id string, remoteID string) error {
	return s.inner.Enable(ctx, id, remoteID)
}

func (s *EncryptedSubscriptionStore) Revoke(ctx context.Context, remoteID string) error {
	return s.inner.Revoke(ctx, remoteID)
}

// open decrypts the stored secret. Rows written before encryption was
// enabled pass through untouched.
func (s *EncryptedSubscriptionStore) open(ctx context.Context, sub core.WebhookSubscription) (core.WebhookSubscription, error) {
	if sub.Secret == "" || !IsEnvelope([]byte(sub.Secret)) {
		return sub, nil
	}
	plaintext, err := s.secrets.Decrypt(ctx, []byte(sub.Secret))
	if err != nil {
		return core.WebhookSubscription{}, fmt.Errorf("security: open subscription secret: %w", err)
	}
	sub.Secret = string(plaintext)
	return sub, nil
}

var _ core.SubscriptionStore = (*EncryptedSubscriptionStore)(nil)
