package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-publisher/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const subscriptionCacheKeyPrefix = "go-publisher::webhook_subscription::v1"

// CachedSubscriptionStore fronts remote-id lookups with a cache. Webhook
// ingress resolves the same subscription on every notification, so the hot
// read is cached and every mutation invalidates it.
type CachedSubscriptionStore struct {
	base  core.SubscriptionStore
	cache repositorycache.CacheService
}

func NewCachedSubscriptionStore(
	base core.SubscriptionStore,
	cacheService repositorycache.CacheService,
) (*CachedSubscriptionStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base subscription store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: subscription cache service is required")
	}
	return &CachedSubscriptionStore{base: base, cache: cacheService}, nil
}

// SubscriptionCacheKey returns the deterministic cache key for remote-id
// reads: go-publisher::webhook_subscription::v1::<remote_id> with the id
// URL-path escaped.
func SubscriptionCacheKey(remoteID string) (string, error) {
	remoteID = strings.TrimSpace(remoteID)
	if remoteID == "" {
		return "", fmt.Errorf("sqlstore: remote id is required for cache key")
	}
	return subscriptionCacheKeyPrefix + "::" + url.PathEscape(remoteID), nil
}

func (s *CachedSubscriptionStore) Create(ctx context.Context, sub core.WebhookSubscription) (core.WebhookSubscription, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.WebhookSubscription{}, fmt.Errorf("sqlstore: cached subscription store is not configured")
	}
	created, err := s.base.Create(ctx, sub)
	if err != nil {
		return core.WebhookSubscription{}, err
	}
	if err := s.invalidate(ctx, created.RemoteID); err != nil {
		return core.WebhookSubscription{}, err
	}
	return created, nil
}

func (s *CachedSubscriptionStore) GetByRemoteID(ctx context.Context, remoteID string) (core.WebhookSubscription, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.WebhookSubscription{}, fmt.Errorf("sqlstore: cached subscription store is not configured")
	}
	cacheKey, err := SubscriptionCacheKey(remoteID)
	if err != nil {
		return core.WebhookSubscription{}, err
	}
	return repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.WebhookSubscription, error) {
		return s.base.GetByRemoteID(ctx, remoteID)
	})
}

// FindPendingByBroadcaster is not cached: handshakes are rare and the
// pending row mutates as soon as verification completes.
func (s *CachedSubscriptionStore) FindPendingByBroadcaster(ctx context.Context, broadcasterID string) (core.WebhookSubscription, error) {
	if s == nil || s.base == nil {
		return core.WebhookSubscription{}, fmt.Errorf("sqlstore: cached subscription store is not configured")
	}
	return s.base.FindPendingByBroadcaster(ctx, broadcasterID)
}

func (s *CachedSubscriptionStore) Enable(ctx context.Context, id string, remoteID string) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached subscription store is not configured")
	}
	if err := s.base.Enable(ctx, id, remoteID); err != nil {
		return err
	}
	return s.invalidate(ctx, remoteID)
}

func (s *CachedSubscriptionStore) Revoke(ctx context.Context, remoteID string) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached subscription store is not configured")
	}
	if err := s.base.Revoke(ctx, remoteID); err != nil {
		return err
	}
	return s.invalidate(ctx, remoteID)
}

func (s *CachedSubscriptionStore) invalidate(ctx context.Context, remoteID string) error {
	if strings.TrimSpace(remoteID) == "" {
		return nil
	}
	cacheKey, err := SubscriptionCacheKey(remoteID)
	if err != nil {
		return err
	}
	return s.cache.Delete(ctx, cacheKey)
}

var _ core.SubscriptionStore = (*CachedSubscriptionStore)(nil)
