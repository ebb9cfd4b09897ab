package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-publisher/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type SubscriptionStore struct {
	db   *bun.DB
	repo repository.Repository[*webhookSubscriptionRecord]
}

func NewSubscriptionStore(db *bun.DB) (*SubscriptionStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*webhookSubscriptionRecord](db, subscriptionHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid subscription repository wiring: %w", err)
		}
	}
	return &SubscriptionStore{
		db:   db,
		repo: repo,
	}, nil
}

func (s *SubscriptionStore) Create(ctx context.Context, sub core.WebhookSubscription) (core.WebhookSubscription, error) {
	if s == nil || s.repo == nil {
		return core.WebhookSubscription{}, fmt.Errorf("sqlstore: subscription store is not configured")
	}
	sub.BroadcasterID = strings.TrimSpace(sub.BroadcasterID)
	sub.Secret = strings.TrimSpace(sub.Secret)
	sub.EventType = strings.TrimSpace(sub.EventType)
	if sub.BroadcasterID == "" {
		return core.WebhookSubscription{}, fmt.Errorf("sqlstore: broadcaster id is required")
	}
	if sub.Secret == "" {
		return core.WebhookSubscription{}, fmt.Errorf("sqlstore: subscription secret is required")
	}
	if sub.EventType == "" {
		return core.WebhookSubscription{}, fmt.Errorf("sqlstore: event type is required")
	}
	if strings.TrimSpace(string(sub.Status)) == "" {
		sub.Status = core.SubscriptionStatusPending
	}
	now := time.Now().UTC()

	record := &webhookSubscriptionRecord{
		ID:            strings.TrimSpace(sub.ID),
		BroadcasterID: sub.BroadcasterID,
		RemoteID:      strings.TrimSpace(sub.RemoteID),
		Secret:        sub.Secret,
		EventType:     sub.EventType,
		Status:        string(sub.Status),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return core.WebhookSubscription{}, err
	}
	return created.toDomain(), nil
}

func (s *SubscriptionStore) GetByRemoteID(ctx context.Context, remoteID string) (core.WebhookSubscription, error) {
	if s == nil || s.repo == nil {
		return core.WebhookSubscription{}, fmt.Errorf("sqlstore: subscription store is not configured")
	}
	remoteID = strings.TrimSpace(remoteID)
	if remoteID == "" {
		return core.WebhookSubscription{}, fmt.Errorf("%w: remote id is empty", core.ErrSubscriptionNotFound)
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("remote_id", "=", remoteID),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.WebhookSubscription{}, err
	}
	if len(records) == 0 {
		return core.WebhookSubscription{}, fmt.Errorf("%w: remote id %q", core.ErrSubscriptionNotFound, remoteID)
	}
	return records[0].toDomain(), nil
}

// FindPendingByBroadcaster resolves the verification handshake: the
// provider has no remote id to offer yet, so the newest pending row for
// the broadcaster carries the signing secret.
func (s *SubscriptionStore) FindPendingByBroadcaster(ctx context.Context, broadcasterID string) (core.WebhookSubscription, error) {
	if s == nil || s.repo == nil {
		return core.WebhookSubscription{}, fmt.Errorf("sqlstore: subscription store is not configured")
	}
	broadcasterID = strings.TrimSpace(broadcasterID)
	if broadcasterID == "" {
		return core.WebhookSubscription{}, fmt.Errorf("%w: broadcaster id is empty", core.ErrSubscriptionNotFound)
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("broadcaster_id", "=", broadcasterID),
		repository.SelectBy("status", "=", string(core.SubscriptionStatusPending)),
		repository.OrderBy("created_at DESC"),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.WebhookSubscription{}, err
	}
	if len(records) == 0 {
		return core.WebhookSubscription{}, fmt.Errorf(
			"%w: no pending subscription for broadcaster %q",
			core.ErrSubscriptionNotFound, broadcasterID,
		)
	}
	return records[0].toDomain(), nil
}

func (s *SubscriptionStore) Enable(ctx context.Context, id string, remoteID string) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: subscription store is not configured")
	}
	id = strings.TrimSpace(id)
	remoteID = strings.TrimSpace(remoteID)
	if id == "" || remoteID == "" {
		return fmt.Errorf("sqlstore: subscription id and remote id are required")
	}
	record, err := s.getRecord(ctx, "id", id)
	if err != nil {
		return err
	}
	record.Status = string(core.SubscriptionStatusEnabled)
	record.RemoteID = remoteID
	record.UpdatedAt = time.Now().UTC()
	_, err = s.repo.Update(ctx, record, repository.UpdateByID(record.ID))
	return err
}

func (s *SubscriptionStore) Revoke(ctx context.Context, remoteID string) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: subscription store is not configured")
	}
	remoteID = strings.TrimSpace(remoteID)
	if remoteID == "" {
		return fmt.Errorf("sqlstore: remote id is required")
	}
	record, err := s.getRecord(ctx, "remote_id", remoteID)
	if err != nil {
		return err
	}
	record.Status = string(core.SubscriptionStatusRevoked)
	record.UpdatedAt = time.Now().UTC()
	_, err = s.repo.Update(ctx, record, repository.UpdateByID(record.ID))
	return err
}

func (s *SubscriptionStore) getRecord(ctx context.Context, column string, value string) (*webhookSubscriptionRecord, error) {
	records, _, err := s.repo.List(ctx,
		repository.SelectBy(column, "=", value),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s %q", core.ErrSubscriptionNotFound, column, value)
	}
	return records[0], nil
}
