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

type InboundEventStore struct {
	db   *bun.DB
	repo repository.Repository[*inboundEventRecord]
}

func NewInboundEventStore(db *bun.DB) (*InboundEventStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*inboundEventRecord](db, inboundEventHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid inbound event repository wiring: %w", err)
		}
	}
	return &InboundEventStore{
		db:   db,
		repo: repo,
	}, nil
}

// Insert persists the event unless its message id was already recorded. A
// redelivered notification resolves to the original row with created=false.
func (s *InboundEventStore) Insert(ctx context.Context, event core.InboundEvent) (core.InboundEvent, bool, error) {
	if s == nil || s.db == nil {
		return core.InboundEvent{}, false, fmt.Errorf("sqlstore: inbound event store is not configured")
	}
	event.MessageID = strings.TrimSpace(event.MessageID)
	event.BroadcasterID = strings.TrimSpace(event.BroadcasterID)
	event.EventType = strings.TrimSpace(event.EventType)
	if event.MessageID == "" {
		return core.InboundEvent{}, false, fmt.Errorf("sqlstore: message id is required")
	}
	if event.EventType == "" {
		return core.InboundEvent{}, false, fmt.Errorf("sqlstore: event type is required")
	}

	receivedAt := event.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now().UTC()
	}
	record := &inboundEventRecord{
		ID:            strings.TrimSpace(event.ID),
		MessageID:     event.MessageID,
		BroadcasterID: event.BroadcasterID,
		EventType:     event.EventType,
		Payload:       copyAnyMap(event.Payload),
		ReceivedAt:    receivedAt.UTC(),
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Payload == nil {
		record.Payload = map[string]any{}
	}
	// The insert stays on bun directly: the message-id dedup depends on
	// the driver's unique violation error surfacing intact.
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			existing, getErr := s.getByMessageID(ctx, event.MessageID)
			if getErr != nil {
				return core.InboundEvent{}, false, getErr
			}
			return existing, false, nil
		}
		return core.InboundEvent{}, false, err
	}
	return record.toDomain(), true, nil
}

func (s *InboundEventStore) getByMessageID(ctx context.Context, messageID string) (core.InboundEvent, error) {
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("message_id", "=", messageID),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.InboundEvent{}, err
	}
	if len(records) == 0 {
		return core.InboundEvent{}, fmt.Errorf("sqlstore: inbound event not found for message %q", messageID)
	}
	return records[0].toDomain(), nil
}
