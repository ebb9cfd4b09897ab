package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-publisher/core"
	"github.com/uptrace/bun"
)

type ContentStore struct {
	db *bun.DB
}

func NewContentStore(db *bun.DB) (*ContentStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &ContentStore{db: db}, nil
}

// Create persists a new scheduled content row. The engine never calls this;
// it exists for the outer CRUD surface and for seeding tests.
func (s *ContentStore) Create(ctx context.Context, content core.Content) (core.Content, error) {
	if s == nil || s.db == nil {
		return core.Content{}, fmt.Errorf("sqlstore: content store is not configured")
	}
	if strings.TrimSpace(content.Body) == "" {
		return core.Content{}, fmt.Errorf("sqlstore: content body is required")
	}
	if len(content.Platforms) == 0 {
		return core.Content{}, fmt.Errorf("sqlstore: at least one target platform is required")
	}
	status := content.Status
	if strings.TrimSpace(string(status)) == "" {
		status = core.ContentStatusScheduled
	}
	contentType := strings.TrimSpace(content.ContentType)
	if contentType == "" {
		contentType = "text"
	}
	now := time.Now().UTC()

	record := &contentRecord{
		UserID:       content.UserID,
		Title:        content.Title,
		Body:         content.Body,
		ContentType:  contentType,
		Hashtags:     content.Hashtags,
		Mentions:     content.Mentions,
		Attachments:  copyStringSlice(content.Attachments),
		Platforms:    platformStrings(content.Platforms),
		ScheduledFor: content.ScheduledFor.UTC(),
		Status:       string(status),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if record.Attachments == nil {
		record.Attachments = []string{}
	}
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return core.Content{}, err
	}
	return record.toDomain(), nil
}

func (s *ContentStore) FindDue(ctx context.Context, now time.Time, limit int) ([]core.Content, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: content store is not configured")
	}
	if limit <= 0 {
		limit = 50
	}
	var records []*contentRecord
	err := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.status = ?", string(core.ContentStatusScheduled)).
		Where("?TableAlias.scheduled_for <= ?", now.UTC()).
		OrderExpr("?TableAlias.scheduled_for ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return contentsToDomain(records), nil
}

func (s *ContentStore) Get(ctx context.Context, id int64) (core.Content, error) {
	if s == nil || s.db == nil {
		return core.Content{}, fmt.Errorf("sqlstore: content store is not configured")
	}
	record := &contentRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Content{}, fmt.Errorf("%w: id %d", core.ErrContentNotFound, id)
		}
		return core.Content{}, err
	}
	return record.toDomain(), nil
}

// ListForRollup returns non-terminal content that already has delivery jobs
// so the dispatcher can recompute aggregate status.
func (s *ContentStore) ListForRollup(ctx context.Context, limit int) ([]core.Content, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: content store is not configured")
	}
	if limit <= 0 {
		limit = 50
	}
	var records []*contentRecord
	err := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.status = ?", string(core.ContentStatusScheduled)).
		Where("EXISTS (SELECT 1 FROM delivery_jobs dj WHERE dj.content_id = ?TableAlias.id)").
		OrderExpr("?TableAlias.scheduled_for ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return contentsToDomain(records), nil
}

func (s *ContentStore) UpdateStatus(ctx context.Context, id int64, status core.ContentStatus) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: content store is not configured")
	}
	result, err := s.db.NewUpdate().
		Model((*contentRecord)(nil)).
		Set("status = ?", string(status)).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: id %d", core.ErrContentNotFound, id)
	}
	return nil
}

func contentsToDomain(records []*contentRecord) []core.Content {
	out := make([]core.Content, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out
}
