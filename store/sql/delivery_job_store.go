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

// claimCandidateBatch bounds how many due jobs one Claim call races over
// before reporting an empty queue.
const claimCandidateBatch = 10

type DeliveryJobStore struct {
	db *bun.DB
}

func NewDeliveryJobStore(db *bun.DB) (*DeliveryJobStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &DeliveryJobStore{db: db}, nil
}

// EnsureJob inserts the pending job for the pair unless a row already
// exists. Losing the insert race to a concurrent dispatcher is reported as
// the existing row, not an error.
func (s *DeliveryJobStore) EnsureJob(ctx context.Context, contentID int64, platform core.Platform) (core.DeliveryJob, bool, error) {
	if s == nil || s.db == nil {
		return core.DeliveryJob{}, false, fmt.Errorf("sqlstore: delivery job store is not configured")
	}
	if contentID <= 0 {
		return core.DeliveryJob{}, false, fmt.Errorf("sqlstore: content id is required")
	}
	if strings.TrimSpace(string(platform)) == "" {
		return core.DeliveryJob{}, false, fmt.Errorf("sqlstore: platform is required")
	}

	now := time.Now().UTC()
	record := &deliveryJobRecord{
		ContentID: contentID,
		Platform:  string(platform),
		Status:    string(core.DeliveryStatusPending),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			existing, getErr := s.get(ctx, contentID, platform)
			if getErr != nil {
				return core.DeliveryJob{}, false, getErr
			}
			return existing, false, nil
		}
		return core.DeliveryJob{}, false, err
	}
	return record.toDomain(), true, nil
}

// Claim moves one due job to publishing via a conditional update. The
// status and next_retry_at predicates repeat in the UPDATE so two workers
// racing over the same candidate resolve to a single winner.
func (s *DeliveryJobStore) Claim(ctx context.Context, now time.Time) (core.DeliveryJob, bool, error) {
	if s == nil || s.db == nil {
		return core.DeliveryJob{}, false, fmt.Errorf("sqlstore: delivery job store is not configured")
	}
	now = now.UTC()

	var candidates []*deliveryJobRecord
	err := s.db.NewSelect().
		Model(&candidates).
		Where("?TableAlias.status IN (?, ?)",
			string(core.DeliveryStatusPending),
			string(core.DeliveryStatusRetrying),
		).
		Where("?TableAlias.next_retry_at IS NULL OR ?TableAlias.next_retry_at <= ?", now).
		OrderExpr("?TableAlias.created_at ASC").
		Limit(claimCandidateBatch).
		Scan(ctx)
	if err != nil {
		return core.DeliveryJob{}, false, err
	}

	for _, candidate := range candidates {
		result, updateErr := s.db.NewUpdate().
			Model((*deliveryJobRecord)(nil)).
			Set("status = ?", string(core.DeliveryStatusPublishing)).
			Set("updated_at = ?", now).
			Where("id = ?", candidate.ID).
			Where("status IN (?, ?)",
				string(core.DeliveryStatusPending),
				string(core.DeliveryStatusRetrying),
			).
			Where("next_retry_at IS NULL OR next_retry_at <= ?", now).
			Exec(ctx)
		if updateErr != nil {
			return core.DeliveryJob{}, false, updateErr
		}
		affected, affectedErr := result.RowsAffected()
		if affectedErr != nil {
			return core.DeliveryJob{}, false, affectedErr
		}
		if affected == 0 {
			continue
		}
		claimed := candidate.toDomain()
		claimed.Status = core.DeliveryStatusPublishing
		claimed.UpdatedAt = now
		return claimed, true, nil
	}
	return core.DeliveryJob{}, false, nil
}

func (s *DeliveryJobStore) ListForContent(ctx context.Context, contentID int64) ([]core.DeliveryJob, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: delivery job store is not configured")
	}
	var records []*deliveryJobRecord
	err := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.content_id = ?", contentID).
		OrderExpr("?TableAlias.platform ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	jobs := make([]core.DeliveryJob, 0, len(records))
	for _, record := range records {
		jobs = append(jobs, record.toDomain())
	}
	return jobs, nil
}

func (s *DeliveryJobStore) MarkPublished(ctx context.Context, jobID int64, externalID string, publishedAt time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: delivery job store is not configured")
	}
	result, err := s.db.NewUpdate().
		Model((*deliveryJobRecord)(nil)).
		Set("status = ?", string(core.DeliveryStatusPublished)).
		Set("external_id = ?", externalID).
		Set("published_at = ?", publishedAt.UTC()).
		Set("error_message = ''").
		Set("next_retry_at = NULL").
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", jobID).
		Where("status = ?", string(core.DeliveryStatusPublishing)).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireAffected(result, jobID)
}

func (s *DeliveryJobStore) MarkRetrying(ctx context.Context, jobID int64, retryCount int, nextRetryAt time.Time, cause error) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: delivery job store is not configured")
	}
	result, err := s.db.NewUpdate().
		Model((*deliveryJobRecord)(nil)).
		Set("status = ?", string(core.DeliveryStatusRetrying)).
		Set("retry_count = ?", retryCount).
		Set("next_retry_at = ?", nextRetryAt.UTC()).
		Set("error_message = ?", errorMessage(cause)).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", jobID).
		Where("status = ?", string(core.DeliveryStatusPublishing)).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireAffected(result, jobID)
}

func (s *DeliveryJobStore) MarkFailed(ctx context.Context, jobID int64, cause error) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: delivery job store is not configured")
	}
	result, err := s.db.NewUpdate().
		Model((*deliveryJobRecord)(nil)).
		Set("status = ?", string(core.DeliveryStatusFailed)).
		Set("error_message = ?", errorMessage(cause)).
		Set("next_retry_at = NULL").
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", jobID).
		Where("status = ?", string(core.DeliveryStatusPublishing)).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireAffected(result, jobID)
}

// CancelForContent flips every non-terminal job for the content to
// canceled. A publishing attempt already in flight keeps its row until its
// own terminal write, which will find zero rows and surface the conflict.
func (s *DeliveryJobStore) CancelForContent(ctx context.Context, contentID int64) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: delivery job store is not configured")
	}
	result, err := s.db.NewUpdate().
		Model((*deliveryJobRecord)(nil)).
		Set("status = ?", string(core.DeliveryStatusCanceled)).
		Set("next_retry_at = NULL").
		Set("updated_at = ?", time.Now().UTC()).
		Where("content_id = ?", contentID).
		Where("status IN (?, ?, ?, ?)",
			string(core.DeliveryStatusPending),
			string(core.DeliveryStatusQueued),
			string(core.DeliveryStatusRetrying),
			string(core.DeliveryStatusPublishing),
		).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

func (s *DeliveryJobStore) get(ctx context.Context, contentID int64, platform core.Platform) (core.DeliveryJob, error) {
	record := &deliveryJobRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.content_id = ?", contentID).
		Where("?TableAlias.platform = ?", string(platform)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.DeliveryJob{}, fmt.Errorf(
				"%w: content %d platform %s",
				core.ErrDeliveryJobNotFound, contentID, platform,
			)
		}
		return core.DeliveryJob{}, err
	}
	return record.toDomain(), nil
}

func requireAffected(result sql.Result, jobID int64) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: id %d not in publishing state", core.ErrDeliveryJobNotFound, jobID)
	}
	return nil
}

func errorMessage(cause error) string {
	if cause == nil {
		return ""
	}
	return cause.Error()
}

func isUniqueViolation(err error) bool {
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}
