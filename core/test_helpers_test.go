package core

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// stubContentStore and stubDeliveryJobStore back the dispatcher and worker
// tests with in-memory state guarded the way the SQL stores guard rows:
// EnsureJob enforces the (content_id, platform) pair and Claim is a
// compare-and-swap on status.

type stubContentStore struct {
	mu       sync.Mutex
	contents map[int64]Content
	statuses []ContentStatus
}

func newStubContentStore(contents ...Content) *stubContentStore {
	store := &stubContentStore{contents: map[int64]Content{}}
	for _, content := range contents {
		store.contents[content.ID] = content
	}
	return store
}

func (s *stubContentStore) FindDue(_ context.Context, now time.Time, limit int) ([]Content, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	due := make([]Content, 0)
	for _, content := range s.contents {
		if content.Status == ContentStatusScheduled && !content.ScheduledFor.After(now) {
			due = append(due, content)
		}
		if limit > 0 && len(due) >= limit {
			break
		}
	}
	return due, nil
}

func (s *stubContentStore) Get(_ context.Context, id int64) (Content, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	content, ok := s.contents[id]
	if !ok {
		return Content{}, fmt.Errorf("%w: id %d", ErrContentNotFound, id)
	}
	return content, nil
}

func (s *stubContentStore) ListForRollup(_ context.Context, limit int) ([]Content, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	candidates := make([]Content, 0)
	for _, content := range s.contents {
		if !content.Status.Terminal() {
			candidates = append(candidates, content)
		}
		if limit > 0 && len(candidates) >= limit {
			break
		}
	}
	return candidates, nil
}

func (s *stubContentStore) UpdateStatus(_ context.Context, id int64, status ContentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	content, ok := s.contents[id]
	if !ok {
		return fmt.Errorf("%w: id %d", ErrContentNotFound, id)
	}
	content.Status = status
	s.contents[id] = content
	s.statuses = append(s.statuses, status)
	return nil
}

type jobKey struct {
	contentID int64
	platform  Platform
}

type stubDeliveryJobStore struct {
	mu     sync.Mutex
	nextID int64
	jobs   map[jobKey]*DeliveryJob

	ensureErr error
}

func newStubDeliveryJobStore() *stubDeliveryJobStore {
	return &stubDeliveryJobStore{jobs: map[jobKey]*DeliveryJob{}}
}

func (s *stubDeliveryJobStore) EnsureJob(_ context.Context, contentID int64, platform Platform) (DeliveryJob, bool, error) {
	if s.ensureErr != nil {
		return DeliveryJob{}, false, s.ensureErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := jobKey{contentID: contentID, platform: platform}
	if existing, ok := s.jobs[key]; ok {
		return *existing, false, nil
	}
	s.nextID++
	job := &DeliveryJob{
		ID:        s.nextID,
		ContentID: contentID,
		Platform:  platform,
		Status:    DeliveryStatusPending,
	}
	s.jobs[key] = job
	return *job, true, nil
}

func (s *stubDeliveryJobStore) Claim(_ context.Context, now time.Time) (DeliveryJob, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, job := range s.jobs {
		if job.Status != DeliveryStatusPending && job.Status != DeliveryStatusRetrying {
			continue
		}
		if job.NextRetryAt != nil && job.NextRetryAt.After(now) {
			continue
		}
		job.Status = DeliveryStatusPublishing
		return *job, true, nil
	}
	return DeliveryJob{}, false, nil
}

func (s *stubDeliveryJobStore) ListForContent(_ context.Context, contentID int64) ([]DeliveryJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	jobs := make([]DeliveryJob, 0)
	for _, job := range s.jobs {
		if job.ContentID == contentID {
			jobs = append(jobs, *job)
		}
	}
	return jobs, nil
}

func (s *stubDeliveryJobStore) MarkPublished(_ context.Context, jobID int64, externalID string, publishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job := s.findLocked(jobID)
	if job == nil {
		return fmt.Errorf("%w: id %d", ErrDeliveryJobNotFound, jobID)
	}
	job.Status = DeliveryStatusPublished
	job.ExternalID = externalID
	job.PublishedAt = &publishedAt
	job.ErrorMessage = ""
	job.NextRetryAt = nil
	return nil
}

func (s *stubDeliveryJobStore) MarkRetrying(_ context.Context, jobID int64, retryCount int, nextRetryAt time.Time, cause error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job := s.findLocked(jobID)
	if job == nil {
		return fmt.Errorf("%w: id %d", ErrDeliveryJobNotFound, jobID)
	}
	job.Status = DeliveryStatusRetrying
	job.RetryCount = retryCount
	job.NextRetryAt = &nextRetryAt
	if cause != nil {
		job.ErrorMessage = cause.Error()
	}
	return nil
}

func (s *stubDeliveryJobStore) MarkFailed(_ context.Context, jobID int64, cause error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job := s.findLocked(jobID)
	if job == nil {
		return fmt.Errorf("%w: id %d", ErrDeliveryJobNotFound, jobID)
	}
	job.Status = DeliveryStatusFailed
	job.NextRetryAt = nil
	if cause != nil {
		job.ErrorMessage = cause.Error()
	}
	return nil
}

func (s *stubDeliveryJobStore) CancelForContent(_ context.Context, contentID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	canceled := 0
	for _, job := range s.jobs {
		if job.ContentID != contentID || job.Status.Terminal() {
			continue
		}
		if job.Status == DeliveryStatusPublishing {
			continue
		}
		job.Status = DeliveryStatusCanceled
		canceled++
	}
	return canceled, nil
}

func (s *stubDeliveryJobStore) get(contentID int64, platform Platform) DeliveryJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobKey{contentID: contentID, platform: platform}]
	if !ok {
		return DeliveryJob{}
	}
	return *job
}

func (s *stubDeliveryJobStore) findLocked(jobID int64) *DeliveryJob {
	for _, job := range s.jobs {
		if job.ID == jobID {
			return job
		}
	}
	return nil
}

type stubCredentialProvider struct {
	resolveErr error
	refreshed  int
}

func (p *stubCredentialProvider) Resolve(_ context.Context, _ int64, _ Platform) (Credentials, error) {
	if p.resolveErr != nil {
		return Credentials{}, p.resolveErr
	}
	return Credentials{AccessToken: "token"}, nil
}

func (p *stubCredentialProvider) Refresh(_ context.Context, _ int64, _ Platform) (Credentials, error) {
	p.refreshed++
	return Credentials{AccessToken: "token-refreshed"}, nil
}

type stubPublisher struct {
	platform Platform
	results  []publishOutcome
	calls    []PublishRequest
}

type publishOutcome struct {
	externalID string
	err        error
}

func (p *stubPublisher) Platform() Platform {
	return p.platform
}

func (p *stubPublisher) Publish(_ context.Context, req PublishRequest) (PublishResult, error) {
	p.calls = append(p.calls, req)
	if len(p.results) == 0 {
		return PublishResult{ExternalID: "ext-default"}, nil
	}
	outcome := p.results[0]
	if len(p.results) > 1 {
		p.results = p.results[1:]
	}
	if outcome.err != nil {
		return PublishResult{}, outcome.err
	}
	return PublishResult{ExternalID: outcome.externalID}, nil
}

var (
	_ ContentStore       = (*stubContentStore)(nil)
	_ DeliveryJobStore   = (*stubDeliveryJobStore)(nil)
	_ CredentialProvider = (*stubCredentialProvider)(nil)
	_ Publisher          = (*stubPublisher)(nil)
)
