// Package ratelimit throttles publish attempts per platform. The delivery
// worker asks the policy before each attempt and reports the outcome after,
// so a burst of 429s on one platform stops hammering it without stalling
// deliveries to the others.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-publisher/core"
)

var ErrStateNotFound = errors.New("ratelimit: state not found")

// DefaultBucket groups all publish traffic for a platform. Callers that
// need finer partitioning (per channel, per account) can key their own.
const DefaultBucket = "publish"

type Key struct {
	Platform core.Platform
	Bucket   string
}

// State is the throttle's view of one platform bucket. Attempts counts
// consecutive rate-limited outcomes and resets on the first success.
type State struct {
	Key            Key
	Attempts       int
	ThrottledUntil *time.Time
	LastError      string
	UpdatedAt      time.Time
}

type StateStore interface {
	Get(ctx context.Context, key Key) (State, error)
	Upsert(ctx context.Context, state State) error
}

// ThrottledError is returned from Acquire while a platform bucket is
// cooling down.
type ThrottledError struct {
	Platform   core.Platform
	Bucket     string
	RetryAfter time.Duration
}

func (e ThrottledError) Error() string {
	return fmt.Sprintf(
		"ratelimit: platform %q bucket %q throttled for %s",
		e.Platform,
		strings.TrimSpace(e.Bucket),
		e.RetryAfter,
	)
}

// ToPublisherError wraps the throttle condition in the delivery failure
// taxonomy so the worker reschedules the claim with the retry hint intact.
func (e ThrottledError) ToPublisherError() *goerrors.Error {
	metadata := map[string]any{
		"platform": string(e.Platform),
		"bucket":   strings.TrimSpace(e.Bucket),
	}
	if e.RetryAfter > 0 {
		metadata["retry_after_ms"] = e.RetryAfter.Milliseconds()
	}
	return goerrors.New(e.Error(), goerrors.CategoryRateLimit).
		WithCode(http.StatusTooManyRequests).
		WithTextCode(core.PublisherErrorRateLimited).
		WithMetadata(metadata)
}

// AdaptivePolicy backs off a platform after rate-limited publish outcomes.
// It honors the upstream Retry-After hint when the failure carries one and
// falls back to exponential backoff otherwise.
type AdaptivePolicy struct {
	Store          StateStore
	Now            func() time.Time
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func NewAdaptivePolicy(store StateStore) *AdaptivePolicy {
	return &AdaptivePolicy{
		Store:          store,
		Now:            func() time.Time { return time.Now().UTC() },
		InitialBackoff: time.Second,
		MaxBackoff:     time.Minute,
	}
}

// Acquire reports whether a publish attempt may proceed for the platform.
func (p *AdaptivePolicy) Acquire(ctx context.Context, platform core.Platform) error {
	if p == nil || p.Store == nil {
		return nil
	}
	key := normalizeKey(Key{Platform: platform, Bucket: DefaultBucket})
	state, err := p.Store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrStateNotFound) {
			return nil
		}
		return err
	}

	now := p.now()
	if until := state.ThrottledUntil; until != nil && now.Before(*until) {
		return ThrottledError{
			Platform:   state.Key.Platform,
			Bucket:     state.Key.Bucket,
			RetryAfter: until.Sub(now),
		}.ToPublisherError()
	}
	return nil
}

// Settle records the outcome of a publish attempt. A rate-limited cause
// opens or extends the cooldown; anything else clears it.
func (p *AdaptivePolicy) Settle(ctx context.Context, platform core.Platform, cause error) error {
	if p == nil || p.Store == nil {
		return nil
	}
	key := normalizeKey(Key{Platform: platform, Bucket: DefaultBucket})
	now := p.now()
	state, err := p.Store.Get(ctx, key)
	if err != nil && !errors.Is(err, ErrStateNotFound) {
		return err
	}
	if errors.Is(err, ErrStateNotFound) {
		state = State{Key: key}
	}
	state.UpdatedAt = now

	if !isRateLimited(cause) {
		state.Attempts = 0
		state.ThrottledUntil = nil
		state.LastError = ""
		return p.Store.Upsert(ctx, state)
	}

	state.Attempts++
	state.LastError = cause.Error()
	delay, ok := core.RetryAfterHint(cause)
	if !ok || delay <= 0 {
		delay = p.nextBackoff(state.Attempts)
	}
	until := now.Add(delay)
	state.ThrottledUntil = &until
	return p.Store.Upsert(ctx, state)
}

func (p *AdaptivePolicy) now() time.Time {
	if p != nil && p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

func (p *AdaptivePolicy) nextBackoff(attempt int) time.Duration {
	initial := p.InitialBackoff
	if initial <= 0 {
		initial = time.Second
	}
	maximum := p.MaxBackoff
	if maximum <= 0 {
		maximum = time.Minute
	}
	if attempt <= 0 {
		return initial
	}
	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maximum {
			return maximum
		}
	}
	if delay > maximum {
		return maximum
	}
	return delay
}

func isRateLimited(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.Category == goerrors.CategoryRateLimit
	}
	return false
}

func normalizeKey(key Key) Key {
	bucket := strings.TrimSpace(strings.ToLower(key.Bucket))
	if bucket == "" {
		bucket = DefaultBucket
	}
	return Key{
		Platform: core.Platform(strings.TrimSpace(strings.ToLower(string(key.Platform)))),
		Bucket:   bucket,
	}
}

type MemoryStateStore struct {
	mu    sync.RWMutex
	items map[string]State
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{items: map[string]State{}}
}

func (s *MemoryStateStore) Get(_ context.Context, key Key) (State, error) {
	if s == nil {
		return State{}, fmt.Errorf("ratelimit: state store is nil")
	}
	normalized := normalizeKey(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.items[stateKey(normalized)]
	if !ok {
		return State{}, ErrStateNotFound
	}
	return state, nil
}

func (s *MemoryStateStore) Upsert(_ context.Context, state State) error {
	if s == nil {
		return fmt.Errorf("ratelimit: state store is nil")
	}
	state.Key = normalizeKey(state.Key)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[stateKey(state.Key)] = state
	return nil
}

func stateKey(key Key) string {
	return string(key.Platform) + "|" + key.Bucket
}

var _ core.PublishThrottle = (*AdaptivePolicy)(nil)
