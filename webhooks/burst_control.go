package webhooks

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

type BurstMode string

const (
	BurstModeNone     BurstMode = "none"
	BurstModeCoalesce BurstMode = "coalesce"
	BurstModeDebounce BurstMode = "debounce"
)

type BurstDecision struct {
	Allow    bool
	Metadata map[string]any
}

// BurstController collapses notification floods before they reach the event
// store. A broadcaster flapping online/offline can emit dozens of identical
// notifications in seconds; only the first inside the window matters.
type BurstController interface {
	Allow(ctx context.Context, req InboundRequest) (BurstDecision, error)
}

type BurstKeyExtractor func(req InboundRequest) (string, bool)

type BurstOptions struct {
	Mode       BurstMode
	Window     time.Duration
	MaxEntries int
	ExtractKey BurstKeyExtractor
	Now        func() time.Time
}

type DefaultBurstController struct {
	mode       BurstMode
	window     time.Duration
	maxEntries int
	extractKey BurstKeyExtractor
	now        func() time.Time

	mu      sync.Mutex
	entries map[string]time.Time
}

func NewBurstController(opts BurstOptions) *DefaultBurstController {
	mode := normalizeBurstMode(opts.Mode)
	window := opts.Window
	if window <= 0 {
		window = 2 * time.Second
	}
	maxEntries := opts.MaxEntries
	if maxEntries <= 0 {
		maxEntries = 4096
	}
	extractKey := opts.ExtractKey
	if extractKey == nil {
		extractKey = DefaultBurstKeyExtractor
	}
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &DefaultBurstController{
		mode:       mode,
		window:     window,
		maxEntries: maxEntries,
		extractKey: extractKey,
		now:        now,
		entries:    map[string]time.Time{},
	}
}

func (c *DefaultBurstController) Allow(_ context.Context, req InboundRequest) (BurstDecision, error) {
	if c == nil {
		return BurstDecision{Allow: true}, nil
	}
	if c.mode == BurstModeNone {
		return BurstDecision{Allow: true}, nil
	}
	key, ok := c.extractKey(req)
	if !ok {
		return BurstDecision{Allow: true}, nil
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return BurstDecision{Allow: true}, nil
	}

	now := c.now().UTC()
	c.mu.Lock()
	defer c.mu.Unlock()

	lastSeen, exists := c.entries[key]
	c.entries[key] = now
	c.cleanup(now)
	if !exists {
		return BurstDecision{Allow: true}, nil
	}
	if now.Sub(lastSeen) >= c.window {
		return BurstDecision{Allow: true}, nil
	}

	metadata := map[string]any{
		"burst_mode":      string(c.mode),
		"burst_key":       key,
		"burst_window_ms": c.window.Milliseconds(),
	}
	switch c.mode {
	case BurstModeCoalesce:
		metadata["coalesced"] = true
	case BurstModeDebounce:
		metadata["debounced"] = true
	default:
		return BurstDecision{Allow: true}, nil
	}
	return BurstDecision{Allow: false, Metadata: metadata}, nil
}

func (c *DefaultBurstController) cleanup(now time.Time) {
	if len(c.entries) <= c.maxEntries {
		for key, seenAt := range c.entries {
			if now.Sub(seenAt) > c.window*4 {
				delete(c.entries, key)
			}
		}
		return
	}
	for key, seenAt := range c.entries {
		if now.Sub(seenAt) > c.window {
			delete(c.entries, key)
		}
		if len(c.entries) <= c.maxEntries {
			break
		}
	}
}

// DefaultBurstKeyExtractor keys bursts on broadcaster + event type so
// unrelated event streams never suppress each other.
func DefaultBurstKeyExtractor(req InboundRequest) (string, bool) {
	broadcaster := ""
	eventType := ""
	if req.Metadata != nil {
		broadcaster = metadataString(req.Metadata, "broadcaster_user_id")
		eventType = metadataString(req.Metadata, "event_type")
	}
	if eventType == "" {
		eventType = strings.TrimSpace(headerValue(req.Headers, HeaderSubscriptionType))
	}
	if broadcaster == "" {
		return "", false
	}
	return strings.ToLower(broadcaster + ":" + eventType), true
}

func metadataString(metadata map[string]any, key string) string {
	value := strings.TrimSpace(fmt.Sprint(metadata[key]))
	if value == "" || value == "<nil>" {
		return ""
	}
	return value
}

func normalizeBurstMode(mode BurstMode) BurstMode {
	switch strings.ToLower(strings.TrimSpace(string(mode))) {
	case string(BurstModeCoalesce):
		return BurstModeCoalesce
	case string(BurstModeDebounce):
		return BurstModeDebounce
	default:
		return BurstModeNone
	}
}

var _ BurstController = (*DefaultBurstController)(nil)
