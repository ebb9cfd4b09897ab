package ratelimit

import (
	"net/http"
	"strings"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-publisher/core"
)

func TestThrottledError_MessageNamesPlatformAndBucket(t *testing.T) {
	err := ThrottledError{
		Platform:   core.PlatformDiscord,
		Bucket:     DefaultBucket,
		RetryAfter: 5 * time.Second,
	}
	msg := err.Error()
	if !strings.Contains(msg, "discord") || !strings.Contains(msg, DefaultBucket) {
		t.Fatalf("expected platform and bucket in message, got %q", msg)
	}
	if !strings.Contains(msg, "5s") {
		t.Fatalf("expected retry window in message, got %q", msg)
	}
}

func TestThrottledError_ToPublisherErrorEnvelope(t *testing.T) {
	richErr := ThrottledError{
		Platform:   core.PlatformTwitch,
		Bucket:     DefaultBucket,
		RetryAfter: 90 * time.Second,
	}.ToPublisherError()

	if richErr.Category != goerrors.CategoryRateLimit {
		t.Fatalf("expected rate limit category, got %s", richErr.Category)
	}
	if richErr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 code, got %d", richErr.Code)
	}
	if richErr.TextCode != core.PublisherErrorRateLimited {
		t.Fatalf("expected %s, got %s", core.PublisherErrorRateLimited, richErr.TextCode)
	}
	if richErr.Metadata["platform"] != "twitch" {
		t.Fatalf("expected platform metadata, got %#v", richErr.Metadata)
	}
	if richErr.Metadata["retry_after_ms"] != int64(90_000) {
		t.Fatalf("expected retry_after_ms metadata, got %#v", richErr.Metadata)
	}

	if !core.IsTransient(richErr) {
		t.Fatalf("expected throttle failures to classify as transient")
	}
}

func TestThrottledError_NoHintOmitsMetadata(t *testing.T) {
	richErr := ThrottledError{Platform: core.PlatformTwitter, Bucket: DefaultBucket}.ToPublisherError()
	if _, ok := richErr.Metadata["retry_after_ms"]; ok {
		t.Fatalf("expected no retry hint metadata, got %#v", richErr.Metadata)
	}
	if _, ok := core.RetryAfterHint(richErr); ok {
		t.Fatalf("expected no retry hint")
	}
}
