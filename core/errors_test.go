package core

import (
	"errors"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestIsTransientClassification(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		transient bool
	}{
		{name: "nil", err: nil, transient: false},
		{name: "transient envelope", err: TransientError("upstream 503", nil), transient: true},
		{name: "rate limited envelope", err: RateLimitedError("throttled", nil), transient: true},
		{name: "permanent envelope", err: PermanentError("content rejected", nil), transient: false},
		{name: "auth envelope", err: AuthError("token revoked", nil), transient: false},
		{name: "plain timeout", err: errors.New("request timed out"), transient: true},
		{name: "plain account revoked", err: errors.New("platform: account revoked"), transient: false},
		{name: "plain rejected", err: errors.New("post rejected by moderation"), transient: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsTransient(tc.err); got != tc.transient {
				t.Fatalf("expected transient=%v, got %v", tc.transient, got)
			}
		})
	}
}

func TestTransientErrorWrapsCause(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := TransientError("publish to discord", cause)

	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause to survive errors.Is")
	}
	if err.TextCode != PublisherErrorUpstreamUnavailable {
		t.Fatalf("expected text code %s, got %s", PublisherErrorUpstreamUnavailable, err.TextCode)
	}
	if err.Code != http.StatusBadGateway {
		t.Fatalf("expected HTTP 502, got %d", err.Code)
	}
}

func TestPublisherErrorMapperPassthrough(t *testing.T) {
	original := RateLimitedError("throttled", nil)
	mapped := publisherErrorMapper(original)
	if mapped.Category != goerrors.CategoryRateLimit {
		t.Fatalf("expected rate limit category preserved, got %s", mapped.Category)
	}
	if mapped.TextCode != PublisherErrorRateLimited {
		t.Fatalf("expected text code preserved, got %s", mapped.TextCode)
	}
}

func TestPublisherErrorMapperPlainErrors(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		category goerrors.Category
		textCode string
		status   int
	}{
		{
			name:     "unsupported platform",
			err:      errors.New("core: unsupported platform: \"myspace\""),
			category: goerrors.CategoryNotFound,
			textCode: PublisherErrorPlatformUnsupported,
			status:   http.StatusNotFound,
		},
		{
			name:     "signature",
			err:      errors.New("webhooks: signature mismatch"),
			category: goerrors.CategoryAuthz,
			textCode: PublisherErrorSignatureInvalid,
			status:   http.StatusForbidden,
		},
		{
			name:     "bad input",
			err:      errors.New("content id is required"),
			category: goerrors.CategoryBadInput,
			textCode: PublisherErrorBadInput,
			status:   http.StatusBadRequest,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mapped := publisherErrorMapper(tc.err)
			if mapped == nil {
				t.Fatalf("expected mapped error")
			}
			if mapped.Category != tc.category {
				t.Fatalf("expected category %s, got %s", tc.category, mapped.Category)
			}
			if mapped.TextCode != tc.textCode {
				t.Fatalf("expected text code %s, got %s", tc.textCode, mapped.TextCode)
			}
			if mapped.Code != tc.status {
				t.Fatalf("expected HTTP %d, got %d", tc.status, mapped.Code)
			}
		})
	}
}

func TestPublisherErrorMapperNil(t *testing.T) {
	if mapped := publisherErrorMapper(nil); mapped != nil {
		t.Fatalf("expected nil mapping for nil error, got %v", mapped)
	}
}
