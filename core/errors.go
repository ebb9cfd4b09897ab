package core

import (
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	PublisherErrorBadInput            = "PUBLISHER_BAD_INPUT"
	PublisherErrorPlatformUnsupported = "PUBLISHER_PLATFORM_UNSUPPORTED"
	PublisherErrorRateLimited         = "PUBLISHER_RATE_LIMITED"
	PublisherErrorUpstreamUnavailable = "PUBLISHER_UPSTREAM_UNAVAILABLE"
	PublisherErrorUnauthorized        = "PUBLISHER_UNAUTHORIZED"
	PublisherErrorContentRejected     = "PUBLISHER_CONTENT_REJECTED"
	PublisherErrorSignatureInvalid    = "PUBLISHER_SIGNATURE_INVALID"
	PublisherErrorInternal            = "PUBLISHER_INTERNAL_ERROR"
)

// TransientError marks a failure the worker may retry: timeouts, 5xx
// responses, rate limits, and refresh-then-retry failures.
func TransientError(message string, cause error) *goerrors.Error {
	err := goerrors.New(message, goerrors.CategoryOperation).
		WithTextCode(PublisherErrorUpstreamUnavailable).
		WithCode(http.StatusBadGateway)
	if cause != nil {
		err = goerrors.Wrap(cause, goerrors.CategoryOperation, message).
			WithTextCode(PublisherErrorUpstreamUnavailable).
			WithCode(http.StatusBadGateway)
	}
	return err
}

// PermanentError marks a failure no retry budget can recover: rejected
// content, revoked accounts, non-retryable 4xx responses.
func PermanentError(message string, cause error) *goerrors.Error {
	err := goerrors.New(message, goerrors.CategoryBadInput).
		WithTextCode(PublisherErrorContentRejected).
		WithCode(http.StatusUnprocessableEntity)
	if cause != nil {
		err = goerrors.Wrap(cause, goerrors.CategoryBadInput, message).
			WithTextCode(PublisherErrorContentRejected).
			WithCode(http.StatusUnprocessableEntity)
	}
	return err
}

// RateLimitedError is transient by classification but carries its own
// category so operators can tell throttling apart from outages.
func RateLimitedError(message string, cause error) *goerrors.Error {
	if cause != nil {
		return goerrors.Wrap(cause, goerrors.CategoryRateLimit, message).
			WithTextCode(PublisherErrorRateLimited).
			WithCode(http.StatusTooManyRequests)
	}
	return goerrors.New(message, goerrors.CategoryRateLimit).
		WithTextCode(PublisherErrorRateLimited).
		WithCode(http.StatusTooManyRequests)
}

// AuthError marks an unrecoverable credential failure. A 401 that survives
// the adapter's single local refresh retry lands here.
func AuthError(message string, cause error) *goerrors.Error {
	if cause != nil {
		return goerrors.Wrap(cause, goerrors.CategoryAuth, message).
			WithTextCode(PublisherErrorUnauthorized).
			WithCode(http.StatusUnauthorized)
	}
	return goerrors.New(message, goerrors.CategoryAuth).
		WithTextCode(PublisherErrorUnauthorized).
		WithCode(http.StatusUnauthorized)
}

// RetryAfterHint extracts the retry delay a rate-limited failure carries in
// its metadata, when the upstream response included one.
func RetryAfterHint(err error) (time.Duration, bool) {
	if err == nil {
		return 0, false
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr.Metadata == nil {
		return 0, false
	}
	switch value := richErr.Metadata["retry_after_ms"].(type) {
	case int64:
		if value > 0 {
			return time.Duration(value) * time.Millisecond, true
		}
	case int:
		if value > 0 {
			return time.Duration(value) * time.Millisecond, true
		}
	case float64:
		if value > 0 {
			return time.Duration(value) * time.Millisecond, true
		}
	}
	return 0, false
}

// IsTransient classifies a publish failure for the retry state machine.
// Unknown plain errors default to transient so a crash-adjacent blip is
// retried rather than terminally failed.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		switch richErr.Category {
		case goerrors.CategoryAuth, goerrors.CategoryAuthz,
			goerrors.CategoryBadInput, goerrors.CategoryValidation,
			goerrors.CategoryNotFound:
			return false
		case goerrors.CategoryRateLimit, goerrors.CategoryOperation,
			goerrors.CategoryExternal, goerrors.CategoryInternal:
			return true
		}
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "account revoked"),
		strings.Contains(msg, "unlinked"),
		strings.Contains(msg, "invalid content"),
		strings.Contains(msg, "rejected"):
		return false
	}
	return true
}

func publisherErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensurePublisherErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "unsupported platform"):
		return newPublisherError(err.Error(), goerrors.CategoryNotFound, PublisherErrorPlatformUnsupported)
	case strings.Contains(msg, "signature"):
		return newPublisherError(err.Error(), goerrors.CategoryAuthz, PublisherErrorSignatureInvalid)
	case strings.Contains(msg, "throttl"), strings.Contains(msg, "rate limit"):
		return newPublisherError(err.Error(), goerrors.CategoryRateLimit, PublisherErrorRateLimited)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "malformed"):
		return newPublisherError(err.Error(), goerrors.CategoryBadInput, PublisherErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensurePublisherErrorEnvelope(mapped)
}

func newPublisherError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensurePublisherErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensurePublisherErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = publisherHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultPublisherTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultPublisherTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return PublisherErrorBadInput
	case goerrors.CategoryNotFound:
		return PublisherErrorPlatformUnsupported
	case goerrors.CategoryAuth:
		return PublisherErrorUnauthorized
	case goerrors.CategoryAuthz:
		return PublisherErrorSignatureInvalid
	case goerrors.CategoryRateLimit:
		return PublisherErrorRateLimited
	case goerrors.CategoryOperation, goerrors.CategoryExternal:
		return PublisherErrorUpstreamUnavailable
	default:
		return PublisherErrorInternal
	}
}

func publisherHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryOperation, goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
