package providers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-publisher/core"
)

// ClassifyStatus turns a platform HTTP response into the failure taxonomy
// the retry state machine consumes. A nil return means success.
//
//	401            auth failure, eligible for one local refresh retry
//	429            rate limited, transient
//	408 / 5xx      transient
//	remaining 4xx  permanent, the payload will never be accepted
func ClassifyStatus(platform core.Platform, res Response) error {
	status := res.StatusCode
	switch {
	case status >= http.StatusOK && status < http.StatusMultipleChoices:
		return nil
	case status == http.StatusUnauthorized:
		return core.AuthError(
			fmt.Sprintf("providers: %s rejected the access token", platform),
			nil,
		)
	case status == http.StatusTooManyRequests:
		message := fmt.Sprintf("providers: %s rate limited the request", platform)
		err := core.RateLimitedError(message, nil)
		if delay := retryAfter(res); delay > 0 {
			err = core.RateLimitedError(fmt.Sprintf("%s, retry after %s", message, delay), nil).
				WithMetadata(map[string]any{"retry_after_ms": delay.Milliseconds()})
		}
		return err
	case status == http.StatusRequestTimeout || status >= http.StatusInternalServerError:
		return core.TransientError(
			fmt.Sprintf("providers: %s responded %d: %s", platform, status, truncateBody(res.Body)),
			nil,
		)
	default:
		return core.PermanentError(
			fmt.Sprintf("providers: %s rejected the request with %d: %s", platform, status, truncateBody(res.Body)),
			nil,
		)
	}
}

// IsAuthFailure reports whether the failure is the 401 class that earns a
// single local credential refresh retry.
func IsAuthFailure(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.Category == goerrors.CategoryAuth
	}
	return false
}

func retryAfter(res Response) time.Duration {
	if res.Header == nil {
		return 0
	}
	value := strings.TrimSpace(res.Header.Get("Retry-After"))
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func truncateBody(body []byte) string {
	const limit = 256
	text := strings.TrimSpace(string(body))
	if len(text) > limit {
		return text[:limit] + "..."
	}
	return text
}
