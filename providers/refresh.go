package providers

import (
	"context"

	"github.com/goliatone/go-publisher/core"
)

// PublishWithRefresh runs one publish call and, on an auth failure, performs
// the single local refresh retry every adapter shares: refresh the token,
// retry once, and surface whatever the retry returns. The retry never leaves
// the current delivery attempt, so the worker's cross-attempt retry budget
// is untouched.
func PublishWithRefresh(
	ctx context.Context,
	credentials core.CredentialProvider,
	req core.PublishRequest,
	publish func(ctx context.Context, token string) (core.PublishResult, error),
) (core.PublishResult, error) {
	result, err := publish(ctx, req.Credentials.AccessToken)
	if err == nil || !IsAuthFailure(err) || credentials == nil {
		return result, err
	}

	refreshed, refreshErr := credentials.Refresh(ctx, req.Content.UserID, req.Platform)
	if refreshErr != nil {
		// A refresh that cannot complete says nothing about the content or
		// the grant; the worker retries it with the normal budget.
		return core.PublishResult{}, core.TransientError("providers: refresh credentials", refreshErr)
	}
	return publish(ctx, refreshed.AccessToken)
}
