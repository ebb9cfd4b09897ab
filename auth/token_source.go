// Package auth resolves app access tokens for server-to-server platform
// calls. EventSub subscription management authenticates with an app token
// from the client credentials grant rather than a user token.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-publisher/core"
	"github.com/goliatone/go-publisher/providers"
)

const (
	defaultRenewBefore  = time.Minute
	defaultTokenTimeout = 15 * time.Second
	maxTokenBodyBytes   = 1 << 16
)

// AppTokenSource supplies a valid app access token on demand.
type AppTokenSource interface {
	Token(ctx context.Context) (string, error)
}

type ClientCredentialsConfig struct {
	// TokenURL is the provider's token endpoint, e.g.
	// https://id.twitch.tv/oauth2/token.
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
	// RenewBefore renews the cached token this long before its reported
	// expiry so in-flight calls never carry a token about to lapse.
	RenewBefore time.Duration
	Timeout     time.Duration
	HTTPClient  providers.HTTPDoer
	Now         func() time.Time
}

// ClientCredentials fetches and caches an app access token through the
// OAuth2 client credentials grant. Safe for concurrent use; a renewal
// holds the lock so concurrent callers share one upstream request.
type ClientCredentials struct {
	tokenURL     string
	clientID     string
	clientSecret string
	scopes       []string
	renewBefore  time.Duration
	timeout      time.Duration
	httpClient   providers.HTTPDoer
	now          func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func NewClientCredentials(cfg ClientCredentialsConfig) (*ClientCredentials, error) {
	tokenURL := strings.TrimSpace(cfg.TokenURL)
	if tokenURL == "" {
		return nil, fmt.Errorf("auth: token url is required")
	}
	if _, err := url.Parse(tokenURL); err != nil {
		return nil, fmt.Errorf("auth: parse token url: %w", err)
	}
	clientID := strings.TrimSpace(cfg.ClientID)
	if clientID == "" {
		return nil, fmt.Errorf("auth: client id is required")
	}
	clientSecret := strings.TrimSpace(cfg.ClientSecret)
	if clientSecret == "" {
		return nil, fmt.Errorf("auth: client secret is required")
	}

	renewBefore := cfg.RenewBefore
	if renewBefore <= 0 {
		renewBefore = defaultRenewBefore
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTokenTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	return &ClientCredentials{
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		scopes:       append([]string(nil), cfg.Scopes...),
		renewBefore:  renewBefore,
		timeout:      timeout,
		httpClient:   httpClient,
		now:          now,
	}, nil
}

// Token returns the cached app token, renewing it when inside the renewal
// window.
func (s *ClientCredentials) Token(ctx context.Context) (string, error) {
	if s == nil {
		return "", fmt.Errorf("auth: client credentials source is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.token != "" && now.Add(s.renewBefore).Before(s.expiresAt) {
		return s.token, nil
	}

	token, expiresAt, err := s.fetch(ctx, now)
	if err != nil {
		return "", err
	}
	s.token = token
	s.expiresAt = expiresAt
	return token, nil
}

// Invalidate drops the cached token so the next Token call renews. Call it
// after an upstream 401 on a request that carried this token.
func (s *ClientCredentials) Invalidate() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.expiresAt = time.Time{}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

func (s *ClientCredentials) fetch(ctx context.Context, now time.Time) (string, time.Time, error) {
	form := url.Values{}
	form.Set("client_id", s.clientID)
	form.Set("client_secret", s.clientSecret)
	form.Set("grant_type", "client_credentials")
	if len(s.scopes) > 0 {
		form.Set("scope", strings.Join(s.scopes, " "))
	}

	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, s.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	res, err := s.httpClient.Do(req)
	if err != nil {
		return "", time.Time{}, core.TransientError("auth: token endpoint unreachable", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxTokenBodyBytes))
	if err != nil {
		return "", time.Time{}, core.TransientError("auth: read token response", err)
	}
	if err := classifyTokenStatus(res.StatusCode, body); err != nil {
		return "", time.Time{}, err
	}

	var payload tokenResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", time.Time{}, core.TransientError("auth: decode token response", err)
	}
	token := strings.TrimSpace(payload.AccessToken)
	if token == "" {
		return "", time.Time{}, core.AuthError("auth: token endpoint returned no access token", nil)
	}
	if payload.ExpiresIn <= 0 {
		// No expiry reported, force a renewal on the next call.
		return token, now, nil
	}
	return token, now.Add(time.Duration(payload.ExpiresIn) * time.Second), nil
}

func classifyTokenStatus(status int, body []byte) error {
	switch {
	case status >= http.StatusOK && status < http.StatusMultipleChoices:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden || status == http.StatusBadRequest:
		return core.AuthError(
			fmt.Sprintf("auth: token endpoint rejected the client credentials with %d: %s", status, truncate(body)),
			nil,
		)
	case status == http.StatusTooManyRequests:
		return core.RateLimitedError("auth: token endpoint rate limited the request", nil)
	default:
		return core.TransientError(
			fmt.Sprintf("auth: token endpoint responded %d: %s", status, truncate(body)),
			nil,
		)
	}
}

func truncate(body []byte) string {
	const limit = 256
	text := strings.TrimSpace(string(body))
	if len(text) > limit {
		return text[:limit] + "..."
	}
	return text
}

// StaticTokenSource returns a fixed token. Useful for tests and for
// deployments that manage app tokens out of band.
type StaticTokenSource string

func (s StaticTokenSource) Token(context.Context) (string, error) {
	if strings.TrimSpace(string(s)) == "" {
		return "", fmt.Errorf("auth: static token is empty")
	}
	return string(s), nil
}

var _ AppTokenSource = (*ClientCredentials)(nil)
var _ AppTokenSource = StaticTokenSource("")
