package discord

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/goliatone/go-publisher/core"
	"github.com/goliatone/go-publisher/providers"
)

type scripted struct {
	status int
	body   string
}

type stubDoer struct {
	scripts  []scripted
	requests []*http.Request
	bodies   []string
}

func (d *stubDoer) Do(req *http.Request) (*http.Response, error) {
	body := ""
	if req.Body != nil {
		raw, _ := io.ReadAll(req.Body)
		body = string(raw)
	}
	d.requests = append(d.requests, req)
	d.bodies = append(d.bodies, body)

	index := len(d.requests) - 1
	script := scripted{status: http.StatusOK}
	if index < len(d.scripts) {
		script = d.scripts[index]
	} else if len(d.scripts) > 0 {
		script = d.scripts[len(d.scripts)-1]
	}
	return &http.Response{
		StatusCode: script.status,
		Header:     http.Header{},
		Body:       io.NopCloser(strings.NewReader(script.body)),
	}, nil
}

type stubCredentials struct {
	refreshes int
}

func (c *stubCredentials) Resolve(context.Context, int64, core.Platform) (core.Credentials, error) {
	return core.Credentials{AccessToken: "resolved"}, nil
}

func (c *stubCredentials) Refresh(context.Context, int64, core.Platform) (core.Credentials, error) {
	c.refreshes++
	return core.Credentials{AccessToken: "fresh"}, nil
}

func publishRequest() core.PublishRequest {
	return core.PublishRequest{
		Content: core.Content{
			ID:       1,
			UserID:   7,
			Body:     "Going live!",
			Hashtags: "golang",
		},
		Platform:       PlatformID,
		Credentials:    core.Credentials{AccessToken: "tok-1"},
		IdempotencyKey: "1-discord-1748781000000",
	}
}

func newTestPublisher(t *testing.T, doer *stubDoer, credentials core.CredentialProvider) *Publisher {
	t.Helper()
	publisher, err := New(Config{ChannelID: "chan-1", HTTPClient: doer}, credentials)
	if err != nil {
		t.Fatalf("build publisher: %v", err)
	}
	return publisher
}

func TestPublishPostsChannelMessage(t *testing.T) {
	doer := &stubDoer{scripts: []scripted{{status: 200, body: `{"id":"msg-9","channel_id":"chan-1"}`}}}
	publisher := newTestPublisher(t, doer, &stubCredentials{})

	result, err := publisher.Publish(context.Background(), publishRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ExternalID != "msg-9" {
		t.Fatalf("expected external id msg-9, got %q", result.ExternalID)
	}

	req := doer.requests[0]
	if req.URL.Path != "/channels/chan-1/messages" {
		t.Fatalf("unexpected path %s", req.URL.Path)
	}
	if req.Header.Get("Authorization") != "Bearer tok-1" {
		t.Fatalf("expected request token used")
	}
	if req.Header.Get(providers.HeaderIdempotencyKey) == "" {
		t.Fatalf("expected idempotency key header")
	}
	if !strings.Contains(doer.bodies[0], "Going live!") {
		t.Fatalf("expected message body in payload, got %q", doer.bodies[0])
	}
	if !strings.Contains(doer.bodies[0], "#golang") {
		t.Fatalf("expected hashtags in payload, got %q", doer.bodies[0])
	}
}

func TestPublishRefreshesOnUnauthorized(t *testing.T) {
	doer := &stubDoer{scripts: []scripted{
		{status: 401, body: `{"message":"401: Unauthorized"}`},
		{status: 200, body: `{"id":"msg-9"}`},
	}}
	credentials := &stubCredentials{}
	publisher := newTestPublisher(t, doer, credentials)

	result, err := publisher.Publish(context.Background(), publishRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ExternalID != "msg-9" {
		t.Fatalf("expected publish to succeed after refresh")
	}
	if credentials.refreshes != 1 {
		t.Fatalf("expected a single refresh, got %d", credentials.refreshes)
	}
	if doer.requests[1].Header.Get("Authorization") != "Bearer fresh" {
		t.Fatalf("expected refreshed token on retry")
	}
}

func TestPublishSurfacesAuthFailureAfterRefresh(t *testing.T) {
	doer := &stubDoer{scripts: []scripted{{status: 401}}}
	credentials := &stubCredentials{}
	publisher := newTestPublisher(t, doer, credentials)

	_, err := publisher.Publish(context.Background(), publishRequest())
	if err == nil || core.IsTransient(err) {
		t.Fatalf("expected permanent auth failure, got %v", err)
	}
	if len(doer.requests) != 2 || credentials.refreshes != 1 {
		t.Fatalf("expected one refresh retry, got requests=%d refreshes=%d", len(doer.requests), credentials.refreshes)
	}
}

func TestPublishClassifiesRateLimit(t *testing.T) {
	doer := &stubDoer{scripts: []scripted{{status: 429}}}
	publisher := newTestPublisher(t, doer, &stubCredentials{})

	_, err := publisher.Publish(context.Background(), publishRequest())
	if err == nil || !core.IsTransient(err) {
		t.Fatalf("expected transient rate limit error, got %v", err)
	}
}

func TestPublishClassifiesRejectedContent(t *testing.T) {
	doer := &stubDoer{scripts: []scripted{{status: 400, body: `{"message":"invalid form body"}`}}}
	publisher := newTestPublisher(t, doer, &stubCredentials{})

	_, err := publisher.Publish(context.Background(), publishRequest())
	if err == nil || core.IsTransient(err) {
		t.Fatalf("expected permanent rejection, got %v", err)
	}
}

func TestNewRequiresChannelID(t *testing.T) {
	if _, err := New(Config{}, &stubCredentials{}); err == nil {
		t.Fatalf("expected missing channel id error")
	}
}
