package twitch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-publisher/core"
	"github.com/goliatone/go-publisher/providers"
)

const (
	PlatformID = core.PlatformTwitch

	defaultBaseURL       = "https://api.twitch.tv"
	maxAnnouncementRunes = 500
)

type Config struct {
	BaseURL string
	// ClientID is sent as the Client-Id header on every Helix call.
	ClientID string
	// BroadcasterID is the channel the announcement lands in; ModeratorID
	// is the acting user and defaults to the broadcaster.
	BroadcasterID string
	ModeratorID   string
	Timeout       time.Duration
	HTTPClient    providers.HTTPDoer
}

// Publisher posts scheduled content as a chat announcement. Helix returns
// no resource id for announcements, so the delivery idempotency key doubles
// as the external reference.
type Publisher struct {
	client        *providers.RESTClient
	credentials   core.CredentialProvider
	broadcasterID string
	moderatorID   string
}

func New(cfg Config, credentials core.CredentialProvider) (*Publisher, error) {
	broadcasterID := strings.TrimSpace(cfg.BroadcasterID)
	if broadcasterID == "" {
		return nil, fmt.Errorf("twitch: broadcaster id is required")
	}
	clientID := strings.TrimSpace(cfg.ClientID)
	if clientID == "" {
		return nil, fmt.Errorf("twitch: client id is required")
	}
	moderatorID := strings.TrimSpace(cfg.ModeratorID)
	if moderatorID == "" {
		moderatorID = broadcasterID
	}
	client, err := newHelixClient(cfg.BaseURL, clientID, cfg.Timeout, cfg.HTTPClient)
	if err != nil {
		return nil, err
	}
	return &Publisher{
		client:        client,
		credentials:   credentials,
		broadcasterID: broadcasterID,
		moderatorID:   moderatorID,
	}, nil
}

func (p *Publisher) Platform() core.Platform {
	return PlatformID
}

func (p *Publisher) Publish(ctx context.Context, req core.PublishRequest) (core.PublishResult, error) {
	if p == nil || p.client == nil {
		return core.PublishResult{}, fmt.Errorf("twitch: publisher is not configured")
	}

	message := providers.MessageText(req.Content)
	if runes := []rune(message); len(runes) > maxAnnouncementRunes {
		message = string(runes[:maxAnnouncementRunes])
	}

	path := fmt.Sprintf(
		"/helix/chat/announcements?broadcaster_id=%s&moderator_id=%s",
		p.broadcasterID, p.moderatorID,
	)
	payload := map[string]any{"message": message}

	return providers.PublishWithRefresh(ctx, p.credentials, req, func(ctx context.Context, token string) (core.PublishResult, error) {
		res, err := p.client.PostJSON(ctx, path, token, req.IdempotencyKey, payload)
		if err != nil {
			return core.PublishResult{}, core.TransientError("twitch: post announcement", err)
		}
		if err := providers.ClassifyStatus(PlatformID, res); err != nil {
			return core.PublishResult{}, err
		}
		return core.PublishResult{
			ExternalID: req.IdempotencyKey,
			Metadata: map[string]any{
				"broadcaster_id": p.broadcasterID,
			},
		}, nil
	})
}

func newHelixClient(baseURL string, clientID string, timeout time.Duration, httpClient providers.HTTPDoer) (*providers.RESTClient, error) {
	trimmed := strings.TrimSpace(baseURL)
	if trimmed == "" {
		trimmed = defaultBaseURL
	}
	return providers.NewRESTClient(providers.RESTClientConfig{
		BaseURL:        trimmed,
		Timeout:        timeout,
		DefaultHeaders: map[string]string{"Client-Id": clientID},
		HTTPClient:     httpClient,
	})
}

var _ core.Publisher = (*Publisher)(nil)
