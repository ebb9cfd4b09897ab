package youtube

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-publisher/core"
	"github.com/goliatone/go-publisher/providers"
)

const (
	PlatformID = core.PlatformYouTube

	defaultBaseURL = "https://www.googleapis.com"
)

type Config struct {
	BaseURL string
	// PrivacyStatus applies to every published video: public, unlisted,
	// or private. Defaults to public.
	PrivacyStatus string
	Timeout       time.Duration
	HTTPClient    providers.HTTPDoer
}

// Publisher creates a video resource from scheduled content. The media
// binary is expected to already live in storage referenced by the first
// attachment; this adapter publishes the metadata.
type Publisher struct {
	client        *providers.RESTClient
	credentials   core.CredentialProvider
	privacyStatus string
}

func New(cfg Config, credentials core.CredentialProvider) (*Publisher, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	privacy := strings.TrimSpace(strings.ToLower(cfg.PrivacyStatus))
	if privacy == "" {
		privacy = "public"
	}
	client, err := providers.NewRESTClient(providers.RESTClientConfig{
		BaseURL:    baseURL,
		Timeout:    cfg.Timeout,
		HTTPClient: cfg.HTTPClient,
	})
	if err != nil {
		return nil, err
	}
	return &Publisher{
		client:        client,
		credentials:   credentials,
		privacyStatus: privacy,
	}, nil
}

func (p *Publisher) Platform() core.Platform {
	return PlatformID
}

func (p *Publisher) Publish(ctx context.Context, req core.PublishRequest) (core.PublishResult, error) {
	if p == nil || p.client == nil {
		return core.PublishResult{}, fmt.Errorf("youtube: publisher is not configured")
	}
	if len(req.Content.Attachments) == 0 {
		return core.PublishResult{}, core.PermanentError("youtube: a media attachment is required", nil)
	}

	payload := map[string]any{
		"snippet": map[string]any{
			"title":       req.Content.Title,
			"description": providers.MessageText(req.Content),
			"tags":        providers.SplitTags(req.Content.Hashtags),
		},
		"status": map[string]any{
			"privacyStatus": p.privacyStatus,
		},
	}
	return providers.PublishWithRefresh(ctx, p.credentials, req, func(ctx context.Context, token string) (core.PublishResult, error) {
		res, err := p.client.PostJSON(ctx, "/youtube/v3/videos?part=snippet,status", token, req.IdempotencyKey, payload)
		if err != nil {
			return core.PublishResult{}, core.TransientError("youtube: publish video", err)
		}
		if err := providers.ClassifyStatus(PlatformID, res); err != nil {
			return core.PublishResult{}, err
		}

		var created struct {
			ID string `json:"id"`
		}
		if err := providers.DecodeJSON(res, &created); err != nil {
			return core.PublishResult{}, core.PermanentError("youtube: decode publish response", err)
		}
		if strings.TrimSpace(created.ID) == "" {
			return core.PublishResult{}, core.PermanentError("youtube: publish response missing video id", nil)
		}
		return core.PublishResult{
			ExternalID: created.ID,
			Metadata: map[string]any{
				"media": req.Content.Attachments[0],
			},
		}, nil
	})
}

var _ core.Publisher = (*Publisher)(nil)
