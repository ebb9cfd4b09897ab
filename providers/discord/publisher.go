package discord

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-publisher/core"
	"github.com/goliatone/go-publisher/providers"
)

const (
	PlatformID = core.PlatformDiscord

	defaultBaseURL = "https://discord.com/api/v10"
)

type Config struct {
	BaseURL string
	// ChannelID is the destination channel for published messages.
	ChannelID  string
	Timeout    time.Duration
	HTTPClient providers.HTTPDoer
}

// Publisher posts scheduled content as a channel message. It is the
// reference adapter: every other platform follows the same
// format -> post -> classify -> extract shape.
type Publisher struct {
	client      *providers.RESTClient
	credentials core.CredentialProvider
	channelID   string
}

func New(cfg Config, credentials core.CredentialProvider) (*Publisher, error) {
	channelID := strings.TrimSpace(cfg.ChannelID)
	if channelID == "" {
		return nil, fmt.Errorf("discord: channel id is required")
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
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
		client:      client,
		credentials: credentials,
		channelID:   channelID,
	}, nil
}

func (p *Publisher) Platform() core.Platform {
	return PlatformID
}

func (p *Publisher) Publish(ctx context.Context, req core.PublishRequest) (core.PublishResult, error) {
	if p == nil || p.client == nil {
		return core.PublishResult{}, fmt.Errorf("discord: publisher is not configured")
	}

	payload := map[string]any{
		"content": providers.MessageText(req.Content),
	}
	if len(req.Content.Attachments) > 0 {
		embeds := make([]map[string]any, 0, len(req.Content.Attachments))
		for _, attachment := range req.Content.Attachments {
			embeds = append(embeds, map[string]any{
				"image": map[string]any{"url": attachment},
			})
		}
		payload["embeds"] = embeds
	}

	path := fmt.Sprintf("/channels/%s/messages", p.channelID)
	return providers.PublishWithRefresh(ctx, p.credentials, req, func(ctx context.Context, token string) (core.PublishResult, error) {
		res, err := p.client.PostJSON(ctx, path, token, req.IdempotencyKey, payload)
		if err != nil {
			return core.PublishResult{}, core.TransientError("discord: publish message", err)
		}
		if err := providers.ClassifyStatus(PlatformID, res); err != nil {
			return core.PublishResult{}, err
		}

		var created struct {
			ID        string `json:"id"`
			ChannelID string `json:"channel_id"`
		}
		if err := providers.DecodeJSON(res, &created); err != nil {
			return core.PublishResult{}, core.PermanentError("discord: decode publish response", err)
		}
		if strings.TrimSpace(created.ID) == "" {
			return core.PublishResult{}, core.PermanentError("discord: publish response missing message id", nil)
		}
		return core.PublishResult{
			ExternalID: created.ID,
			Metadata: map[string]any{
				"channel_id": created.ChannelID,
			},
		}, nil
	})
}

var _ core.Publisher = (*Publisher)(nil)
