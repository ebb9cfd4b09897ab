package twitter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-publisher/core"
	"github.com/goliatone/go-publisher/providers"
)

const (
	PlatformID = core.PlatformTwitter

	defaultBaseURL = "https://api.twitter.com"
	maxTweetRunes  = 280
)

type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient providers.HTTPDoer
}

// Publisher posts scheduled content as a tweet.
type Publisher struct {
	client      *providers.RESTClient
	credentials core.CredentialProvider
}

func New(cfg Config, credentials core.CredentialProvider) (*Publisher, error) {
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
	return &Publisher{client: client, credentials: credentials}, nil
}

func (p *Publisher) Platform() core.Platform {
	return PlatformID
}

func (p *Publisher) Publish(ctx context.Context, req core.PublishRequest) (core.PublishResult, error) {
	if p == nil || p.client == nil {
		return core.PublishResult{}, fmt.Errorf("twitter: publisher is not configured")
	}

	text := providers.MessageText(req.Content)
	if runes := []rune(text); len(runes) > maxTweetRunes {
		return core.PublishResult{}, core.PermanentError(
			fmt.Sprintf("twitter: tweet text exceeds %d characters", maxTweetRunes),
			nil,
		)
	}

	payload := map[string]any{"text": text}
	return providers.PublishWithRefresh(ctx, p.credentials, req, func(ctx context.Context, token string) (core.PublishResult, error) {
		res, err := p.client.PostJSON(ctx, "/2/tweets", token, req.IdempotencyKey, payload)
		if err != nil {
			return core.PublishResult{}, core.TransientError("twitter: post tweet", err)
		}
		if err := providers.ClassifyStatus(PlatformID, res); err != nil {
			return core.PublishResult{}, err
		}

		var created struct {
			Data struct {
				ID string `json:"id"`
			} `json:"data"`
		}
		if err := providers.DecodeJSON(res, &created); err != nil {
			return core.PublishResult{}, core.PermanentError("twitter: decode publish response", err)
		}
		if strings.TrimSpace(created.Data.ID) == "" {
			return core.PublishResult{}, core.PermanentError("twitter: publish response missing tweet id", nil)
		}
		return core.PublishResult{ExternalID: created.Data.ID}, nil
	})
}

var _ core.Publisher = (*Publisher)(nil)
