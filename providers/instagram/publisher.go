package instagram

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-publisher/core"
	"github.com/goliatone/go-publisher/providers"
)

const (
	PlatformID = core.PlatformInstagram

	defaultBaseURL = "https://graph.instagram.com"
)

type Config struct {
	BaseURL string
	// AccountID is the Instagram professional account that owns the media.
	AccountID  string
	Timeout    time.Duration
	HTTPClient providers.HTTPDoer
}

// Publisher walks the two-step media flow: create a container from the
// first attachment, then publish it. Both steps share one delivery attempt;
// a failure in either step settles through the normal retry taxonomy.
type Publisher struct {
	client      *providers.RESTClient
	credentials core.CredentialProvider
	accountID   string
}

func New(cfg Config, credentials core.CredentialProvider) (*Publisher, error) {
	accountID := strings.TrimSpace(cfg.AccountID)
	if accountID == "" {
		return nil, fmt.Errorf("instagram: account id is required")
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
		accountID:   accountID,
	}, nil
}

func (p *Publisher) Platform() core.Platform {
	return PlatformID
}

func (p *Publisher) Publish(ctx context.Context, req core.PublishRequest) (core.PublishResult, error) {
	if p == nil || p.client == nil {
		return core.PublishResult{}, fmt.Errorf("instagram: publisher is not configured")
	}
	if len(req.Content.Attachments) == 0 {
		return core.PublishResult{}, core.PermanentError("instagram: a media attachment is required", nil)
	}

	return providers.PublishWithRefresh(ctx, p.credentials, req, func(ctx context.Context, token string) (core.PublishResult, error) {
		containerID, err := p.createContainer(ctx, token, req)
		if err != nil {
			return core.PublishResult{}, err
		}
		mediaID, err := p.publishContainer(ctx, token, req, containerID)
		if err != nil {
			return core.PublishResult{}, err
		}
		return core.PublishResult{
			ExternalID: mediaID,
			Metadata: map[string]any{
				"container_id": containerID,
			},
		}, nil
	})
}

func (p *Publisher) createContainer(ctx context.Context, token string, req core.PublishRequest) (string, error) {
	payload := map[string]any{
		"image_url": req.Content.Attachments[0],
		"caption":   providers.MessageText(req.Content),
	}
	res, err := p.client.PostJSON(ctx, "/"+p.accountID+"/media", token, req.IdempotencyKey, payload)
	if err != nil {
		return "", core.TransientError("instagram: create media container", err)
	}
	if err := providers.ClassifyStatus(PlatformID, res); err != nil {
		return "", err
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := providers.DecodeJSON(res, &created); err != nil {
		return "", core.PermanentError("instagram: decode container response", err)
	}
	if strings.TrimSpace(created.ID) == "" {
		return "", core.PermanentError("instagram: container response missing id", nil)
	}
	return created.ID, nil
}

func (p *Publisher) publishContainer(ctx context.Context, token string, req core.PublishRequest, containerID string) (string, error) {
	payload := map[string]any{"creation_id": containerID}
	res, err := p.client.PostJSON(ctx, "/"+p.accountID+"/media_publish", token, req.IdempotencyKey, payload)
	if err != nil {
		return "", core.TransientError("instagram: publish media container", err)
	}
	if err := providers.ClassifyStatus(PlatformID, res); err != nil {
		return "", err
	}
	var published struct {
		ID string `json:"id"`
	}
	if err := providers.DecodeJSON(res, &published); err != nil {
		return "", core.PermanentError("instagram: decode publish response", err)
	}
	if strings.TrimSpace(published.ID) == "" {
		return "", core.PermanentError("instagram: publish response missing media id", nil)
	}
	return published.ID, nil
}

var _ core.Publisher = (*Publisher)(nil)
