package twitch

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-publisher/core"
	"github.com/goliatone/go-publisher/providers"
)

const (
	// EventTypeStreamOnline is the default subscription type registered for
	// a broadcaster.
	EventTypeStreamOnline  = "stream.online"
	EventTypeStreamOffline = "stream.offline"

	eventSubVersion = "1"
)

type EventSubConfig struct {
	BaseURL  string
	ClientID string
	// CallbackURL is the public webhook ingress endpoint notifications are
	// delivered to.
	CallbackURL string
	Timeout     time.Duration
	HTTPClient  providers.HTTPDoer
}

// EventSubClient manages webhook subscriptions against the Helix EventSub
// API. Creation leaves the remote subscription pending until the callback
// verification handshake completes.
type EventSubClient struct {
	client      *providers.RESTClient
	callbackURL string
}

func NewEventSubClient(cfg EventSubConfig) (*EventSubClient, error) {
	clientID := strings.TrimSpace(cfg.ClientID)
	if clientID == "" {
		return nil, fmt.Errorf("twitch: client id is required")
	}
	callbackURL := strings.TrimSpace(cfg.CallbackURL)
	if callbackURL == "" {
		return nil, fmt.Errorf("twitch: callback url is required")
	}
	if parsed, err := url.Parse(callbackURL); err != nil || parsed.Scheme != "https" {
		return nil, fmt.Errorf("twitch: callback url must be https")
	}
	client, err := newHelixClient(cfg.BaseURL, clientID, cfg.Timeout, cfg.HTTPClient)
	if err != nil {
		return nil, err
	}
	return &EventSubClient{client: client, callbackURL: callbackURL}, nil
}

type CreateSubscriptionRequest struct {
	EventType     string
	BroadcasterID string
	Secret        string
	// AppToken is the app access token EventSub webhook management requires.
	AppToken string
}

type RemoteSubscription struct {
	ID        string
	Status    string
	EventType string
}

func (c *EventSubClient) CreateSubscription(ctx context.Context, req CreateSubscriptionRequest) (RemoteSubscription, error) {
	if c == nil || c.client == nil {
		return RemoteSubscription{}, fmt.Errorf("twitch: eventsub client is not configured")
	}
	broadcasterID := strings.TrimSpace(req.BroadcasterID)
	if broadcasterID == "" {
		return RemoteSubscription{}, fmt.Errorf("twitch: broadcaster id is required")
	}
	secret := strings.TrimSpace(req.Secret)
	if len(secret) < 10 {
		return RemoteSubscription{}, fmt.Errorf("twitch: subscription secret must be at least 10 characters")
	}
	eventType := strings.TrimSpace(req.EventType)
	if eventType == "" {
		eventType = EventTypeStreamOnline
	}

	payload := map[string]any{
		"type":    eventType,
		"version": eventSubVersion,
		"condition": map[string]any{
			"broadcaster_user_id": broadcasterID,
		},
		"transport": map[string]any{
			"method":   "webhook",
			"callback": c.callbackURL,
			"secret":   secret,
		},
	}

	res, err := c.client.PostJSON(ctx, "/helix/eventsub/subscriptions", req.AppToken, "", payload)
	if err != nil {
		return RemoteSubscription{}, core.TransientError("twitch: create eventsub subscription", err)
	}
	if err := providers.ClassifyStatus(PlatformID, res); err != nil {
		return RemoteSubscription{}, err
	}

	var created struct {
		Data []struct {
			ID     string `json:"id"`
			Status string `json:"status"`
			Type   string `json:"type"`
		} `json:"data"`
	}
	if err := providers.DecodeJSON(res, &created); err != nil {
		return RemoteSubscription{}, core.PermanentError("twitch: decode eventsub response", err)
	}
	if len(created.Data) == 0 || strings.TrimSpace(created.Data[0].ID) == "" {
		return RemoteSubscription{}, core.PermanentError("twitch: eventsub response missing subscription id", nil)
	}
	return RemoteSubscription{
		ID:        created.Data[0].ID,
		Status:    created.Data[0].Status,
		EventType: created.Data[0].Type,
	}, nil
}

func (c *EventSubClient) DeleteSubscription(ctx context.Context, remoteID string, appToken string) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("twitch: eventsub client is not configured")
	}
	remoteID = strings.TrimSpace(remoteID)
	if remoteID == "" {
		return fmt.Errorf("twitch: remote subscription id is required")
	}
	res, err := c.client.Delete(ctx, "/helix/eventsub/subscriptions?id="+url.QueryEscape(remoteID), appToken)
	if err != nil {
		return core.TransientError("twitch: delete eventsub subscription", err)
	}
	return providers.ClassifyStatus(PlatformID, res)
}
