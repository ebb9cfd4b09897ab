package devkit

import (
	"context"
	"net/http"
	"time"

	"github.com/goliatone/go-publisher/core"
)

// Fixture identities shared by every adapter test.
const (
	FixtureContentID   = int64(42)
	FixtureUserID      = int64(7)
	FixtureAccessToken = "token_abc"
)

// FixtureScheduledFor pins the delivery key so tests can assert exact
// idempotency values.
var FixtureScheduledFor = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// SampleContent is one scheduled post targeting the given platform.
func SampleContent(platform core.Platform) core.Content {
	return core.Content{
		ID:           FixtureContentID,
		UserID:       FixtureUserID,
		Title:        "Launch day",
		Body:         "Going live at noon!",
		Platforms:    []core.Platform{platform},
		ScheduledFor: FixtureScheduledFor,
		Status:       core.ContentStatusScheduled,
	}
}

// SamplePublishRequest is the worker-shaped request for one delivery
// attempt of SampleContent.
func SamplePublishRequest(platform core.Platform) core.PublishRequest {
	content := SampleContent(platform)
	return core.PublishRequest{
		Content:  content,
		Platform: platform,
		Credentials: core.Credentials{
			AccessToken: FixtureAccessToken,
			ExpiresAt:   FixtureScheduledFor.Add(time.Hour),
		},
		IdempotencyKey: core.DeliveryKey(content.ID, platform, content.ScheduledFor),
	}
}

// SuccessScripts returns the canned upstream responses a happy-path publish
// consumes on each built-in platform.
func SuccessScripts(platform core.Platform) []Script {
	switch platform {
	case core.PlatformDiscord:
		return []Script{{Status: http.StatusOK, Body: `{"id":"1125","channel_id":"chan_1"}`}}
	case core.PlatformTwitter:
		return []Script{{Status: http.StatusCreated, Body: `{"data":{"id":"1790"}}`}}
	case core.PlatformYouTube:
		return []Script{{Status: http.StatusOK, Body: `{"id":"vid_1"}`}}
	case core.PlatformInstagram:
		// Container create, then publish.
		return []Script{
			{Status: http.StatusOK, Body: `{"id":"container_1"}`},
			{Status: http.StatusOK, Body: `{"id":"media_1"}`},
		}
	case core.PlatformTwitch:
		return []Script{{Status: http.StatusNoContent, Body: ""}}
	default:
		return []Script{{Status: http.StatusOK, Body: "{}"}}
	}
}

// ExpectedExternalID is the external id SuccessScripts yields per platform.
func ExpectedExternalID(platform core.Platform, req core.PublishRequest) string {
	switch platform {
	case core.PlatformDiscord:
		return "1125"
	case core.PlatformTwitter:
		return "1790"
	case core.PlatformYouTube:
		return "vid_1"
	case core.PlatformInstagram:
		return "media_1"
	case core.PlatformTwitch:
		// Announcements have no upstream id; adapters fall back to the
		// delivery key.
		return req.IdempotencyKey
	default:
		return ""
	}
}

// StaticCredentials resolves one fixed token for every user and platform.
type StaticCredentials struct {
	Token string
}

func (c StaticCredentials) Resolve(context.Context, int64, core.Platform) (core.Credentials, error) {
	return core.Credentials{AccessToken: c.Token, ExpiresAt: FixtureScheduledFor.Add(time.Hour)}, nil
}

func (c StaticCredentials) Refresh(context.Context, int64, core.Platform) (core.Credentials, error) {
	return core.Credentials{AccessToken: c.Token, ExpiresAt: FixtureScheduledFor.Add(time.Hour)}, nil
}

var _ core.CredentialProvider = StaticCredentials{}
