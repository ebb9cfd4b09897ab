package publisher

import (
	"github.com/goliatone/go-publisher/core"
	"github.com/goliatone/go-publisher/providers/discord"
	"github.com/goliatone/go-publisher/providers/instagram"
	"github.com/goliatone/go-publisher/providers/twitch"
	"github.com/goliatone/go-publisher/providers/twitter"
	"github.com/goliatone/go-publisher/providers/youtube"
)

func DiscordPublisher(cfg discord.Config, credentials core.CredentialProvider) (core.Publisher, error) {
	return discord.New(cfg, credentials)
}

func TwitterPublisher(cfg twitter.Config, credentials core.CredentialProvider) (core.Publisher, error) {
	return twitter.New(cfg, credentials)
}

func YouTubePublisher(cfg youtube.Config, credentials core.CredentialProvider) (core.Publisher, error) {
	return youtube.New(cfg, credentials)
}

func InstagramPublisher(cfg instagram.Config, credentials core.CredentialProvider) (core.Publisher, error) {
	return instagram.New(cfg, credentials)
}

func TwitchPublisher(cfg twitch.Config, credentials core.CredentialProvider) (core.Publisher, error) {
	return twitch.New(cfg, credentials)
}

// TwitchEventSubClient builds the remote subscription client used by the
// webhook subscription manager.
func TwitchEventSubClient(cfg twitch.EventSubConfig) (*twitch.EventSubClient, error) {
	return twitch.NewEventSubClient(cfg)
}
