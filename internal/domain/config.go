package domain

import "time"

type Config struct {
	CacheDisabled     bool          `toml:"cache_disabled" mapstructure:"cache_disabled"`
	DiscordWebhookURL string        `toml:"discord_webhook_url" mapstructure:"discord_webhook_url"`
	AniListRateLimit  int           `toml:"anilist_rate_limit" mapstructure:"anilist_rate_limit"`
	AniListRateWindow time.Duration `toml:"anilist_rate_window" mapstructure:"anilist_rate_window"`
}
