package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/nyaadere/animatch/internal/domain"
)

// Load loads configuration from multiple sources:
// 1. Config file (config.yaml, optional)
// 2. Environment variables (ANIMATCH_*)
func Load() (*domain.Config, error) {
	cfg := &domain.Config{}

	cfg.CacheDisabled = viper.GetBool("cache_disabled")
	cfg.DiscordWebhookURL = viper.GetString("discord_webhook_url")

	// AniList allows 30 requests per minute for unauthenticated clients;
	// the defaults stay below that.
	cfg.AniListRateLimit = viper.GetInt("anilist_rate_limit")
	if cfg.AniListRateLimit == 0 {
		cfg.AniListRateLimit = 30
	}
	if cfg.AniListRateLimit < 0 {
		return nil, fmt.Errorf("anilist_rate_limit must not be negative, got %d", cfg.AniListRateLimit)
	}

	cfg.AniListRateWindow = viper.GetDuration("anilist_rate_window")
	if cfg.AniListRateWindow == 0 {
		cfg.AniListRateWindow = time.Minute
	}
	if cfg.AniListRateWindow < 0 {
		return nil, fmt.Errorf("anilist_rate_window must not be negative, got %s", cfg.AniListRateWindow)
	}

	return cfg, nil
}
