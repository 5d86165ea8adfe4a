package app

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/nyaadere/animatch/internal/anilist"
	"github.com/nyaadere/animatch/internal/cache"
	"github.com/nyaadere/animatch/internal/config"
	"github.com/nyaadere/animatch/internal/database"
	"github.com/nyaadere/animatch/internal/domain"
	"github.com/nyaadere/animatch/internal/jikan"
	"github.com/nyaadere/animatch/internal/logger"
	"github.com/nyaadere/animatch/internal/mal"
	"github.com/nyaadere/animatch/internal/notification"
	"github.com/nyaadere/animatch/internal/ratelimit"
	"github.com/nyaadere/animatch/internal/reconcile"
	"github.com/nyaadere/animatch/internal/repository"
	"github.com/nyaadere/animatch/internal/seadex"
)

// App represents the main application with all dependencies initialized
type App struct {
	log                 zerolog.Logger
	config              *domain.Config
	notificationService domain.NotificationService
}

// NewApp creates a new application instance
func NewApp() (*App, error) {
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return &App{
		log:                 log,
		config:              cfg,
		notificationService: notification.NewService(log, cfg.DiscordWebhookURL),
	}, nil
}

// openCache opens the persisted cache under rootPath and wires the rate
// limiter in front of it. The caller owns closing the returned DB.
func (a *App) openCache(rootPath string) (*database.DB, *cache.Cache, error) {
	db, err := database.NewDB(rootPath, a.log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	store := database.NewKVRepo(a.log, db)
	limiter := ratelimit.New(a.log)
	c := cache.New(a.log, store, limiter, func() bool { return a.config.CacheDisabled })

	return db, c, nil
}

func (a *App) anilistRateLimit() domain.RateLimitConfig {
	return domain.RateLimitConfig{
		Limit:  a.config.AniListRateLimit,
		Window: a.config.AniListRateWindow,
	}
}

// Run reconciles one anime's roster and writes the output files under
// rootPath. malID and anidbID are optional overrides; zero means resolve
// from AniList and skip title verification respectively.
func (a *App) Run(rootPath string, anilistID, malID, anidbID int) (err error) {
	ctx := context.Background()

	// Send error notification if the run fails
	defer func() {
		if err != nil {
			if notifyErr := a.notificationService.SendError(ctx, err); notifyErr != nil {
				a.log.Warn().Err(notifyErr).Msg("Failed to send error notification")
			}
		}
	}()

	db, c, err := a.openCache(rootPath)
	if err != nil {
		return err
	}
	defer db.Close()

	fileRepo := repository.NewFileRepository(a.log)
	paths := domain.NewPaths(rootPath)

	anilistService := anilist.NewService(a.log, c, a.anilistRateLimit())
	malService := mal.NewService(a.log, c)
	reconcileService := reconcile.NewService(a.log, anilistService, malService, c, fileRepo, fileRepo, paths)

	stats, err := reconcileService.Reconcile(ctx, anilistID, malID, anidbID)
	if err != nil {
		return fmt.Errorf("failed to reconcile roster: %w", err)
	}

	a.log.Info().
		Str("title", stats.Title).
		Int("total_characters", stats.TotalCharacters).
		Int("characters_linked", stats.MatchedCharacters).
		Int("voice_actors_linked", stats.MatchedVoiceActors).
		Float64("character_coverage_pct", stats.CharacterCoveragePercent).
		Float64("voice_actor_coverage_pct", stats.VoiceActorCoveragePercent).
		Msg("=== FINAL STATISTICS ===")

	if notifyErr := a.notificationService.SendSuccess(ctx, *stats); notifyErr != nil {
		a.log.Warn().Err(notifyErr).Msg("Failed to send success notification")
	}

	return nil
}

// Ratings prints aggregated community scores for one anime, pulling
// AniList and MAL (via Jikan) ratings plus the SeaDex release entry when
// one exists.
func (a *App) Ratings(rootPath string, anilistID, malID int) error {
	ctx := context.Background()

	db, c, err := a.openCache(rootPath)
	if err != nil {
		return err
	}
	defer db.Close()

	anilistService := anilist.NewService(a.log, c, a.anilistRateLimit())
	jikanService := jikan.NewService(a.log, c)
	seadexService := seadex.NewService(a.log, c)

	alRating, err := anilistService.GetRating(ctx, anilistID)
	if err != nil {
		a.log.Warn().Err(err).Msg("failed to fetch anilist rating")
	} else {
		fmt.Printf("anilist: %.1f/10\n", alRating.Score)
	}

	if malID == 0 {
		roster, err := anilistService.GetRoster(ctx, anilistID)
		if err != nil {
			return fmt.Errorf("failed to resolve mal id: %w", err)
		}
		malID = roster.MalID
	}

	if malID != 0 {
		malRating, err := jikanService.GetRating(ctx, malID)
		if err != nil {
			a.log.Warn().Err(err).Msg("failed to fetch mal rating")
		} else {
			fmt.Printf("mal:     %.1f/10 (%d votes)\n", malRating.Score, malRating.ScoredBy)
		}
	}

	entry, err := seadexService.GetEntry(ctx, anilistID)
	switch {
	case errors.Is(err, seadex.ErrNotFound):
		fmt.Println("seadex:  no entry")
	case err != nil:
		a.log.Warn().Err(err).Msg("failed to fetch seadex entry")
	default:
		status := "complete"
		if entry.Incomplete {
			status = "incomplete"
		}
		fmt.Printf("seadex:  %s", status)
		if entry.ComparisonURL != "" {
			fmt.Printf(" (%s)", entry.ComparisonURL)
		}
		fmt.Println()
		if entry.Notes != "" {
			fmt.Printf("         %s\n", entry.Notes)
		}
	}

	return nil
}

// ClearCache removes every persisted cache entry under rootPath.
func (a *App) ClearCache(rootPath string) error {
	ctx := context.Background()

	db, c, err := a.openCache(rootPath)
	if err != nil {
		return err
	}
	defer db.Close()

	removed, err := c.Clear(ctx)
	if err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}

	fmt.Printf("removed %d cache entries\n", removed)
	return nil
}

// CacheStats prints a summary of the persisted cache under rootPath.
func (a *App) CacheStats(rootPath string) error {
	ctx := context.Background()

	db, c, err := a.openCache(rootPath)
	if err != nil {
		return err
	}
	defer db.Close()

	stats, err := c.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to gather cache stats: %w", err)
	}

	fmt.Printf("entries:  %d\n", stats.Entries)
	fmt.Printf("failures: %d\n", stats.Failures)
	fmt.Printf("expired:  %d\n", stats.Expired)
	return nil
}

// MigrateCache imports a legacy scraped-HTML cache directory into the
// persisted key/value cache under rootPath.
func (a *App) MigrateCache(rootPath, cacheDir string) error {
	ctx := context.Background()

	db, c, err := a.openCache(rootPath)
	if err != nil {
		return err
	}
	defer db.Close()

	opts := cache.DefaultOptions()
	// Migrated entries were scraped some unknown time ago; keep them on a
	// shorter leash than fresh scrapes.
	opts.TTL = 12 * time.Hour

	if err := mal.MigrateHTMLCache(ctx, cacheDir, c, opts, a.log); err != nil {
		return fmt.Errorf("failed to migrate cache: %w", err)
	}

	return nil
}
