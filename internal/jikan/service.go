package jikan

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/nyaadere/animatch/internal/cache"
	"github.com/nyaadere/animatch/internal/domain"
)

const (
	baseURL = "https://api.jikan.moe/v4"
	apiKey  = "jikan"
)

// Jikan's published limit is 60 requests per minute.
var defaultRateLimit = domain.RateLimitConfig{Limit: 60, Window: time.Minute}

type Service interface {
	GetRating(ctx context.Context, malID int) (*domain.Rating, error)
}

type service struct {
	log    zerolog.Logger
	cache  *cache.Cache
	client *http.Client
}

type animeResponse struct {
	Data struct {
		MalID    int     `json:"mal_id"`
		Title    string  `json:"title"`
		Score    float64 `json:"score"`
		ScoredBy int     `json:"scored_by"`
	} `json:"data"`
}

func NewService(log zerolog.Logger, c *cache.Cache) Service {
	return &service{
		log:    log.With().Str("module", "jikan").Logger(),
		cache:  c,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// GetRating returns MAL's community score for an anime via Jikan, from
// cache when possible.
func (s *service) GetRating(ctx context.Context, malID int) (*domain.Rating, error) {
	key := fmt.Sprintf("jikan:anime:%d", malID)

	opts := cache.DefaultOptions()
	opts.APIKey = apiKey
	opts.RateLimit = defaultRateLimit

	rating, err := cache.Call(ctx, s.cache, key, opts, func(ctx context.Context) (*domain.Rating, error) {
		anime, err := s.fetchAnime(ctx, malID)
		if err != nil {
			return nil, err
		}
		return &domain.Rating{
			Source:   "mal",
			Score:    anime.Data.Score,
			ScoredBy: anime.Data.ScoredBy,
		}, nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get rating for mal id %d", malID)
	}

	return rating, nil
}

func (s *service) fetchAnime(ctx context.Context, malID int) (*animeResponse, error) {
	url := fmt.Sprintf("%s/anime/%d", baseURL, malID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d from %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}

	anime := &animeResponse{}
	if err := json.Unmarshal(body, anime); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal response")
	}

	return anime, nil
}
