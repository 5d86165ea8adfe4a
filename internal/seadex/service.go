package seadex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/nyaadere/animatch/internal/cache"
	"github.com/nyaadere/animatch/internal/domain"
)

const (
	baseURL = "https://releases.moe/api/collections/entries/records"
	apiKey  = "seadex"
)

var defaultRateLimit = domain.RateLimitConfig{Limit: 30, Window: time.Minute}

// ErrNotFound means SeaDex has no entry for the AniList id.
var ErrNotFound = errors.New("no seadex entry")

type Service interface {
	GetEntry(ctx context.Context, anilistID int) (*domain.SeaDexEntry, error)
}

type service struct {
	log    zerolog.Logger
	cache  *cache.Cache
	client *http.Client
}

type recordsResponse struct {
	Items []struct {
		ID         string `json:"id"`
		AlID       int    `json:"alID"`
		Notes      string `json:"notes"`
		Incomplete bool   `json:"incomplete"`
		Comparison string `json:"comparison"`
	} `json:"items"`
	TotalItems int `json:"totalItems"`
}

func NewService(log zerolog.Logger, c *cache.Cache) Service {
	return &service{
		log:    log.With().Str("module", "seadex").Logger(),
		cache:  c,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// GetEntry returns the releases.moe record for an AniList id, from cache
// when possible. Absence is reported as ErrNotFound, not cached as a
// failure.
func (s *service) GetEntry(ctx context.Context, anilistID int) (*domain.SeaDexEntry, error) {
	key := fmt.Sprintf("seadex:entry:%d", anilistID)

	opts := cache.DefaultOptions()
	opts.APIKey = apiKey
	opts.RateLimit = defaultRateLimit

	entry, err := cache.Call(ctx, s.cache, key, opts, func(ctx context.Context) (*domain.SeaDexEntry, error) {
		return s.fetchEntry(ctx, anilistID)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get seadex entry for anilist id %d", anilistID)
	}

	if entry.ID == "" {
		return nil, errors.Wrapf(ErrNotFound, "anilist id %d", anilistID)
	}

	return entry, nil
}

func (s *service) fetchEntry(ctx context.Context, anilistID int) (*domain.SeaDexEntry, error) {
	target, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse base url")
	}

	query := target.Query()
	query.Add("filter", fmt.Sprintf("alID=%d", anilistID))
	query.Add("perPage", "1")
	target.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}

	records := &recordsResponse{}
	if err := json.Unmarshal(body, records); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal response")
	}

	// An empty record still gets cached so repeated lookups for shows
	// without a SeaDex entry stay local.
	if len(records.Items) == 0 {
		return &domain.SeaDexEntry{AniListID: anilistID}, nil
	}

	item := records.Items[0]
	return &domain.SeaDexEntry{
		ID:            item.ID,
		AniListID:     item.AlID,
		Notes:         item.Notes,
		Incomplete:    item.Incomplete,
		ComparisonURL: item.Comparison,
	}, nil
}
