package anilist

import (
	"bytes"
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
	graphqlURL = "https://graphql.anilist.co"
	apiKey     = "anilist"
)

// rosterQuery pulls the character roster with alternative names and
// Japanese voice actors in one request.
const rosterQuery = `query ($id: Int) {
  Media(id: $id, type: ANIME) {
    id
    idMal
    averageScore
    title { romaji english }
    characters(sort: [ROLE, RELEVANCE], perPage: 25) {
      edges {
        node { name { full alternative } }
        voiceActors(language: JAPANESE, sort: RELEVANCE) { name { full } }
      }
    }
  }
}`

type Service interface {
	GetRoster(ctx context.Context, anilistID int) (*domain.Roster, error)
	GetRating(ctx context.Context, anilistID int) (*domain.Rating, error)
}

type service struct {
	log       zerolog.Logger
	cache     *cache.Cache
	client    *http.Client
	rateLimit domain.RateLimitConfig
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type mediaResponse struct {
	Data struct {
		Media struct {
			ID           int `json:"id"`
			IDMal        int `json:"idMal"`
			AverageScore int `json:"averageScore"`
			Title        struct {
				Romaji  string `json:"romaji"`
				English string `json:"english"`
			} `json:"title"`
			Characters struct {
				Edges []struct {
					Node struct {
						Name struct {
							Full        string   `json:"full"`
							Alternative []string `json:"alternative"`
						} `json:"name"`
					} `json:"node"`
					VoiceActors []struct {
						Name struct {
							Full string `json:"full"`
						} `json:"name"`
					} `json:"voiceActors"`
				} `json:"edges"`
			} `json:"characters"`
		} `json:"Media"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func NewService(log zerolog.Logger, c *cache.Cache, rateLimit domain.RateLimitConfig) Service {
	return &service{
		log:       log.With().Str("module", "anilist").Logger(),
		cache:     c,
		client:    &http.Client{Timeout: 30 * time.Second},
		rateLimit: rateLimit,
	}
}

func (s *service) options() cache.Options {
	opts := cache.DefaultOptions()
	opts.APIKey = apiKey
	opts.RateLimit = s.rateLimit
	return opts
}

// GetRoster returns the character roster for an AniList id, from cache
// when possible.
func (s *service) GetRoster(ctx context.Context, anilistID int) (*domain.Roster, error) {
	key := fmt.Sprintf("anilist:characters:%d", anilistID)

	roster, err := cache.Call(ctx, s.cache, key, s.options(), func(ctx context.Context) (*domain.Roster, error) {
		media, err := s.queryMedia(ctx, anilistID)
		if err != nil {
			return nil, err
		}

		title := media.Data.Media.Title.English
		if title == "" {
			title = media.Data.Media.Title.Romaji
		}

		roster := &domain.Roster{
			AniListID: media.Data.Media.ID,
			MalID:     media.Data.Media.IDMal,
			Title:     title,
		}
		for _, edge := range media.Data.Media.Characters.Edges {
			c := domain.Character{
				Name:             edge.Node.Name.Full,
				AlternativeNames: edge.Node.Name.Alternative,
			}
			if len(edge.VoiceActors) > 0 {
				c.VoiceActor = edge.VoiceActors[0].Name.Full
			}
			roster.Characters = append(roster.Characters, c)
		}

		s.log.Debug().Int("anilist_id", anilistID).Int("characters", len(roster.Characters)).Msg("fetched roster")
		return roster, nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get roster for anilist id %d", anilistID)
	}

	return roster, nil
}

// GetRating returns AniList's average score on a 0-10 scale.
func (s *service) GetRating(ctx context.Context, anilistID int) (*domain.Rating, error) {
	key := fmt.Sprintf("anilist:rating:%d", anilistID)

	rating, err := cache.Call(ctx, s.cache, key, s.options(), func(ctx context.Context) (*domain.Rating, error) {
		media, err := s.queryMedia(ctx, anilistID)
		if err != nil {
			return nil, err
		}
		return &domain.Rating{
			Source: "anilist",
			Score:  float64(media.Data.Media.AverageScore) / 10,
		}, nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get rating for anilist id %d", anilistID)
	}

	return rating, nil
}

func (s *service) queryMedia(ctx context.Context, anilistID int) (*mediaResponse, error) {
	payload, err := json.Marshal(graphqlRequest{
		Query:     rosterQuery,
		Variables: map[string]any{"id": anilistID},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal query")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, graphqlURL, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

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

	media := &mediaResponse{}
	if err := json.Unmarshal(body, media); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal response")
	}

	if len(media.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %s", media.Errors[0].Message)
	}

	return media, nil
}
