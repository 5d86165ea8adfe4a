package mal

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/gocolly/colly"
	"github.com/gocolly/colly/extensions"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/nyaadere/animatch/internal/cache"
	"github.com/nyaadere/animatch/internal/domain"
)

const apiKey = "mal"

// defaultRateLimit keeps scraping well under MAL's tolerance. Configured
// here rather than centrally; every call site owns its own budget.
var defaultRateLimit = domain.RateLimitConfig{Limit: 20, Window: time.Minute}

var (
	characterLinkRe = regexp.MustCompile(`myanimelist\.net/character/(\d+)`)
	peopleLinkRe    = regexp.MustCompile(`myanimelist\.net/people/(\d+)`)
)

type Service interface {
	GetCandidates(ctx context.Context, malID int) (*domain.CandidateSet, error)
}

type service struct {
	log   zerolog.Logger
	cache *cache.Cache
}

func NewService(log zerolog.Logger, c *cache.Cache) Service {
	return &service{
		log:   log.With().Str("module", "mal").Logger(),
		cache: c,
	}
}

// GetCandidates scrapes the MAL character page for an anime and returns
// the character and people link pools, from cache when possible.
func (s *service) GetCandidates(ctx context.Context, malID int) (*domain.CandidateSet, error) {
	key := fmt.Sprintf("mal:characters:%d", malID)

	opts := cache.DefaultOptions()
	opts.APIKey = apiKey
	opts.RateLimit = defaultRateLimit

	set, err := cache.Call(ctx, s.cache, key, opts, func(ctx context.Context) (*domain.CandidateSet, error) {
		return s.scrape(malID)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get candidates for mal id %d", malID)
	}

	return set, nil
}

func (s *service) scrape(malID int) (*domain.CandidateSet, error) {
	cc := colly.NewCollector(
		colly.AllowedDomains("myanimelist.net"),
	)
	extensions.RandomUserAgent(cc)

	set := &domain.CandidateSet{MalID: malID}
	seen := make(map[string]bool)

	cc.OnHTML("a[href]", func(e *colly.HTMLElement) {
		name := strings.TrimSpace(e.Text)
		if name == "" {
			// Image anchors carry the same href with no text.
			return
		}

		link := e.Request.AbsoluteURL(e.Attr("href"))
		if seen[link] {
			return
		}

		switch {
		case characterLinkRe.MatchString(link):
			seen[link] = true
			set.Characters = append(set.Characters, domain.Candidate{Name: name, Link: link})
		case peopleLinkRe.MatchString(link):
			seen[link] = true
			set.People = append(set.People, domain.Candidate{Name: name, Link: link})
		}
	})

	var scrapeErr error
	cc.OnError(func(r *colly.Response, err error) {
		scrapeErr = errors.Wrapf(err, "request to %s failed with status %d", r.Request.URL, r.StatusCode)
	})

	cc.OnRequest(func(r *colly.Request) {
		s.log.Debug().Str("url", r.URL.String()).Msg("visiting")
	})

	if err := cc.Visit(fmt.Sprintf("https://myanimelist.net/anime/%d/characters", malID)); err != nil {
		return nil, errors.Wrap(err, "failed to visit character page")
	}
	cc.Wait()

	if scrapeErr != nil {
		return nil, scrapeErr
	}

	s.log.Debug().
		Int("mal_id", malID).
		Int("characters", len(set.Characters)).
		Int("people", len(set.People)).
		Msg("scraped character page")

	return set, nil
}
