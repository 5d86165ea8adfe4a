package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/nyaadere/animatch/internal/anilist"
	"github.com/nyaadere/animatch/internal/cache"
	"github.com/nyaadere/animatch/internal/domain"
	"github.com/nyaadere/animatch/internal/mal"
	"github.com/nyaadere/animatch/pkg/animetitles"
	"github.com/nyaadere/animatch/pkg/fuzzy"
)

// The AniDB title dump changes rarely and the upstream asks consumers to
// fetch it at most once per day.
var titlesRateLimit = domain.RateLimitConfig{Limit: 1, Window: 24 * time.Hour}

const titlesTTL = 7 * 24 * time.Hour

// Service reconciles an AniList character roster against the link pools
// scraped from the matching MAL page.
type Service interface {
	Reconcile(ctx context.Context, anilistID, malID, anidbID int) (*domain.Statistics, error)
}

type service struct {
	log     zerolog.Logger
	anilist anilist.Service
	mal     mal.Service
	cache   *cache.Cache
	rosters domain.RosterRepository
	reports domain.ReportRepository
	paths   *domain.Paths
}

func NewService(
	log zerolog.Logger,
	al anilist.Service,
	ml mal.Service,
	c *cache.Cache,
	rosters domain.RosterRepository,
	reports domain.ReportRepository,
	paths *domain.Paths,
) Service {
	return &service{
		log:     log.With().Str("module", "reconcile").Logger(),
		anilist: al,
		mal:     ml,
		cache:   c,
		rosters: rosters,
		reports: reports,
		paths:   paths,
	}
}

// Reconcile fetches the roster and candidate pools, assigns links, and
// writes the matched roster plus an unmatched report. A zero malID falls
// back to the MAL id AniList reports for the show; a non-zero anidbID
// cross-checks the show title against the AniDB title dump before any
// scraping happens.
func (s *service) Reconcile(ctx context.Context, anilistID, malID, anidbID int) (*domain.Statistics, error) {
	roster, err := s.anilist.GetRoster(ctx, anilistID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch roster")
	}

	if malID == 0 {
		malID = roster.MalID
	}
	if malID == 0 {
		return nil, fmt.Errorf("no mal id: anilist does not map id %d and none was given", anilistID)
	}

	if anidbID != 0 {
		if err := s.verifyTitle(ctx, roster.Title, anidbID); err != nil {
			return nil, err
		}
	}

	candidates, err := s.mal.GetCandidates(ctx, malID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch candidates")
	}

	matched, report := s.match(roster, malID, candidates)

	if err := s.rosters.StoreMatched(ctx, s.paths.MatchedPath(anilistID), matched); err != nil {
		return nil, errors.Wrap(err, "failed to store matched roster")
	}
	if len(report.Characters) > 0 {
		if err := s.reports.StoreReport(ctx, s.paths.ReportPath(anilistID), report); err != nil {
			return nil, errors.Wrap(err, "failed to store unmatched report")
		}
	}

	stats := statistics(matched)
	s.log.Info().
		Int("anilist_id", anilistID).
		Int("mal_id", malID).
		Int("total", stats.TotalCharacters).
		Int("characters_linked", stats.MatchedCharacters).
		Int("voice_actors_linked", stats.MatchedVoiceActors).
		Msg("reconciliation complete")

	return stats, nil
}

// match runs the two-pool assignment and splits the outcome into the
// matched roster and the review report.
func (s *service) match(roster *domain.Roster, malID int, candidates *domain.CandidateSet) (*domain.MatchedRoster, *domain.UnmatchedReport) {
	targets := make([]fuzzy.Target, len(roster.Characters))
	for i, c := range roster.Characters {
		targets[i] = fuzzy.Target{
			Name:             c.Name,
			AlternativeNames: c.AlternativeNames,
			VoiceActor:       c.VoiceActor,
		}
	}

	characterPool := toFuzzy(candidates.Characters)
	peoplePool := toFuzzy(candidates.People)

	assignments := fuzzy.AssignLinks(targets, characterPool, peoplePool)

	matched := &domain.MatchedRoster{
		AniListID: roster.AniListID,
		MalID:     malID,
		Title:     roster.Title,
	}
	report := &domain.UnmatchedReport{
		AniListID: roster.AniListID,
		MalID:     malID,
		Title:     roster.Title,
	}

	for i, a := range assignments {
		c := roster.Characters[i]
		mc := domain.MatchedCharacter{
			Name:            c.Name,
			CharacterLink:   a.CharacterLink,
			CharacterScore:  a.CharacterScore,
			VoiceActor:      c.VoiceActor,
			VoiceActorLink:  a.VoiceActorLink,
			VoiceActorScore: a.VoiceActorScore,
		}
		matched.Characters = append(matched.Characters, mc)

		if a.CharacterLink == "" {
			report.Characters = append(report.Characters, unmatchedEntry(targets[i], characterPool))
		}
	}

	return matched, report
}

// unmatchedEntry records why a character received no link: either nothing
// scored high enough, or every acceptable candidate went to another
// character first.
func unmatchedEntry(target fuzzy.Target, pool []fuzzy.Candidate) domain.UnmatchedCharacter {
	best := 0.0
	if ranked := fuzzy.FindAllMatches(target, pool, fuzzy.DefaultMinScore); len(ranked) > 0 {
		best = ranked[0].Score
	}

	reason := "no candidate above threshold"
	if best >= fuzzy.CharacterThreshold {
		reason = "best candidate claimed by a higher-scoring character"
	}

	return domain.UnmatchedCharacter{
		Name:      target.Name,
		BestScore: best,
		Reason:    reason,
	}
}

// verifyTitle cross-checks the AniList title against the AniDB title dump
// so a mistyped id fails loudly instead of producing a roster for the
// wrong show. The dump is cached for a week.
func (s *service) verifyTitle(ctx context.Context, title string, anidbID int) error {
	opts := cache.DefaultOptions()
	opts.TTL = titlesTTL
	opts.APIKey = "anidb"
	opts.RateLimit = titlesRateLimit

	titles, err := cache.Call(ctx, s.cache, "anidb:titles", opts, func(ctx context.Context) (animetitles.Titles, error) {
		return animetitles.Fetch(ctx, nil)
	})
	if err != nil {
		return errors.Wrap(err, "failed to load anidb titles")
	}

	known := titles.All(anidbID)
	if len(known) == 0 {
		return fmt.Errorf("anidb id %d is not in the title dump", anidbID)
	}

	best := 0.0
	for _, t := range known {
		if score := fuzzy.MatchName(title, t); score > best {
			best = score
		}
	}
	if best < fuzzy.CharacterThreshold {
		return fmt.Errorf("title %q does not match any anidb title for id %d (best score %.2f)", title, anidbID, best)
	}

	s.log.Debug().
		Int("anidb_id", anidbID).
		Float64("score", best).
		Msg("title verified against anidb")
	return nil
}

func toFuzzy(pool []domain.Candidate) []fuzzy.Candidate {
	out := make([]fuzzy.Candidate, len(pool))
	for i, c := range pool {
		out[i] = fuzzy.Candidate{Name: c.Name, Link: c.Link}
	}
	return out
}

func statistics(m *domain.MatchedRoster) *domain.Statistics {
	stats := &domain.Statistics{
		AniListID:       m.AniListID,
		MalID:           m.MalID,
		Title:           m.Title,
		TotalCharacters: len(m.Characters),
	}
	withVA := 0
	for _, c := range m.Characters {
		if c.CharacterLink != "" {
			stats.MatchedCharacters++
		}
		if c.VoiceActor != "" {
			withVA++
			if c.VoiceActorLink != "" {
				stats.MatchedVoiceActors++
			}
		}
	}
	if stats.TotalCharacters > 0 {
		stats.CharacterCoveragePercent = float64(stats.MatchedCharacters) / float64(stats.TotalCharacters) * 100
	}
	if withVA > 0 {
		stats.VoiceActorCoveragePercent = float64(stats.MatchedVoiceActors) / float64(withVA) * 100
	}
	return stats
}
