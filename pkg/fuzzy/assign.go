package fuzzy

import "sort"

const (
	// CharacterThreshold is the minimum score for a character-link
	// proposal to enter assignment.
	CharacterThreshold = 0.5

	// VoiceActorThreshold is stricter: voice-actor names are less
	// ambiguous and a wrong link is more visible.
	VoiceActorThreshold = 0.8
)

// Assignment holds the links allocated to one target. Zero-value link
// fields mean nothing cleared the threshold or every acceptable candidate
// was claimed by a higher-scoring target.
type Assignment struct {
	TargetIndex     int
	CharacterLink   string
	CharacterScore  float64
	VoiceActorLink  string
	VoiceActorScore float64
}

// proposal is one target's claim on one candidate link.
type proposal struct {
	target int
	link   string
	score  float64
}

// AssignLinks reconciles targets against the two scraped candidate pools
// and returns one Assignment per target, in target order.
//
// Character links and voice-actor links are assigned in two independent
// passes: proposals above the pass threshold are sorted by descending
// score and walked greedily, so each link goes to at most one target and
// each target receives at most one link per pass. Ties keep proposal
// construction order (target order, then candidate rank), making the
// result deterministic for identical input.
func AssignLinks(targets []Target, characters, voiceActors []Candidate) []Assignment {
	assignments := make([]Assignment, len(targets))
	for i := range assignments {
		assignments[i].TargetIndex = i
	}

	characterNames := func(t Target) []string { return t.names() }
	for target, match := range assignPool(targets, characters, CharacterThreshold, characterNames) {
		assignments[target].CharacterLink = match.Candidate.Link
		assignments[target].CharacterScore = match.Score
	}

	voiceActorNames := func(t Target) []string {
		if t.VoiceActor == "" {
			return nil
		}
		return []string{t.VoiceActor}
	}
	for target, match := range assignPool(targets, voiceActors, VoiceActorThreshold, voiceActorNames) {
		assignments[target].VoiceActorLink = match.Candidate.Link
		assignments[target].VoiceActorScore = match.Score
	}

	return assignments
}

// assignPool runs one greedy pass over one candidate pool and returns the
// winning candidate per target index.
func assignPool(targets []Target, pool []Candidate, threshold float64, namesOf func(Target) []string) map[int]ScoredMatch {
	byLink := make(map[string]Candidate, len(pool))
	for _, c := range pool {
		if _, seen := byLink[c.Link]; !seen {
			byLink[c.Link] = c
		}
	}

	var proposals []proposal
	for i, t := range targets {
		names := namesOf(t)
		if len(names) == 0 {
			continue
		}
		for _, c := range pool {
			best := 0.0
			for _, name := range names {
				if s := MatchName(name, c.Name); s > best {
					best = s
					if best == 1 {
						break
					}
				}
			}
			if best >= threshold {
				proposals = append(proposals, proposal{target: i, link: c.Link, score: best})
			}
		}
	}

	sort.SliceStable(proposals, func(i, j int) bool {
		return proposals[i].score > proposals[j].score
	})

	assigned := make(map[int]ScoredMatch)
	taken := make(map[string]bool)
	for _, p := range proposals {
		if taken[p.link] {
			continue
		}
		if _, done := assigned[p.target]; done {
			continue
		}
		assigned[p.target] = ScoredMatch{Candidate: byLink[p.link], Score: p.score}
		taken[p.link] = true
	}

	return assigned
}
