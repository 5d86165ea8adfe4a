// Package fuzzy aligns noisy, differently-romanized name strings from two
// independent sources describing the same entities.
//
// Scoring combines several strategies (full-string edit distance,
// token-level matching with a coverage penalty, single-character and short
// name containment rules) by taking their maximum: any one strategy
// succeeding is sufficient evidence of a match. Assignment resolves
// conflicts greedily in descending score order, which is deterministic and
// cheap rather than globally optimal.
//
// The package is pure: no I/O, no logging, no hidden state.
package fuzzy

import (
	"sort"
	"strings"
	"unicode/utf8"
)

const (
	// DefaultMinScore is the floor below which ranked candidates are
	// discarded.
	DefaultMinScore = 0.3

	// tokenFloor is the minimum similarity for a token pair to count as
	// matched during token-level scoring.
	tokenFloor = 0.6

	// singleCharScore is awarded when a one-character name is the first
	// whole token of the other name (initials like "L").
	singleCharScore = 0.9

	// containmentScore is awarded when a short name appears as a complete
	// token inside the longer name.
	containmentScore = 0.7

	// containmentMaxLen bounds the short-name containment rule.
	containmentMaxLen = 4
)

// Candidate is one identity from the scraped source: a display name and
// the link it carries.
type Candidate struct {
	Name string
	Link string
}

// Target is one entity from the canonical source to be matched against
// candidates.
type Target struct {
	Name             string
	AlternativeNames []string
	VoiceActor       string
}

// ScoredMatch pairs a candidate with its score against some target.
type ScoredMatch struct {
	Candidate Candidate
	Score     float64
}

// MatchName scores how likely a and b name the same entity, in [0, 1].
// 1.0 means the names are identical after normalization.
func MatchName(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}

	score := Similarity(na, nb)
	if s := initialScore(na, nb); s > score {
		score = s
	}
	if s := tokenContainment(na, nb); s > score {
		score = s
	}
	if s := tokenScore(na, nb); s > score {
		score = s
	}
	return score
}

// names returns the target's primary name followed by its alternatives.
func (t Target) names() []string {
	return append([]string{t.Name}, t.AlternativeNames...)
}

// scoreAgainst is the target's best MatchName across all its name
// variants.
func (t Target) scoreAgainst(name string) float64 {
	best := 0.0
	for _, n := range t.names() {
		if s := MatchName(n, name); s > best {
			best = s
			if best == 1 {
				break
			}
		}
	}
	return best
}

// FindAllMatches scores every candidate against the target (trying the
// primary name and all alternatives), drops those below minScore, and
// returns the rest sorted by descending score. Candidates tied on score
// keep their input order. A minScore of zero or less means
// DefaultMinScore.
func FindAllMatches(target Target, candidates []Candidate, minScore float64) []ScoredMatch {
	if minScore <= 0 {
		minScore = DefaultMinScore
	}

	var matches []ScoredMatch
	for _, c := range candidates {
		if score := target.scoreAgainst(c.Name); score >= minScore {
			matches = append(matches, ScoredMatch{Candidate: c, Score: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	return matches
}

// initialScore handles one-character names: "l" matches "l lawliet"
// because the initial is the first whole token, but never "light".
func initialScore(a, b string) float64 {
	if utf8.RuneCountInString(a) == 1 && strings.HasPrefix(b, a+" ") {
		return singleCharScore
	}
	if utf8.RuneCountInString(b) == 1 && strings.HasPrefix(a, b+" ") {
		return singleCharScore
	}
	return 0
}

// tokenContainment awards a fixed bonus when a short name (at most four
// characters) appears as a complete token of the other name.
func tokenContainment(a, b string) float64 {
	short, long := a, b
	if utf8.RuneCountInString(short) > utf8.RuneCountInString(long) {
		short, long = long, short
	}
	if utf8.RuneCountInString(short) > containmentMaxLen {
		return 0
	}
	for _, tok := range strings.Fields(long) {
		if tok == short {
			return containmentScore
		}
	}
	return 0
}

// tokenScore matches multi-word names token by token. Each token of a
// finds its best counterpart in b (exact match wins outright, otherwise
// similarity above tokenFloor counts); the average over matched tokens is
// scaled by how much of the longer name was covered. This rewards
// romanization variants like "souichirou yamada" vs "soichiro yamada"
// that fare poorly as raw whole-string edit distance.
func tokenScore(a, b string) float64 {
	ta, tb := strings.Fields(a), strings.Fields(b)
	if len(ta) < 2 || len(tb) < 2 {
		return 0
	}

	sum := 0.0
	matched := 0
	for _, tok := range ta {
		if utf8.RuneCountInString(tok) <= 1 {
			continue
		}
		best := 0.0
		for _, other := range tb {
			if tok == other {
				best = 1
				break
			}
			if s := Similarity(tok, other); s > tokenFloor && s > best {
				best = s
			}
		}
		if best > 0 {
			sum += best
			matched++
		}
	}

	if matched == 0 {
		return 0
	}

	avg := sum / float64(matched)
	coverage := float64(matched) / float64(max(len(ta), len(tb)))
	return avg * coverage
}
