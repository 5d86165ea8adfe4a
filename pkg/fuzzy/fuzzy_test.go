package fuzzy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "lowercase and trim", in: "  Light Yagami ", want: "light yagami"},
		{name: "punctuation becomes token break", in: "Yagami,Light", want: "yagami light"},
		{name: "dots dropped", in: "Monkey D. Luffy", want: "monkey d luffy"},
		{name: "hyphen honorific", in: "Naruto-kun", want: "naruto"},
		{name: "space honorific", in: "Sakura chan", want: "sakura"},
		{name: "sama honorific", in: "Sebastian-sama", want: "sebastian"},
		{name: "embedded honorific kept", in: "Hassan", want: "hassan"},
		{name: "whitespace collapsed", in: "Edward   Elric", want: "edward elric"},
		{name: "empty", in: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("edward", "edward"))
	assert.Equal(t, 0.0, Similarity("", "edward"))
	assert.Equal(t, 0.0, Similarity("edward", ""))

	// kitten -> sitting is the classic distance-3 pair.
	assert.InDelta(t, 1.0-3.0/7.0, Similarity("kitten", "sitting"), 1e-9)

	// Symmetric.
	assert.Equal(t, Similarity("soichiro", "souichirou"), Similarity("souichirou", "soichiro"))
}

func TestMatchNameExactAfterNormalization(t *testing.T) {
	assert.Equal(t, 1.0, MatchName("Light Yagami", "light.yagami"))
	assert.Equal(t, 1.0, MatchName("Naruto-kun", "Naruto"))
	assert.Equal(t, 0.0, MatchName("", "Naruto"))
}

func TestMatchNameRomanizationVariants(t *testing.T) {
	// Token matching must beat raw edit distance on romanization
	// variants: both tokens align (one exactly, one within the floor) so
	// the token score is the per-token average at full coverage.
	direct := Similarity(Normalize("Souichirou Yamada"), Normalize("Soichiro Yamada"))
	score := MatchName("Souichirou Yamada", "Soichiro Yamada")

	assert.InDelta(t, 0.9, score, 1e-9)
	assert.Greater(t, score, direct)
}

func TestMatchNameInitials(t *testing.T) {
	// A single letter matches a name it abbreviates...
	assert.InDelta(t, 0.9, MatchName("L", "L Lawliet"), 1e-9)

	// ...but not a name that merely starts with it.
	assert.Less(t, MatchName("L", "Light"), DefaultMinScore)
}

func TestMatchNameShortContainment(t *testing.T) {
	// A short name appearing as a whole token gets the containment bonus.
	assert.InDelta(t, 0.7, MatchName("Ed", "Ed Elric"), 1e-9)

	// Longer names get no containment bonus; this pair only scores its
	// edit distance.
	assert.InDelta(t, 0.5, MatchName("Edward", "Edward Elric"), 1e-9)
}

func TestTokenScorePartialCoverage(t *testing.T) {
	// One of two tokens matches, so coverage halves the token score.
	assert.InDelta(t, 0.5, tokenScore("al elric", "edward elric"), 1e-9)

	// Single-token names never token-score.
	assert.Equal(t, 0.0, tokenScore("edward", "edward elric"))

	// One-character tokens are skipped, not counted against coverage
	// matches.
	assert.InDelta(t, 0.5, tokenScore("l lawliet", "el lawliet"), 1e-9)
}

func TestFindAllMatches(t *testing.T) {
	target := Target{Name: "Light Yagami"}
	candidates := []Candidate{
		{Name: "Sasuke Uchiha", Link: "/1"},
		{Name: "Light Yagami", Link: "/2"},
		{Name: "Yagami Light", Link: "/3"},
		{Name: "L", Link: "/4"},
	}

	matches := FindAllMatches(target, candidates, 0)

	// "L" vs "light yagami" stays below the default floor.
	assert.Len(t, matches, 2)
	assert.Equal(t, "/2", matches[0].Candidate.Link)
	assert.Equal(t, 1.0, matches[0].Score)
	assert.Equal(t, "/3", matches[1].Candidate.Link)
	assert.Equal(t, 1.0, matches[1].Score)
}

func TestFindAllMatchesAlternativeNames(t *testing.T) {
	target := Target{
		Name:             "Ranma Saotome",
		AlternativeNames: []string{"Ranko Tendo"},
	}
	candidates := []Candidate{
		{Name: "Ranko Tendo", Link: "/alt"},
	}

	matches := FindAllMatches(target, candidates, 0)
	assert.Len(t, matches, 1)
	assert.Equal(t, 1.0, matches[0].Score)
}

func TestFindAllMatchesCustomFloor(t *testing.T) {
	target := Target{Name: "Edward Elric"}
	candidates := []Candidate{
		{Name: "Eduard Elric", Link: "/1"},
	}

	assert.NotEmpty(t, FindAllMatches(target, candidates, 0.8))
	assert.Empty(t, FindAllMatches(target, candidates, 0.99))
}
