package domain

// Character is one entry in the canonical (AniList) roster.
type Character struct {
	Name             string   `json:"name"`
	AlternativeNames []string `json:"alternativeNames,omitempty"`
	VoiceActor       string   `json:"voiceActor,omitempty"`
}

// Roster is the character list for one anime as reported by AniList.
type Roster struct {
	AniListID  int         `json:"anilistid"`
	MalID      int         `json:"malid,omitempty"`
	Title      string      `json:"title"`
	Characters []Character `json:"characters"`
}

// Candidate is one scraped row from the MAL character table: a display
// name and the page it links to.
type Candidate struct {
	Name string `json:"name"`
	Link string `json:"link"`
}

// CandidateSet holds the two independent candidate pools scraped from a
// MAL character page.
type CandidateSet struct {
	MalID      int         `json:"malid"`
	Characters []Candidate `json:"characters"`
	People     []Candidate `json:"people"`
}

// MatchedCharacter is a roster character with the links assigned to it.
// Empty link fields mean no candidate cleared the threshold or a
// higher-scoring character claimed the candidate first.
type MatchedCharacter struct {
	Name            string  `json:"name"`
	CharacterLink   string  `json:"characterLink,omitempty"`
	CharacterScore  float64 `json:"characterScore,omitempty"`
	VoiceActor      string  `json:"voiceActor,omitempty"`
	VoiceActorLink  string  `json:"voiceActorLink,omitempty"`
	VoiceActorScore float64 `json:"voiceActorScore,omitempty"`
}

// MatchedRoster is the reconciled output for one anime.
type MatchedRoster struct {
	AniListID  int                `json:"anilistid"`
	MalID      int                `json:"malid"`
	Title      string             `json:"title"`
	Characters []MatchedCharacter `json:"characters"`
}
