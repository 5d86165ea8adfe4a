package domain

// Rating is one source's score for an anime, normalized to a 0-10 scale.
type Rating struct {
	Source   string  `json:"source"`
	Score    float64 `json:"score"`
	ScoredBy int     `json:"scoredBy,omitempty"`
}

// SeaDexEntry is the releases.moe record for an AniList id.
type SeaDexEntry struct {
	ID            string `json:"id"`
	AniListID     int    `json:"alID"`
	Notes         string `json:"notes"`
	Incomplete    bool   `json:"incomplete"`
	ComparisonURL string `json:"comparison,omitempty"`
}
