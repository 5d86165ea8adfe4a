package domain

import "context"

// RosterRepository defines storage for reconciled rosters.
type RosterRepository interface {
	GetMatched(ctx context.Context, path string) (*MatchedRoster, error)
	StoreMatched(ctx context.Context, path string, roster *MatchedRoster) error
}

// ReportRepository defines storage for unmatched-character reports.
type ReportRepository interface {
	StoreReport(ctx context.Context, path string, report *UnmatchedReport) error
}

// UnmatchedReport lists roster characters that received no link, for
// manual review.
type UnmatchedReport struct {
	AniListID  int                  `yaml:"anilistid"`
	MalID      int                  `yaml:"malid"`
	Title      string               `yaml:"title"`
	Characters []UnmatchedCharacter `yaml:"characters"`
}

// UnmatchedCharacter is one review entry in an UnmatchedReport.
type UnmatchedCharacter struct {
	Name      string  `yaml:"name"`
	BestScore float64 `yaml:"bestScore"`
	Reason    string  `yaml:"reason"`
}
