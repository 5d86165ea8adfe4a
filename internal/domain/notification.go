package domain

import "context"

// NotificationService defines the interface for notification services
type NotificationService interface {
	// SendSuccess sends a success notification with run statistics
	SendSuccess(ctx context.Context, stats Statistics) error

	// SendError sends an error notification with error details
	SendError(ctx context.Context, err error) error
}

// Statistics holds the final statistics for a reconciliation run
type Statistics struct {
	AniListID                 int
	MalID                     int
	Title                     string
	TotalCharacters           int
	MatchedCharacters         int
	MatchedVoiceActors        int
	CharacterCoveragePercent  float64
	VoiceActorCoveragePercent float64
}
