package model

import "time"

// Prediction is one user's pick for one game.
//
// PredictedWinnerTeamID nil means "no pick": these rows are only created by
// grading, as the automatic loss for a user who never picked.
// IsCorrect is tri-state: nil while pending, then true/false once graded.
type Prediction struct {
	ID                    int64     `json:"id"`
	UserID                int64     `json:"userId"`
	GameID                int64     `json:"gameId"`
	PredictedWinnerTeamID *string   `json:"predictedWinnerTeamId"`
	IsCorrect             *bool     `json:"isCorrect"`
	CreatedAt             time.Time `json:"createdAt"`
	UpdatedAt             time.Time `json:"updatedAt"`
}
