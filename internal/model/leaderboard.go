package model

// LeaderboardStats is the precomputed aggregate for one user in one season scope.
type LeaderboardStats struct {
	UserID               int64   `json:"userId"`
	SeasonYear           int     `json:"seasonYear"`
	SeasonType           int     `json:"seasonType"`
	TotalPredictions     int     `json:"totalPredictions"`
	CorrectPredictions   int     `json:"correctPredictions"`
	IncorrectPredictions int     `json:"incorrectPredictions"`
	PendingPredictions   int     `json:"pendingPredictions"`
	WinPercentage        float64 `json:"winPercentage"`
}

// LeaderboardEntry is one ranked row of the leaderboard read.
type LeaderboardEntry struct {
	UserID               int64   `json:"userId"`
	DisplayName          string  `json:"displayName"`
	TotalPredictions     int     `json:"totalPredictions"`
	CorrectPredictions   int     `json:"correctPredictions"`
	IncorrectPredictions int     `json:"incorrectPredictions"`
	PendingPredictions   int     `json:"pendingPredictions"`
	WinPercentage        float64 `json:"winPercentage"`
	Rank                 int     `json:"rank"`
}
