package model

import "time"

// Season types as reported by the score feed.
const (
	SeasonTypePreseason  = 1
	SeasonTypeRegular    = 2
	SeasonTypePostseason = 3
)

// MaxRegularSeasonWeeks is the last week of the regular season.
const MaxRegularSeasonWeeks = 18

// MaxWeeks returns the number of weeks in a season type.
func MaxWeeks(seasonType int) int {
	if seasonType == SeasonTypeRegular {
		return MaxRegularSeasonWeeks
	}
	return 4
}

// GameStatus is the lifecycle of a game: scheduled → in_progress → final.
type GameStatus string

const (
	GameStatusScheduled  GameStatus = "scheduled"
	GameStatusInProgress GameStatus = "in_progress"
	GameStatusFinal      GameStatus = "final"
)

// Team is a snapshot of a team taken at sync time. It is stored
// denormalized on the game row; there is no teams table.
type Team struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Abbreviation string  `json:"abbreviation"`
	Logo         *string `json:"logo,omitempty"`
}

// Game is one event from the score feed. Only the sync pipeline writes games.
type Game struct {
	ID           int64      `json:"id"`
	ESPNEventID  string     `json:"espnEventId"`
	SeasonYear   int        `json:"seasonYear"`
	SeasonType   int        `json:"seasonType"`
	Week         int        `json:"week"`
	HomeTeam     Team       `json:"homeTeam"`
	AwayTeam     Team       `json:"awayTeam"`
	GameDate     time.Time  `json:"gameDate"`
	Status       GameStatus `json:"gameStatus"`
	HomeScore    int        `json:"homeScore"`
	AwayScore    int        `json:"awayScore"`
	WinnerTeamID *string    `json:"winnerTeamId,omitempty"` // nil until final, and on ties
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// IsLocked reports whether predictions for the game are frozen at now.
// The lock boundary is inclusive of kickoff: at exactly GameDate the game is locked.
func (g *Game) IsLocked(now time.Time) bool {
	return !now.Before(g.GameDate)
}

// HasTeam reports whether teamID is one of the two sides.
func (g *Game) HasTeam(teamID string) bool {
	return teamID == g.HomeTeam.ID || teamID == g.AwayTeam.ID
}

// IsGradable reports whether the game has a result predictions can be graded against.
func (g *Game) IsGradable() bool {
	return g.Status == GameStatusFinal && g.WinnerTeamID != nil
}
