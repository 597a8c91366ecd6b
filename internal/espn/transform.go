package espn

import (
	"strconv"
	"strings"
	"time"

	"github.com/sakif/gridiron-picks/internal/apperror"
	"github.com/sakif/gridiron-picks/internal/model"
)

// The feed emits minute-precision UTC timestamps ("2025-09-05T00:20Z").
var dateLayouts = []string{
	"2006-01-02T15:04Z07:00",
	time.RFC3339,
}

// TransformEvent maps one feed event to a Game for the given season scope.
//
// Status: completed wins, then state "in", otherwise scheduled.
// Winner (final games only): the competitor's explicit winner flag, else the
// higher score, else nil for a tie.
func TransformEvent(event Event, seasonYear, seasonType, week int) (*model.Game, error) {
	if len(event.Competitions) == 0 {
		return nil, apperror.MalformedEvent(event.ID, "no competition data")
	}

	var home, away *Competitor
	homeCount, awayCount := 0, 0
	for i := range event.Competitions[0].Competitors {
		c := &event.Competitions[0].Competitors[i]
		switch c.HomeAway {
		case "home":
			home = c
			homeCount++
		case "away":
			away = c
			awayCount++
		}
	}
	if homeCount != 1 || awayCount != 1 {
		return nil, apperror.MalformedEvent(event.ID, "missing team data")
	}
	if home.Team.ID == "" || away.Team.ID == "" {
		return nil, apperror.MalformedEvent(event.ID, "competitor without a team id")
	}

	gameDate, err := parseDate(event.Date)
	if err != nil {
		return nil, apperror.MalformedEvent(event.ID, "unparseable date "+strconv.Quote(event.Date))
	}

	status := model.GameStatusScheduled
	switch {
	case event.Status.Type.Completed:
		status = model.GameStatusFinal
	case event.Status.Type.State == "in":
		status = model.GameStatusInProgress
	}

	homeScore, awayScore := parseScore(home.Score), parseScore(away.Score)

	var winner *string
	if status == model.GameStatusFinal {
		switch {
		case home.Winner:
			winner = &home.Team.ID
		case away.Winner:
			winner = &away.Team.ID
		case homeScore > awayScore:
			winner = &home.Team.ID
		case awayScore > homeScore:
			winner = &away.Team.ID
		}
	}

	return &model.Game{
		ESPNEventID:  event.ID,
		SeasonYear:   seasonYear,
		SeasonType:   seasonType,
		Week:         week,
		HomeTeam:     toTeam(home.Team),
		AwayTeam:     toTeam(away.Team),
		GameDate:     gameDate,
		Status:       status,
		HomeScore:    homeScore,
		AwayScore:    awayScore,
		WinnerTeamID: winner,
	}, nil
}

func toTeam(t Team) model.Team {
	name := t.DisplayName
	if name == "" {
		name = t.Name
	}
	team := model.Team{ID: t.ID, Name: name, Abbreviation: t.Abbreviation}
	if t.Logo != "" {
		logo := t.Logo
		team.Logo = &logo
	}
	return team
}

func parseDate(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// parseScore treats an empty or non-numeric score as 0, as the feed does before kickoff.
func parseScore(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}
