package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/sakif/gridiron-picks/internal/espn"
	"github.com/sakif/gridiron-picks/internal/model"
	"github.com/sakif/gridiron-picks/internal/repository/sqlite"
)

// Service tests run against an in-memory SQLite store.

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createUser(t *testing.T, db *sqlite.DB, name string) *model.User {
	t.Helper()
	u := &model.User{DisplayName: name}
	if err := db.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return u
}

// createGame stores a 2025 regular-season week-1 game, home "12" (KC) vs away "2" (BUF).
func createGame(t *testing.T, db *sqlite.DB, eventID string, kickoff time.Time) *model.Game {
	t.Helper()
	g := &model.Game{
		ESPNEventID: eventID,
		SeasonYear:  2025,
		SeasonType:  model.SeasonTypeRegular,
		Week:        1,
		HomeTeam:    model.Team{ID: "12", Name: "Kansas City Chiefs", Abbreviation: "KC"},
		AwayTeam:    model.Team{ID: "2", Name: "Buffalo Bills", Abbreviation: "BUF"},
		GameDate:    kickoff,
		Status:      model.GameStatusScheduled,
	}
	if _, err := db.UpsertGame(context.Background(), g); err != nil {
		t.Fatalf("failed to create game: %v", err)
	}
	return g
}

func strPtr(s string) *string { return &s }

// =========================================================================
// FAKE SCORE SOURCE
// =========================================================================

type scoreboardCall struct {
	seasonYear, seasonType, week int
	fresh                        bool
}

// fakeSource serves canned scoreboards per week and records every request.
type fakeSource struct {
	year       int
	weeks      map[int][]espn.Event
	current    *espn.CurrentWeek
	err        error
	currentErr error
	calls      []scoreboardCall

	currentFresh []bool
}

func (f *fakeSource) Scoreboard(_ context.Context, seasonYear, seasonType, week int, fresh bool) (*espn.ScoreboardResponse, error) {
	f.calls = append(f.calls, scoreboardCall{seasonYear, seasonType, week, fresh})
	if f.err != nil {
		return nil, f.err
	}
	sb := &espn.ScoreboardResponse{
		Week:   espn.Week{Number: week},
		Events: f.weeks[week],
	}
	if f.year > 0 {
		sb.Leagues = []espn.League{{Season: espn.LeagueSeason{Year: f.year, Type: espn.SeasonType(seasonType)}}}
	}
	return sb, nil
}

func (f *fakeSource) CurrentWeek(_ context.Context, fresh bool) (*espn.CurrentWeek, error) {
	f.currentFresh = append(f.currentFresh, fresh)
	if f.currentErr != nil {
		return nil, f.currentErr
	}
	return f.current, nil
}

// feedEvent builds a feed event between TeamX (home, id "X") and TeamY (away, id "Y").
func feedEvent(id, date string, homeScore, awayScore string, completed bool) espn.Event {
	state := "pre"
	if completed {
		state = "post"
	}
	return espn.Event{
		ID:     id,
		Date:   date,
		Status: espn.Status{Type: espn.StatusType{State: state, Completed: completed}},
		Competitions: []espn.Competition{{
			Competitors: []espn.Competitor{
				{HomeAway: "home", Score: homeScore, Team: espn.Team{ID: "X", DisplayName: "TeamX", Abbreviation: "TX"}},
				{HomeAway: "away", Score: awayScore, Team: espn.Team{ID: "Y", DisplayName: "TeamY", Abbreviation: "TY"}},
			},
		}},
	}
}
