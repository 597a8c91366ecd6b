// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes the database
//
// Services take repository interfaces, never *sqlite.DB, and return apperror
// values the handlers translate to HTTP. The same services back cmd/sync and
// cmd/tokens, which have no HTTP at all.
//
// THE SCORE PIPELINE:
//
//	SyncService   fetch a week from the feed → upsert games
//	ScoringService grade predictions on final games → recompute leaderboard
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/gridiron-picks/internal/apperror"
	"github.com/sakif/gridiron-picks/internal/metrics"
	"github.com/sakif/gridiron-picks/internal/model"
	"github.com/sakif/gridiron-picks/internal/repository"
)

// Pairing is an unordered pair of teams, each given by team id or abbreviation.
type Pairing struct {
	A, B string
}

// ExemptPairings lists matchups whose final result does not penalize users who
// made no pick.
type ExemptPairings []Pairing

// ParseExemptPairings reads a comma-separated list such as "GB:DET,KC:BUF".
// Blank input means no exemptions.
func ParseExemptPairings(s string) (ExemptPairings, error) {
	var out ExemptPairings
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		a, b, ok := strings.Cut(item, ":")
		a, b = strings.TrimSpace(a), strings.TrimSpace(b)
		if !ok || a == "" || b == "" {
			return nil, fmt.Errorf("exempt pairing %q: want TEAM:TEAM", item)
		}
		out = append(out, Pairing{A: a, B: b})
	}
	return out, nil
}

// Matches reports whether g is one of the exempt matchups, in either
// home/away orientation.
func (e ExemptPairings) Matches(g *model.Game) bool {
	for _, p := range e {
		if (teamIs(g.HomeTeam, p.A) && teamIs(g.AwayTeam, p.B)) ||
			(teamIs(g.HomeTeam, p.B) && teamIs(g.AwayTeam, p.A)) {
			return true
		}
	}
	return false
}

func teamIs(t model.Team, ref string) bool {
	return strings.EqualFold(t.ID, ref) || strings.EqualFold(t.Abbreviation, ref)
}

// ScoringService grades predictions for finished games.
type ScoringService struct {
	games       repository.GameRepository
	predictions repository.PredictionRepository
	leaderboard repository.LeaderboardRepository
	exempt      ExemptPairings
	logger      *slog.Logger
}

func NewScoringService(
	games repository.GameRepository,
	predictions repository.PredictionRepository,
	leaderboard repository.LeaderboardRepository,
	exempt ExemptPairings,
	logger *slog.Logger,
) *ScoringService {
	return &ScoringService{
		games:       games,
		predictions: predictions,
		leaderboard: leaderboard,
		exempt:      exempt,
		logger:      logger,
	}
}

// GradeGame settles every prediction on a game against its stored winner and
// then rebuilds the leaderboard for the game's season.
//
// A game without a winner (not final yet, or a tie) is left alone. Running it
// again with the same winner changes nothing.
func (s *ScoringService) GradeGame(ctx context.Context, gameID int64) error {
	game, err := s.games.GetGameByID(ctx, gameID)
	if err != nil {
		return err
	}

	if game.WinnerTeamID == nil {
		s.logger.Info("game has no winner yet, skipping grading",
			slog.Int64("game_id", gameID),
			slog.String("status", string(game.Status)),
		)
		return nil
	}

	penalize := !s.exempt.Matches(game)
	if !penalize {
		s.logger.Info("exempt matchup, not penalizing missing picks",
			slog.Int64("game_id", gameID),
			slog.String("home", game.HomeTeam.Abbreviation),
			slog.String("away", game.AwayTeam.Abbreviation),
		)
	}

	counts, err := s.predictions.GradeGame(ctx, gameID, *game.WinnerTeamID, penalize)
	if err != nil {
		return fmt.Errorf("grading game %d: %w", gameID, err)
	}
	metrics.GamesGradedTotal.Inc()
	metrics.PredictionsGradedTotal.Add(float64(counts.Graded))

	s.logger.Info("game graded",
		slog.Int64("game_id", gameID),
		slog.String("winner", *game.WinnerTeamID),
		slog.Int64("missing_inserted", counts.MissingInserted),
		slog.Int64("graded", counts.Graded),
	)

	if err := s.leaderboard.Recompute(ctx, game.SeasonYear, game.SeasonType); err != nil {
		return fmt.Errorf("recomputing leaderboard after game %d: %w", gameID, err)
	}
	return nil
}

// Recompute rebuilds one season scope's leaderboard on demand.
func (s *ScoringService) Recompute(ctx context.Context, seasonYear, seasonType int) error {
	if err := validateSeason(seasonYear, seasonType); err != nil {
		return err
	}
	return s.leaderboard.Recompute(ctx, seasonYear, seasonType)
}

func validateSeason(seasonYear, seasonType int) error {
	if seasonYear < 1900 || seasonYear > 3000 {
		return apperror.ValidationFailed("seasonYear", "season year is out of range")
	}
	if seasonType < model.SeasonTypePreseason || seasonType > model.SeasonTypePostseason {
		return apperror.ValidationFailed("seasonType", "season type must be 1, 2 or 3")
	}
	return nil
}
