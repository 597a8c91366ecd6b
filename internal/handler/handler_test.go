package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/gridiron-picks/internal/apperror"
	"github.com/sakif/gridiron-picks/internal/auth"
	"github.com/sakif/gridiron-picks/internal/espn"
	"github.com/sakif/gridiron-picks/internal/handler"
	"github.com/sakif/gridiron-picks/internal/model"
	"github.com/sakif/gridiron-picks/internal/repository/sqlite"
	"github.com/sakif/gridiron-picks/internal/service"
)

// MockSource serves a fixed scoreboard and current week without any network.
type MockSource struct {
	Events        []espn.Event
	Current       *espn.CurrentWeek
	Err           error
	CapturedWeek  int
	CapturedFresh bool
}

func (m *MockSource) Scoreboard(_ context.Context, _, seasonType, week int, fresh bool) (*espn.ScoreboardResponse, error) {
	m.CapturedWeek, m.CapturedFresh = week, fresh
	if m.Err != nil {
		return nil, m.Err
	}
	return &espn.ScoreboardResponse{
		Leagues: []espn.League{{Season: espn.LeagueSeason{Year: 2025, Type: espn.SeasonType(seasonType)}}},
		Events:  m.Events,
	}, nil
}

func (m *MockSource) CurrentWeek(context.Context, bool) (*espn.CurrentWeek, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Current, nil
}

type testEnv struct {
	db          *sqlite.DB
	source      *MockSource
	games       *handler.GameHandler
	predictions *handler.PredictionHandler
	users       *handler.UserHandler
	sync        *handler.SyncHandler
	health      *handler.HealthHandler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	source := &MockSource{}
	season := handler.Season{Year: 2025, Type: model.SeasonTypeRegular}
	scoring := service.NewScoringService(db, db, db, nil, logger)
	queries := service.NewQueryService(db, db, db)

	return &testEnv{
		db:          db,
		source:      source,
		games:       handler.NewGameHandler(queries, source, season, logger),
		predictions: handler.NewPredictionHandler(service.NewPredictionService(db, logger), logger),
		users:       handler.NewUserHandler(service.NewUserService(db, logger), queries, season, logger),
		sync: handler.NewSyncHandler(
			service.NewSyncService(source, db, scoring, logger),
			scoring,
			service.NewImporter(db, logger),
			season,
			logger,
		),
		health: handler.NewHealthHandler(db, logger),
	}
}

func (e *testEnv) createUser(t *testing.T, name string) *model.User {
	t.Helper()
	u := &model.User{DisplayName: name}
	require.NoError(t, e.db.CreateUser(context.Background(), u))
	return u
}

func (e *testEnv) createGame(t *testing.T, eventID string, kickoff time.Time) *model.Game {
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
	_, err := e.db.UpsertGame(context.Background(), g)
	require.NoError(t, err)
	return g
}

// request builds a request the way the router would hand it over: principal
// in the context and chi URL params filled in.
func request(method, target, body string, p *auth.Principal, params map[string]string) *http.Request {
	var rdr io.Reader = http.NoBody
	if body != "" {
		rdr = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, target, rdr)
	req.Header.Set("Content-Type", "application/json")

	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	if p != nil {
		ctx = auth.WithPrincipal(ctx, p)
	}
	return req.WithContext(ctx)
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v))
	return v
}

func userP(id int64) *auth.Principal { return &auth.Principal{Kind: auth.KindUser, UserID: id} }

var adminP = &auth.Principal{Kind: auth.KindAdmin}

func TestHealthHandler(t *testing.T) {
	env := newTestEnv(t)
	rr := httptest.NewRecorder()

	env.health.HandleHealth(rr, request(http.MethodGet, "/api/health", "", nil, nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, rr)["status"])
}

func TestGameHandler_HandleGames(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "Alice")
	game := env.createGame(t, "401", time.Now().Add(time.Hour))
	_, err := service.NewPredictionService(env.db, slog.Default()).BulkSave(context.Background(), userP(user.ID),
		[]service.PredictionInput{{UserID: user.ID, GameID: game.ID, PredictedWinnerTeamID: strPtr("12")}})
	require.NoError(t, err)

	t.Run("defaults to configured season and week 1", func(t *testing.T) {
		rr := httptest.NewRecorder()
		env.games.HandleGames(rr, request(http.MethodGet, "/api/games", "", nil, nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		body := decode[service.WeekGames](t, rr)
		require.Len(t, body.Games, 1)
		assert.Equal(t, "401", body.Games[0].ESPNEventID)
		require.Len(t, body.Predictions, 1)
		assert.Equal(t, user.ID, body.Predictions[0].UserID)
	})

	t.Run("empty week", func(t *testing.T) {
		rr := httptest.NewRecorder()
		env.games.HandleGames(rr, request(http.MethodGet, "/api/games?week=2", "", nil, nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Empty(t, decode[service.WeekGames](t, rr).Games)
	})

	t.Run("non-numeric week", func(t *testing.T) {
		rr := httptest.NewRecorder()
		env.games.HandleGames(rr, request(http.MethodGet, "/api/games?week=abc", "", nil, nil))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		body := decode[handler.ErrorResponse](t, rr)
		assert.Equal(t, "validation_error", body.Error)
		assert.Equal(t, "week", body.Field)
	})
}

func TestGameHandler_HandleLeaderboard(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "Bob")
	env.createUser(t, "Alice")

	rr := httptest.NewRecorder()
	env.games.HandleLeaderboard(rr, request(http.MethodGet, "/api/leaderboard?seasonYear=2025&seasonType=2", "", nil, nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	entries := decode[[]model.LeaderboardEntry](t, rr)
	require.Len(t, entries, 2)
	assert.Equal(t, "Alice", entries[0].DisplayName, "ties order by name")
	assert.Equal(t, 1, entries[1].Rank, "equal records share a rank")
}

func TestGameHandler_HandleCurrentWeek(t *testing.T) {
	env := newTestEnv(t)

	t.Run("ok", func(t *testing.T) {
		env.source.Current = &espn.CurrentWeek{SeasonType: 2, Week: 5, Year: 2025}
		rr := httptest.NewRecorder()
		env.games.HandleCurrentWeek(rr, request(http.MethodGet, "/api/current-week", "", nil, nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, 5, decode[espn.CurrentWeek](t, rr).Week)
	})

	t.Run("feed down", func(t *testing.T) {
		env.source.Err = apperror.Upstream("score feed returned status 503", nil)
		t.Cleanup(func() { env.source.Err = nil })
		rr := httptest.NewRecorder()
		env.games.HandleCurrentWeek(rr, request(http.MethodGet, "/api/current-week", "", nil, nil))

		assert.Equal(t, http.StatusBadGateway, rr.Code)
	})
}

func TestPredictionHandler_HandleBulk(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "Alice")
	bob := env.createUser(t, "Bob")
	open := env.createGame(t, "open", time.Now().Add(time.Hour))
	started := env.createGame(t, "started", time.Now().Add(-time.Hour))

	t.Run("applies and skips locked", func(t *testing.T) {
		body := `{"predictions":[
			{"userId":` + itoa(alice.ID) + `,"gameId":` + itoa(open.ID) + `,"predictedWinnerTeamId":"12"},
			{"userId":` + itoa(alice.ID) + `,"gameId":` + itoa(started.ID) + `,"predictedWinnerTeamId":"2"}
		]}`
		rr := httptest.NewRecorder()
		env.predictions.HandleBulk(rr, request(http.MethodPost, "/api/predictions", body, userP(alice.ID), nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, service.BulkResult{Applied: 1, Skipped: 1}, decode[service.BulkResult](t, rr))
	})

	t.Run("foreign user is forbidden", func(t *testing.T) {
		body := `{"predictions":[{"userId":` + itoa(bob.ID) + `,"gameId":` + itoa(open.ID) + `,"predictedWinnerTeamId":"12"}]}`
		rr := httptest.NewRecorder()
		env.predictions.HandleBulk(rr, request(http.MethodPost, "/api/predictions", body, userP(alice.ID), nil))

		assert.Equal(t, http.StatusForbidden, rr.Code)
		_, err := env.db.GetPrediction(context.Background(), bob.ID, open.ID)
		assert.ErrorIs(t, err, apperror.ErrNotFound)
	})

	t.Run("admin may act for anyone", func(t *testing.T) {
		body := `{"predictions":[{"userId":` + itoa(bob.ID) + `,"gameId":` + itoa(open.ID) + `,"predictedWinnerTeamId":"2"}]}`
		rr := httptest.NewRecorder()
		env.predictions.HandleBulk(rr, request(http.MethodPost, "/api/predictions", body, adminP, nil))

		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("unknown game", func(t *testing.T) {
		body := `{"predictions":[{"userId":` + itoa(alice.ID) + `,"gameId":9999,"predictedWinnerTeamId":"12"}]}`
		rr := httptest.NewRecorder()
		env.predictions.HandleBulk(rr, request(http.MethodPost, "/api/predictions", body, userP(alice.ID), nil))

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	for name, body := range map[string]string{
		"invalid json":      `{"predictions":`,
		"no predictions":    `{}`,
		"empty predictions": `{"predictions":[]}`,
		"zero game id":      `{"predictions":[{"userId":1,"gameId":0,"predictedWinnerTeamId":"12"}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			env.predictions.HandleBulk(rr, request(http.MethodPost, "/api/predictions", body, userP(alice.ID), nil))

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, "validation_error", decode[handler.ErrorResponse](t, rr).Error)
		})
	}
}

func TestPredictionHandler_Single(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "Alice")
	open := env.createGame(t, "open", time.Now().Add(time.Hour))
	started := env.createGame(t, "started", time.Now().Add(-time.Hour))

	t.Run("put defaults to the token's user", func(t *testing.T) {
		rr := httptest.NewRecorder()
		env.predictions.HandlePut(rr, request(http.MethodPut, "/api/predictions/x", `{"predictedWinnerTeamId":"2"}`,
			userP(alice.ID), map[string]string{"gameId": itoa(open.ID)}))

		assert.Equal(t, http.StatusOK, rr.Code)
		p, err := env.db.GetPrediction(context.Background(), alice.ID, open.ID)
		require.NoError(t, err)
		assert.Equal(t, "2", *p.PredictedWinnerTeamID)
	})

	t.Run("put on a started game is locked", func(t *testing.T) {
		rr := httptest.NewRecorder()
		env.predictions.HandlePut(rr, request(http.MethodPut, "/api/predictions/x", `{"predictedWinnerTeamId":"2"}`,
			userP(alice.ID), map[string]string{"gameId": itoa(started.ID)}))

		assert.Equal(t, http.StatusConflict, rr.Code)
		assert.Equal(t, "locked", decode[handler.ErrorResponse](t, rr).Error)
	})

	t.Run("admin must name the user", func(t *testing.T) {
		rr := httptest.NewRecorder()
		env.predictions.HandlePut(rr, request(http.MethodPut, "/api/predictions/x", `{"predictedWinnerTeamId":"2"}`,
			adminP, map[string]string{"gameId": itoa(open.ID)}))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("admin naming an unknown user gets 404", func(t *testing.T) {
		rr := httptest.NewRecorder()
		env.predictions.HandlePut(rr, request(http.MethodPut, "/api/predictions/x", `{"userId":999,"predictedWinnerTeamId":"2"}`,
			adminP, map[string]string{"gameId": itoa(open.ID)}))

		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.Equal(t, "not_found", decode[handler.ErrorResponse](t, rr).Error)
	})

	t.Run("bad game id", func(t *testing.T) {
		rr := httptest.NewRecorder()
		env.predictions.HandlePut(rr, request(http.MethodPut, "/api/predictions/x", `{"predictedWinnerTeamId":"2"}`,
			userP(alice.ID), map[string]string{"gameId": "abc"}))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("delete", func(t *testing.T) {
		rr := httptest.NewRecorder()
		env.predictions.HandleDelete(rr, request(http.MethodDelete, "/api/predictions/x", "",
			userP(alice.ID), map[string]string{"gameId": itoa(open.ID)}))

		assert.Equal(t, http.StatusNoContent, rr.Code)
		_, err := env.db.GetPrediction(context.Background(), alice.ID, open.ID)
		assert.ErrorIs(t, err, apperror.ErrNotFound)
	})
}

func TestUserHandler_Register(t *testing.T) {
	env := newTestEnv(t)

	rr := httptest.NewRecorder()
	env.users.HandleRegister(rr, request(http.MethodPost, "/api/register", `{"displayName":"  Alice "}`, nil, nil))

	assert.Equal(t, http.StatusCreated, rr.Code)
	created := decode[map[string]any](t, rr)
	assert.Equal(t, "Alice", created["displayName"])
	assert.NotEmpty(t, created["token"])

	rr = httptest.NewRecorder()
	env.users.HandleRegister(rr, request(http.MethodPost, "/api/register", `{"displayName":"alice"}`, nil, nil))
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = httptest.NewRecorder()
	env.users.HandleRegister(rr, request(http.MethodPost, "/api/register", `{"displayName":""}`, nil, nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUserHandler_HandleMe(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "Alice")

	rr := httptest.NewRecorder()
	env.users.HandleMe(rr, request(http.MethodGet, "/api/me", "", userP(alice.ID), nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	body := decode[map[string]any](t, rr)
	assert.Equal(t, "user", body["kind"])
	assert.Equal(t, "Alice", body["user"].(map[string]any)["displayName"])
	assert.NotContains(t, body["user"], "token")
	assert.NotNil(t, body["stats"])

	rr = httptest.NewRecorder()
	env.users.HandleMe(rr, request(http.MethodGet, "/api/me", "", adminP, nil))
	assert.Equal(t, map[string]any{"kind": "admin"}, decode[map[string]any](t, rr))
}

func TestUserHandler_Admin(t *testing.T) {
	env := newTestEnv(t)

	rr := httptest.NewRecorder()
	env.users.HandleCreate(rr, request(http.MethodPost, "/api/admin/users", `{"displayName":"Alice"}`, adminP, nil))
	require.Equal(t, http.StatusCreated, rr.Code)
	created := decode[model.UserWithToken](t, rr)
	require.NotNil(t, created.Token)

	rr = httptest.NewRecorder()
	env.users.HandleRegenerateToken(rr, request(http.MethodPost, "/", "", adminP, map[string]string{"id": itoa(created.ID)}))
	require.Equal(t, http.StatusOK, rr.Code)
	rotated := decode[model.UserWithToken](t, rr)
	assert.NotEqual(t, *created.Token, *rotated.Token)

	bare := &model.User{DisplayName: "Bare"}
	require.NoError(t, env.db.CreateUser(context.Background(), bare))
	rr = httptest.NewRecorder()
	env.users.HandleBackfillTokens(rr, request(http.MethodPost, "/", "", adminP, nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.EqualValues(t, 1, decode[map[string]any](t, rr)["updated"])

	rr = httptest.NewRecorder()
	env.users.HandleList(rr, request(http.MethodGet, "/", "", adminP, nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]model.UserWithToken](t, rr), 2)

	rr = httptest.NewRecorder()
	env.users.HandleDelete(rr, request(http.MethodDelete, "/", "", adminP, map[string]string{"id": itoa(created.ID)}))
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = httptest.NewRecorder()
	env.users.HandleDelete(rr, request(http.MethodDelete, "/", "", adminP, map[string]string{"id": itoa(created.ID)}))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestSyncHandler_HandleSyncScores(t *testing.T) {
	env := newTestEnv(t)
	env.source.Events = []espn.Event{{
		ID:     "401",
		Date:   "2025-09-07T17:00Z",
		Status: espn.Status{Type: espn.StatusType{State: "post", Completed: true}},
		Competitions: []espn.Competition{{Competitors: []espn.Competitor{
			{HomeAway: "home", Score: "24", Team: espn.Team{ID: "12", DisplayName: "Kansas City Chiefs", Abbreviation: "KC"}},
			{HomeAway: "away", Score: "17", Team: espn.Team{ID: "2", DisplayName: "Buffalo Bills", Abbreviation: "BUF"}},
		}}},
	}}

	t.Run("explicit week", func(t *testing.T) {
		rr := httptest.NewRecorder()
		env.sync.HandleSyncScores(rr, request(http.MethodPost, "/api/cron/sync-scores?week=3", "", adminP, nil))

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, 3, env.source.CapturedWeek)
		assert.True(t, env.source.CapturedFresh)

		var body struct {
			Success bool               `json:"success"`
			Result  service.SyncResult `json:"result"`
		}
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
		assert.True(t, body.Success)
		assert.Equal(t, 1, body.Result.Processed)

		game, err := env.db.GetGameByESPNID(context.Background(), "401")
		require.NoError(t, err)
		assert.Equal(t, "12", *game.WinnerTeamID)
	})

	t.Run("current week", func(t *testing.T) {
		env.source.Current = &espn.CurrentWeek{SeasonType: 2, Week: 4, Year: 2025, Completed: true}
		rr := httptest.NewRecorder()
		env.sync.HandleSyncScores(rr, request(http.MethodGet, "/api/cron/sync-scores", "", adminP, nil))

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, 5, env.source.CapturedWeek)
	})

	t.Run("feed failure", func(t *testing.T) {
		env.source.Err = apperror.Upstream("score feed returned status 500", nil)
		t.Cleanup(func() { env.source.Err = nil })
		rr := httptest.NewRecorder()
		env.sync.HandleSyncScores(rr, request(http.MethodGet, "/api/cron/sync-scores?week=1", "", adminP, nil))

		assert.Equal(t, http.StatusBadGateway, rr.Code)
	})
}

func TestSyncHandler_HandleImport(t *testing.T) {
	env := newTestEnv(t)
	env.createGame(t, "401", time.Now().Add(time.Hour))

	body := `{"users":[{"displayName":"Alice"}],
		"predictions":[{"userDisplayName":"alice","espnEventId":"401","predictedWinnerTeamId":"12"}]}`
	rr := httptest.NewRecorder()
	env.sync.HandleImport(rr, request(http.MethodPost, "/api/import", body, adminP, nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, service.ImportResult{UsersImported: 1, PredictionsImported: 1}, decode[service.ImportResult](t, rr))
}

func TestSyncHandler_HandleRecompute(t *testing.T) {
	env := newTestEnv(t)

	rr := httptest.NewRecorder()
	env.sync.HandleRecompute(rr, request(http.MethodPost, "/", "", adminP, nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	env.sync.HandleRecompute(rr, request(http.MethodPost, "/?seasonType=9", "", adminP, nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func strPtr(s string) *string { return &s }

func itoa(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
