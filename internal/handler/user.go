package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/gridiron-picks/internal/apperror"
	"github.com/sakif/gridiron-picks/internal/auth"
	"github.com/sakif/gridiron-picks/internal/model"
	"github.com/sakif/gridiron-picks/internal/service"
)

// UserHandler manages participants: self-registration, the admin user list
// and token management, and principal introspection.
//
// DEPENDENCY CHAIN:
//   - users   *service.UserService  → create/delete users, issue tokens
//   - queries *service.QueryService → the caller's own stats for /api/me
type UserHandler struct {
	users    *service.UserService
	queries  *service.QueryService
	defaults Season
	logger   *slog.Logger
}

func NewUserHandler(users *service.UserService, queries *service.QueryService, defaults Season, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		users:    users,
		queries:  queries,
		defaults: defaults,
		logger:   logger,
	}
}

type displayNameRequest struct {
	DisplayName string `json:"displayName" validate:"required"`
}

// HandleRegister is self-service sign-up.
//
// HTTP: POST /api/register
// REQUEST BODY: {"displayName": "Alice"}
//
// The response carries the new user's token. It is shown exactly once here;
// afterwards only an admin can see or rotate it.
func (h *UserHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req displayNameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.users.Register(r.Context(), req.DisplayName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

type meResponse struct {
	Kind  auth.Kind               `json:"kind"`
	User  *model.User             `json:"user,omitempty"`
	Stats *model.LeaderboardStats `json:"stats,omitempty"`
}

// HandleMe returns who the bearer token belongs to.
//
// HTTP: GET /api/me?seasonYear=2025&seasonType=2
//
// A user token also gets the user's record for the season scope.
func (h *UserHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("authentication required"))
		return
	}
	if p.Kind != auth.KindUser {
		writeJSON(w, http.StatusOK, meResponse{Kind: p.Kind})
		return
	}

	year, seasonType, err := seasonScope(r, h.defaults)
	if err != nil {
		writeError(w, err)
		return
	}

	user, err := h.users.Get(r.Context(), p.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	stats, err := h.queries.Stats(r.Context(), p.UserID, year, seasonType)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, meResponse{Kind: p.Kind, User: user, Stats: stats})
}

// HandleList returns every user with their token.
//
// HTTP: GET /api/admin/users
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// HandleCreate adds a user.
//
// HTTP: POST /api/admin/users
// REQUEST BODY: {"displayName": "Alice"}
func (h *UserHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req displayNameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.users.Create(r.Context(), req.DisplayName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// HandleDelete removes a user and everything they own.
//
// HTTP: DELETE /api/admin/users/{id}
func (h *UserHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.users.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleRegenerateToken rotates a user's token.
//
// HTTP: POST /api/admin/users/{id}/token
func (h *UserHandler) HandleRegenerateToken(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	user, err := h.users.RegenerateToken(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleBackfillTokens issues tokens to users that have none.
//
// HTTP: POST /api/admin/tokens/backfill
func (h *UserHandler) HandleBackfillTokens(w http.ResponseWriter, r *http.Request) {
	updated, err := h.users.BackfillTokens(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"updated": len(updated),
		"users":   updated,
	})
}
