package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/gridiron-picks/internal/apperror"
)

func TestWriteError_MapsDomainErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{"unauthorized", apperror.Unauthorized("missing token"), http.StatusUnauthorized, "unauthorized"},
		{"forbidden", apperror.Forbidden("not yours"), http.StatusForbidden, "forbidden"},
		{"validation", apperror.ValidationFailed("week", "bad week"), http.StatusBadRequest, "validation_error"},
		{"not found", apperror.NotFound("game", "7"), http.StatusNotFound, "not_found"},
		{"conflict", apperror.Conflict("user", "alice"), http.StatusConflict, "conflict"},
		{"locked", apperror.Locked(7), http.StatusConflict, "locked"},
		{"upstream", apperror.Upstream("feed down", nil), http.StatusBadGateway, "upstream_error"},
		{"malformed event", apperror.MalformedEvent("401", "no competition"), http.StatusBadGateway, "upstream_error"},
		{"wrapped", fmt.Errorf("grading game 7: %w", apperror.NotFound("game", "7")), http.StatusNotFound, "not_found"},
		{"unknown", errors.New("sqlite: disk I/O error"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			writeError(rr, tt.err)

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

			var body ErrorResponse
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
			assert.Equal(t, tt.wantType, body.Error)
			assert.NotContains(t, body.Message, "sqlite", "internal details never leak")
		})
	}
}

func TestWriteError_IncludesField(t *testing.T) {
	rr := httptest.NewRecorder()
	writeError(rr, apperror.ValidationFailed("predictions[2].gameId", "gameId must be a positive integer"))

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, "predictions[2].gameId", body.Field)
}

func TestValidateStruct_UsesJSONFieldNames(t *testing.T) {
	type item struct {
		GameID int64 `json:"gameId" validate:"required,gt=0"`
	}
	type request struct {
		Items []item `json:"items" validate:"required,min=1,dive"`
	}

	err := validateStruct(&request{Items: []item{{GameID: 3}, {GameID: 0}}})
	require.Error(t, err)

	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "items[1].gameId", appErr.Field)

	assert.NoError(t, validateStruct(&request{Items: []item{{GameID: 1}}}))
}
