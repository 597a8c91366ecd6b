// Package handler contains HTTP request handlers for the pick'em API.
//
// WHAT IS A HANDLER?
// In Go, an HTTP handler is anything that implements the http.Handler interface:
//
//	type Handler interface {
//	    ServeHTTP(ResponseWriter, *Request)
//	}
//
// Or more commonly, an http.HandlerFunc, a function with the right signature.
// Chi's router accepts these directly.
//
// HANDLER RESPONSIBILITIES:
// 1. Parse the incoming HTTP request (query params, body, URL params)
// 2. Call the service layer
// 3. Write the HTTP response (status code, headers, body)
//
// Handlers hold no business rules. Lock checks, ownership and grading all live
// in internal/service; the principal comes from auth.Require via the context.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger is the slice of the store the health check needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports whether the process and its database are alive.
type HealthHandler struct {
	db     Pinger
	logger *slog.Logger
}

func NewHealthHandler(db Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{db: db, logger: logger}
}

// HandleHealth answers load balancer and uptime checks.
//
// HTTP: GET /api/health
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		h.logger.Error("health check failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
