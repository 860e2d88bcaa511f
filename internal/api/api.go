/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/friendsincode/inkintime/internal/auth"
	"github.com/friendsincode/inkintime/internal/cache"
	"github.com/friendsincode/inkintime/internal/compiler"
	"github.com/friendsincode/inkintime/internal/store"
)

// API exposes slot queries and operator endpoints over HTTP.
type API struct {
	store     *store.Store
	compiler  *compiler.Service
	cache     *cache.Cache
	jwtSecret []byte
	logger    zerolog.Logger
	now       func() time.Time

	// leader reports leader status on /healthz when election is enabled.
	leader func() bool
}

// New creates the API router wrapper. A nil cache disables slot caching.
func New(st *store.Store, svc *compiler.Service, c *cache.Cache, jwtSecret string, logger zerolog.Logger) *API {
	logger = logger.With().Str("component", "api").Logger()
	if c == nil {
		c = cache.Disabled(logger)
	}
	return &API{
		store:     st,
		compiler:  svc,
		cache:     c,
		jwtSecret: []byte(jwtSecret),
		logger:    logger,
		now:       time.Now,
	}
}

// SetLeaderCheck adds leader status to the health response.
func (a *API) SetLeaderCheck(fn func() bool) {
	a.leader = fn
}

// Routes registers API routes on the provided router.
func (a *API) Routes(r chi.Router) {
	r.Get("/healthz", a.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/appointments", a.handleAppointments)
		r.Get("/slots", a.handleSlots)
		r.Get("/compile/status", a.handleCompileStatus)

		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.Middleware(a.jwtSecret))
			r.Use(auth.RequireRole(auth.RoleAdmin))

			r.Post("/compile", a.handleAdminCompile)
			r.Post("/unlock", a.handleAdminUnlock)
		})
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if _, err := a.store.ReadableRole(r.Context()); err != nil {
		a.logger.Error().Err(err).Msg("health check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	resp := map[string]any{"status": "ok"}
	if a.leader != nil {
		resp["leader"] = a.leader()
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
