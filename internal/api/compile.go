/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"
	"time"

	"github.com/friendsincode/inkintime/internal/auth"
	"github.com/friendsincode/inkintime/internal/compiler"
	"github.com/friendsincode/inkintime/internal/models"
)

type compileStatus struct {
	Readable   models.BufferRole         `json:"readable"`
	Buffers    []models.CompilationState `json:"buffers"`
	LastRun    *time.Time                `json:"last_run,omitempty"`
	LastResult *compiler.Result          `json:"last_result,omitempty"`
}

func (a *API) handleCompileStatus(w http.ResponseWriter, r *http.Request) {
	states, err := a.store.States(r.Context())
	if err != nil {
		a.logger.Error().Err(err).Msg("load compilation states")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	status := compileStatus{Readable: models.RolePrimary, Buffers: states}
	for _, st := range states {
		if st.Role == models.RolePrimary {
			status.LastRun = st.LastRun
			if st.Locked() {
				status.Readable = models.RoleSecondary
			}
		}
	}
	if res, ok := a.compiler.LastResult(); ok {
		status.LastResult = &res
	}

	writeJSON(w, http.StatusOK, status)
}

// handleAdminCompile runs a compile pass synchronously. A pass that could
// not take the lock answers 409 with the skip reason.
func (a *API) handleAdminCompile(w http.ResponseWriter, r *http.Request) {
	logger := a.logger.With().Str("user_id", callerID(r)).Logger()
	logger.Info().Msg("compile requested")

	res, err := a.compiler.Compile(r.Context())
	switch {
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, res)
	case res.Skipped:
		writeJSON(w, http.StatusConflict, res)
	default:
		writeJSON(w, http.StatusOK, res)
	}
}

// handleAdminUnlock clears a stuck buffer lock. role defaults to primary.
func (a *API) handleAdminUnlock(w http.ResponseWriter, r *http.Request) {
	role := models.BufferRole(r.URL.Query().Get("role"))
	if role == "" {
		role = models.RolePrimary
	}
	if !role.Valid() {
		writeError(w, http.StatusBadRequest, "invalid_role")
		return
	}

	if err := a.compiler.Unlock(r.Context(), role); err != nil {
		a.logger.Error().Err(err).Str("role", string(role)).Msg("unlock failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	a.logger.Warn().Str("role", string(role)).Str("user_id", callerID(r)).Msg("buffer unlocked via api")

	writeJSON(w, http.StatusOK, map[string]string{"role": string(role), "state": string(models.StateFree)})
}

func callerID(r *http.Request) string {
	if claims, ok := auth.ClaimsFromContext(r.Context()); ok {
		return claims.UserID
	}
	return ""
}
