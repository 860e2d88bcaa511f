/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func okHandler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := ClaimsFromContext(r.Context()); !ok {
			t.Fatalf("expected claims in context")
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddleware_AcceptsBearerToken(t *testing.T) {
	secret := []byte("test-secret")
	token, err := Issue(secret, Claims{UserID: "ops", Roles: []string{RoleAdmin}}, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/compile", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()

	Middleware(secret)(RequireRole(RoleAdmin)(okHandler(t))).ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestMiddleware_RejectsMissingOrQueryToken(t *testing.T) {
	secret := []byte("test-secret")
	token, _ := Issue(secret, Claims{UserID: "ops", Roles: []string{RoleAdmin}}, time.Hour)

	for _, target := range []string{"/api/v1/admin/compile", "/api/v1/admin/compile?token=" + token} {
		req := httptest.NewRequest(http.MethodPost, target, nil)
		rr := httptest.NewRecorder()
		Middleware(secret)(okHandler(t)).ServeHTTP(rr, req)
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", target, rr.Code)
		}
		if rr.Header().Get("WWW-Authenticate") != "Bearer" {
			t.Fatalf("%s: missing WWW-Authenticate", target)
		}
	}
}

func TestMiddleware_NoSecretRejectsEverything(t *testing.T) {
	token, _ := Issue([]byte("k"), Claims{UserID: "ops"}, time.Hour)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/unlock", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	Middleware(nil)(okHandler(t)).ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestRequireRole_Forbids(t *testing.T) {
	secret := []byte("test-secret")
	token, _ := Issue(secret, Claims{UserID: "viewer", Roles: []string{"viewer"}}, time.Hour)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/unlock", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()

	Middleware(secret)(RequireRole(RoleAdmin)(okHandler(t))).ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}
