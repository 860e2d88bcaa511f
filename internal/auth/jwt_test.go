/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestParse_ValidHS256(t *testing.T) {
	secret := []byte("test-secret")
	token, err := Issue(secret, Claims{UserID: "ops", Roles: []string{RoleAdmin}}, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	claims, err := Parse(secret, token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.UserID != "ops" || claims.Subject != "ops" {
		t.Fatalf("expected user ops, got %q / %q", claims.UserID, claims.Subject)
	}
	if !claims.HasRole(RoleAdmin) || claims.HasRole("viewer") {
		t.Fatalf("roles = %v", claims.Roles)
	}
}

func TestParse_RejectsUnexpectedAlgorithm(t *testing.T) {
	secret := []byte("test-secret")
	now := time.Now()
	claims := Claims{
		UserID: "ops",
		Roles:  []string{RoleAdmin},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   "ops",
		},
	}

	tokenStr, err := jwt.NewWithClaims(jwt.SigningMethodHS384, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	if _, err := Parse(secret, tokenStr); err == nil {
		t.Fatal("expected parse to reject non-HS256 token")
	}
}

func TestParse_RejectsExpiredAndForeign(t *testing.T) {
	secret := []byte("test-secret")

	expired, err := Issue(secret, Claims{UserID: "ops"}, -time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := Parse(secret, expired); !errors.Is(err, jwt.ErrTokenExpired) {
		t.Fatalf("expired token error = %v", err)
	}

	foreign, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: "ops",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(secret)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	if _, err := Parse(secret, foreign); err == nil {
		t.Fatal("token from another issuer accepted")
	}

	good, _ := Issue(secret, Claims{UserID: "ops"}, time.Hour)
	if _, err := Parse([]byte("other-secret"), good); err == nil {
		t.Fatal("token accepted with wrong key")
	}
}

func TestIssueRequiresKey(t *testing.T) {
	if _, err := Issue(nil, Claims{UserID: "ops"}, time.Hour); !errors.Is(err, ErrNoSigningKey) {
		t.Fatalf("Issue without key = %v", err)
	}
}
