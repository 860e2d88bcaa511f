/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/friendsincode/inkintime/internal/auth"
)

var (
	tokenUser  string
	tokenRoles []string
	tokenTTL   time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an operator token for the admin API",
	Long: `Sign a JWT with INKINTIME_JWT_SIGNING_KEY.

Examples:
  inkintime token --user ops
  inkintime token --user ops --ttl 1h`,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUser, "user", "operator", "User ID recorded in the token")
	tokenCmd.Flags().StringSliceVar(&tokenRoles, "role", []string{auth.RoleAdmin}, "Roles granted by the token")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "Token lifetime")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	if cfg.JWTSigningKey == "" {
		return auth.ErrNoSigningKey
	}
	if tokenTTL <= 0 {
		return fmt.Errorf("ttl must be positive")
	}

	token, err := auth.Issue([]byte(cfg.JWTSigningKey), auth.Claims{UserID: tokenUser, Roles: tokenRoles}, tokenTTL)
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
