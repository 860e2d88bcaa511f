/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/friendsincode/inkintime/internal/version"
)

var versionCheck bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "inkintime %s\n", version.Version)
		if !versionCheck {
			return nil
		}

		ctx := cmd.Context()
		info, err := version.Check(ctx, nil, version.ReleasesURL)
		if err != nil {
			return fmt.Errorf("check for updates: %w", err)
		}
		if info.UpdateAvailable {
			fmt.Fprintf(out, "update available: %s (%s)\n", info.LatestVersion, info.ReleaseURL)
			if info.ReleaseNotes != "" {
				fmt.Fprintf(out, "  %s\n", info.ReleaseNotes)
			}
		} else {
			fmt.Fprintf(out, "up to date as of %s\n", info.CheckedAt.Format(time.RFC3339))
		}
		return nil
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionCheck, "check", false, "Check GitHub for a newer release")
	rootCmd.AddCommand(versionCmd)
}
