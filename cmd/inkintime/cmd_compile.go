/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/friendsincode/inkintime/internal/eventbus"
	"github.com/friendsincode/inkintime/internal/models"
	"github.com/friendsincode/inkintime/internal/server"
)

var (
	compileJSON bool
	unlockRole  string
)

var compileCmd = &cobra.Command{
	Use:   "compile",
	Short: "Run one compile pass and publish the result",
	Long: `Compile the configured schedule into the slot tables once.

The pass is skipped when another process holds the primary buffer lock.
When INKINTIME_NATS_URL is set the published event reaches running servers
so they can drop cached slot queries.`,
	RunE: runCompile,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show buffer lock state and the last compile time",
	RunE:  runStatus,
}

var unlockCmd = &cobra.Command{
	Use:   "unlock",
	Short: "Clear a stuck buffer lock",
	Long: `Mark a slot buffer free again.

Use this only when a compile process died while holding the lock; unlocking a
buffer that a live compile is writing lets readers see a partial table.`,
	RunE: runUnlock,
}

func init() {
	compileCmd.Flags().BoolVar(&compileJSON, "json", false, "Print the compile result as JSON")
	unlockCmd.Flags().StringVar(&unlockRole, "role", string(models.RolePrimary), "Buffer to unlock (primary or secondary)")
	rootCmd.AddCommand(compileCmd, statusCmd, unlockCmd)
}

// openCore loads the schedule and database and attaches NATS fan-out when
// configured. The returned func releases everything.
func openCore(ctx context.Context) (*server.Core, func(), error) {
	core, err := server.OpenCore(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	closeFn := func() { _ = core.Close() }
	if cfg.NATSURL != "" {
		natsCfg := eventbus.DefaultNATSConfig()
		natsCfg.URL = cfg.NATSURL
		natsCfg.MaxReconnects = 0
		nb, err := eventbus.NewNATSBus(natsCfg, core.Bus, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("NATS unavailable, events will not reach other instances")
		} else {
			closeFn = func() {
				_ = nb.Close()
				_ = core.Close()
			}
		}
	}
	return core, closeFn, nil
}

func runCompile(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	ctx := cmd.Context()

	core, closeFn, err := openCore(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	res, err := core.Compiler.Compile(ctx)
	if compileJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(res)
		return err
	}
	if err != nil {
		return fmt.Errorf("compile: %w", err)
	}
	if res.Skipped {
		fmt.Printf("compile skipped: %s\n", res.SkipReason)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "window\t%s - %s\n", res.Window.Start.Format(time.RFC3339), res.Window.End.Format(time.RFC3339))
	for _, stats := range res.Labels {
		fmt.Fprintf(w, "%s\t%d inserted, %d duplicates, %d considered\n", stats.Label, stats.Inserted, stats.Duplicates, stats.Considered)
	}
	fmt.Fprintf(w, "busy events\t%d\n", res.BusyEvents)
	fmt.Fprintf(w, "marked unavailable\t%d\n", res.Marked)
	fmt.Fprintf(w, "cleaned\t%d\n", res.Cleaned)
	fmt.Fprintf(w, "published\t%d\n", res.Published)
	fmt.Fprintf(w, "took\t%s\n", res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond))
	return w.Flush()
}

func runStatus(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	ctx := cmd.Context()

	core, closeFn, err := openCore(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	states, err := core.Store.States(ctx)
	if err != nil {
		return err
	}
	readable, err := core.Store.ReadableRole(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "BUFFER\tSTATE\tROWS\tLAST RUN\tUPDATED")
	for _, st := range states {
		rows, err := core.Store.Count(ctx, st.Role)
		if err != nil {
			return err
		}
		lastRun := "-"
		if st.LastRun != nil {
			lastRun = st.LastRun.Format(time.RFC3339)
		}
		updated := "-"
		if !st.UpdatedAt.IsZero() {
			updated = st.UpdatedAt.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", st.Role, st.State, rows, lastRun, updated)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\nreaders use: %s\n", readable)
	return nil
}

func runUnlock(cmd *cobra.Command, args []string) error {
	role := models.BufferRole(unlockRole)
	if !role.Valid() {
		return fmt.Errorf("unknown role %q (want primary or secondary)", unlockRole)
	}
	if err := loadConfig(); err != nil {
		return err
	}
	ctx := cmd.Context()

	core, closeFn, err := openCore(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	if err := core.Compiler.Unlock(ctx, role); err != nil {
		return err
	}
	fmt.Printf("%s buffer unlocked\n", role)
	return nil
}
