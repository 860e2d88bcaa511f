/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/friendsincode/inkintime/internal/callang"
	"github.com/friendsincode/inkintime/internal/config"
)

var checkFile string

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the schedule file",
	Long: `Parse the schedule file, every work_week row and every calendar entry
and print the resulting weekly hours.

Examples:
  inkintime check
  inkintime check --file ./schedule.yaml`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVarP(&checkFile, "file", "f", "", "Schedule file (defaults to INKINTIME_SCHEDULE_FILE)")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	path := checkFile
	if path == "" {
		if err := loadConfig(); err != nil {
			return err
		}
		path = cfg.ScheduleFile
	}

	schedule, err := config.LoadSchedule(path)
	if err != nil {
		return err
	}
	return printSchedule(cmd.OutOrStdout(), path, schedule, time.Now())
}

func printSchedule(out io.Writer, path string, schedule *config.Schedule, now time.Time) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "%s is valid\n\n", path)
	fmt.Fprintf(w, "timezone\t%s\n", schedule.Location())

	week := schedule.Week()
	for _, day := range callang.Weekdays {
		spans := week.Spans(day)
		if len(spans) == 0 {
			continue
		}
		parts := make([]string, 0, len(spans))
		for _, span := range spans {
			parts = append(parts, span.String())
		}
		fmt.Fprintf(w, "%s\t%s\n", day, strings.Join(parts, ", "))
	}

	for _, appt := range schedule.Appointments {
		fmt.Fprintf(w, "appointment\t%s (%d min)\n", appt.Label, appt.Minutes)
	}

	start, end := schedule.Window(now)
	fmt.Fprintf(w, "window\t%s - %s\n", start.Format(time.RFC3339), end.Format(time.RFC3339))
	fmt.Fprintf(w, "compile schedule\t%s\n", schedule.CompileSchedule)
	fmt.Fprintf(w, "calendars\t%d\n", len(schedule.Calendars.Blocked))
	return w.Flush()
}
