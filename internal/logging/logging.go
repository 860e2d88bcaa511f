/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup configures zerolog for the process.
func Setup(environment string) zerolog.Logger {
	return SetupWithOptions(Options{Environment: environment})
}

// Options tunes the process logger.
type Options struct {
	Environment string
	Level       string // overrides the environment default when set
	Format      string // "json" for machine-readable output, otherwise console
	Writer      io.Writer
}

// SetupWithOptions configures zerolog from explicit options.
func SetupWithOptions(opts Options) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	level := zerolog.InfoLevel
	if opts.Environment == "development" {
		level = zerolog.DebugLevel
	}
	if opts.Level != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(opts.Level)); err == nil {
			level = parsed
		}
	}

	out := opts.Writer
	if out == nil {
		out = os.Stdout
	}

	var writer io.Writer = zerolog.ConsoleWriter{Out: out}
	if strings.EqualFold(opts.Format, "json") {
		writer = out
	}

	logger := zerolog.New(writer).With().Timestamp().Logger().Level(level)
	log.Logger = logger
	return logger
}
