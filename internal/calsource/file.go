/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package calsource

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
)

// File reads an ICS file from disk on every call.
type File struct {
	path   string
	logger zerolog.Logger
}

// NewFile constructs a file-backed ICS source.
func NewFile(path string, logger zerolog.Logger) *File {
	return &File{path: path, logger: logger.With().Str("component", "ics_file").Str("path", path).Logger()}
}

// Name returns the file path.
func (f *File) Name() string { return f.path }

// Events parses the file.
func (f *File) Events(ctx context.Context) ([]BusyEvent, error) {
	body, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read ics file: %w", err)
	}
	return ParseICS(f.path, body, f.logger)
}
