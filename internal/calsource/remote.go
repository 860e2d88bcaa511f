/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package calsource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// maxICSBytes bounds a downloaded calendar.
const maxICSBytes = 16 << 20

// Remote fetches an ICS feed over HTTP. It honours ETag and Last-Modified
// and falls back to the last good body when the server fails.
type Remote struct {
	url    string
	client *http.Client
	logger zerolog.Logger

	mu           sync.Mutex
	etag         string
	lastModified string
	body         []byte
}

// NewRemote constructs a remote ICS source.
func NewRemote(url string, client *http.Client, logger zerolog.Logger) *Remote {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Remote{
		url:    url,
		client: client,
		logger: logger.With().Str("component", "ics_remote").Str("url", redactURL(url)).Logger(),
	}
}

// Name returns the redacted feed URL.
func (r *Remote) Name() string { return redactURL(r.url) }

// Events downloads and parses the feed.
func (r *Remote) Events(ctx context.Context) ([]BusyEvent, error) {
	body, err := r.fetch(ctx)
	if err != nil {
		return nil, err
	}
	return ParseICS(r.Name(), body, r.logger)
}

func (r *Remote) fetch(ctx context.Context) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build ics request: %w", err)
	}
	req.Header.Set("Accept", "text/calendar")
	if r.etag != "" {
		req.Header.Set("If-None-Match", r.etag)
	}
	if r.lastModified != "" {
		req.Header.Set("If-Modified-Since", r.lastModified)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		if len(r.body) > 0 {
			r.logger.Warn().Err(err).Msg("ics fetch failed, using cached body")
			return r.body, nil
		}
		return nil, fmt.Errorf("fetch ics: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxICSBytes))
		if err != nil {
			return nil, fmt.Errorf("read ics body: %w", err)
		}
		r.body = body
		r.etag = resp.Header.Get("ETag")
		r.lastModified = resp.Header.Get("Last-Modified")
		r.logger.Debug().Int("bytes", len(body)).Msg("ics fetched")
		return body, nil
	case http.StatusNotModified:
		if len(r.body) == 0 {
			return nil, errors.New("ics not modified but no cached body")
		}
		return r.body, nil
	default:
		if len(r.body) > 0 {
			r.logger.Warn().Int("status", resp.StatusCode).Msg("ics fetch non-OK, using cached body")
			return r.body, nil
		}
		return nil, fmt.Errorf("fetch ics: unexpected status %s", resp.Status)
	}
}

// redactURL keeps the scheme and host of u and hides the rest.
func redactURL(u string) string {
	const suffix = "/..."
	i := -1
	for idx := 0; idx+2 < len(u); idx++ {
		if u[idx:idx+3] == "://" {
			i = idx + 3
			break
		}
	}
	if i == -1 {
		return "ics:" + suffix
	}
	j := i
	for j < len(u) && u[j] != '/' {
		j++
	}
	return u[:j] + suffix
}
