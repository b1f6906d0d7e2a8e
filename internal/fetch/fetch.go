// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package fetch issues the authenticated HTTP downloads the sync
// engine needs: the full snapshot and a given day's diff, both
// gzip-compressed multi-gigabyte CSV bodies.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/opencellid/cellservice/pkg/log"
)

const (
	maxAttempts  = 3
	retryGap     = 2 * time.Second
	fullTimeout  = 10 * time.Minute
	diffTimeout  = 2 * time.Minute
	fullURLTmpl  = "%s/cell_towers.csv.gz?key=%s"
	diffURLTmpl  = "%s/%s.csv.gz?key=%s"
)

// ErrNotPublished signals a 404 on a diff URL: the upstream has not
// yet published that day's file. Callers should treat this as a soft
// failure (Skip), not a hard one (Full).
type ErrNotPublished struct {
	Date string
}

func (e *ErrNotPublished) Error() string {
	return fmt.Sprintf("FETCH > diff for %s not yet published", e.Date)
}

// Fetcher issues full-snapshot and per-day diff downloads against a
// configured OpenCellID-style base URL and API key.
type Fetcher struct {
	baseURL string
	apiKey  string
	full    http.Client
	diff    http.Client
	// limiter paces retry attempts; a single token every retryGap
	// keeps three attempts from hammering a flapping upstream.
	limiter *rate.Limiter
}

func New(baseURL, apiKey string) *Fetcher {
	return &Fetcher{
		baseURL: baseURL,
		apiKey:  apiKey,
		full:    http.Client{Timeout: fullTimeout},
		diff:    http.Client{Timeout: diffTimeout},
		limiter: rate.NewLimiter(rate.Every(retryGap), 1),
	}
}

// FetchFull GETs the full snapshot. The caller must Close the returned
// stream.
func (f *Fetcher) FetchFull(ctx context.Context) (io.ReadCloser, error) {
	url := fmt.Sprintf(fullURLTmpl, f.baseURL, f.apiKey)
	return f.getWithRetry(ctx, &f.full, url, "")
}

// FetchDiff GETs the diff for date (formatted "2006-01-02"). A 404
// response is returned as *ErrNotPublished, not a generic error.
func (f *Fetcher) FetchDiff(ctx context.Context, date string) (io.ReadCloser, error) {
	url := fmt.Sprintf(diffURLTmpl, f.baseURL, date, f.apiKey)
	return f.getWithRetry(ctx, &f.diff, url, date)
}

func (f *Fetcher) getWithRetry(ctx context.Context, client *http.Client, url string, diffDate string) (io.ReadCloser, error) {
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}

		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			log.Warnf("FETCH > attempt %d/%d failed: %s", attempt, maxAttempts, err.Error())
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return resp.Body, nil
		case resp.StatusCode == http.StatusNotFound && diffDate != "":
			resp.Body.Close()
			return nil, &ErrNotPublished{Date: diffDate}
		case resp.StatusCode >= 500:
			resp.Body.Close()
			lastErr = fmt.Errorf("FETCH > upstream returned %d", resp.StatusCode)
			log.Warnf("FETCH > attempt %d/%d: %s", attempt, maxAttempts, lastErr.Error())
			continue
		default:
			resp.Body.Close()
			return nil, fmt.Errorf("FETCH > unexpected status %d", resp.StatusCode)
		}
	}

	return nil, fmt.Errorf("FETCH > exhausted %d attempts: %w", maxAttempts, lastErr)
}
