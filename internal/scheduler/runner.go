// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package scheduler

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/opencellid/cellservice/internal/fetch"
	"github.com/opencellid/cellservice/internal/ingest"
	"github.com/opencellid/cellservice/internal/schema"
	"github.com/opencellid/cellservice/internal/store"
	"github.com/opencellid/cellservice/pkg/log"
)

// TickInterval is the fixed tick cadence for the sync loop (spec §4.1).
const TickInterval = 10 * time.Minute

// cellFetcher is the subset of *fetch.Fetcher the runner depends on,
// narrowed to an interface so tests can substitute a fake with a
// controllable delay and error.
type cellFetcher interface {
	FetchFull(ctx context.Context) (io.ReadCloser, error)
	FetchDiff(ctx context.Context, date string) (io.ReadCloser, error)
}

// Runner owns the gocron scheduler and the single in-flight sync guard.
type Runner struct {
	store   store.Store
	fetcher cellFetcher
	sched   gocron.Scheduler
	running int32 // atomic overlap guard
}

func New(s store.Store, f cellFetcher) (*Runner, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		log.Abortf("SCHEDULER > could not create gocron scheduler.\nError: %s\n", err.Error())
	}

	return &Runner{store: s, fetcher: f, sched: sched}, nil
}

// Start registers the tick job and starts the scheduler.
func (r *Runner) Start() {
	_, err := r.sched.NewJob(
		gocron.DurationJob(TickInterval),
		gocron.NewTask(func() { r.tick(context.Background()) }),
	)
	if err != nil {
		log.Abortf("SCHEDULER > could not register tick job.\nError: %s\n", err.Error())
	}
	r.sched.Start()
}

func (r *Runner) Shutdown() error {
	return r.sched.Shutdown()
}

// RunOnce forces an immediate sync regardless of the tick cadence,
// used by the `-sync-now` CLI flag to cold-start a mirror. It still
// respects the overlap guard.
func (r *Runner) RunOnce(ctx context.Context, action Action) {
	r.runSync(ctx, action, time.Now().UTC())
}

func (r *Runner) tick(ctx context.Context) {
	now := time.Now().UTC()
	last, err := r.store.WatermarkGet(ctx)
	if err != nil {
		log.Errorf("SCHEDULER > could not read watermark: %s", err.Error())
		return
	}

	action := Decide(now, last)
	log.Infof("SCHEDULER > tick at %s: decision=%s", now.Format(time.RFC3339), action)

	if action == ActionSkip {
		return
	}

	r.runSync(ctx, action, now)
}

func (r *Runner) runSync(ctx context.Context, action Action, now time.Time) {
	if !atomic.CompareAndSwapInt32(&r.running, 0, 1) {
		log.Warn("SCHEDULER > sync already in flight, dropping this tick")
		return
	}
	defer atomic.StoreInt32(&r.running, 0)

	var mode ingest.Mode
	var body io.ReadCloser
	var err error

	switch action {
	case ActionFull:
		mode = ingest.ModeFull
		body, err = r.fetcher.FetchFull(ctx)
	case ActionDiff:
		mode = ingest.ModeDiff
		body, err = r.fetcher.FetchDiff(ctx, now.Format("2006-01-02"))
	default:
		return
	}

	if err != nil {
		if notPublished, ok := err.(*fetch.ErrNotPublished); ok {
			log.Warnf("SCHEDULER > %s, skipping this tick", notPublished.Error())
			return
		}
		log.Errorf("SCHEDULER > fetch failed, aborting sync: %s", err.Error())
		return
	}
	defer body.Close()

	stats, err := ingest.Run(ctx, r.store, body, mode)
	if err != nil {
		log.Errorf("SCHEDULER > ingest failed at line %d, aborting sync (watermark unchanged): %s", stats.Lines, err.Error())
		return
	}

	log.Infof("SCHEDULER > sync complete: accepted=%d rejected=%d deleted=%d", stats.Accepted, stats.Rejected, stats.Deleted)

	wm := schema.Watermark{LastSyncUTC: now, LastMode: action.String()}
	if err := r.store.WatermarkSet(ctx, wm); err != nil {
		log.Errorf("SCHEDULER > failed to persist watermark after successful sync: %s", err.Error())
	}
}
