// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package scheduler drives the sync engine's tick loop: on every tick
// it decides whether to skip, run a diff, or run a full resync, then
// dispatches fetch→ingest→watermark-update accordingly.
package scheduler

import (
	"time"

	"github.com/opencellid/cellservice/internal/schema"
)

// publishFence is the UTC hour before which upstream has not finished
// publishing; ticks before it are always skipped.
const publishFence = 4

// Action is the scheduler's tick-level decision.
type Action int

const (
	ActionSkip Action = iota
	ActionDiff
	ActionFull
)

func (a Action) String() string {
	switch a {
	case ActionSkip:
		return "skip"
	case ActionDiff:
		return "diff"
	case ActionFull:
		return "full"
	default:
		return "unknown"
	}
}

// Decide implements the tick decision table (spec §4.1), evaluated
// top-to-bottom. now and last (when non-nil) are expected in UTC;
// callers are responsible for that normalization so this function
// stays a pure, deterministic total order over its inputs.
func Decide(now time.Time, last *schema.Watermark) Action {
	if now.Hour() < publishFence {
		return ActionSkip
	}

	if last == nil {
		return ActionFull
	}

	lastSync := last.LastSyncUTC
	if sameDate(lastSync, now) {
		return ActionSkip
	}

	if now.Sub(lastSync) > 24*time.Hour {
		return ActionFull
	}

	if lastSync.Month() != now.Month() || lastSync.Year() != now.Year() {
		return ActionFull
	}

	return ActionDiff
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
