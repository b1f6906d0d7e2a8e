// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package store abstracts cell persistence behind the seven operations
// a sync or a query can need, so the integration test suite can swap a
// SQL-backed implementation for an in-memory one (see ./memstore).
package store

import (
	"context"
	"time"

	"github.com/opencellid/cellservice/internal/schema"
)

// Filter narrows a Scan. Every field is optional;
// a nil pointer means "no constraint on this axis". Geofence bounds
// are validated by the query layer before reaching the store: all
// four must be present together, and Min <= Max on each axis.
type Filter struct {
	Mcc    *uint16
	Mnc    *uint16
	MinLat *float32
	MaxLat *float32
	MinLon *float32
	MaxLon *float32
	Radio  *schema.Radio
}

// Store is the persistence contract every sync and query operation is
// built against.
type Store interface {
	// UpsertBatch atomically applies rows keyed by their composite PK:
	// an existing row has every non-key column overwritten, a missing
	// one is inserted.
	UpsertBatch(ctx context.Context, rows []schema.Cell) error

	// DeleteByPK removes rows by primary key; used by diff-mode
	// tombstones only. Missing keys are silently ignored.
	DeleteByPK(ctx context.Context, pks []schema.PK) error

	// GetByPK returns the row for an exact primary key, or nil if
	// absent.
	GetByPK(ctx context.Context, pk schema.PK) (*schema.Cell, error)

	// GetByPrefix returns every row sharing (mcc, net, area, cell),
	// ordered by radio, for the single-cell-without-radio and
	// batch-lookup code paths.
	GetByPrefix(ctx context.Context, mcc, net uint16, area uint32, cell uint64) ([]schema.Cell, error)

	// Scan returns up to limit rows matching filter in PK order,
	// starting strictly after the PK in after (or from the beginning if
	// after is nil). Callers that need hasMore ask for one row more
	// than they return and derive it from that extra row.
	Scan(ctx context.Context, filter Filter, after *schema.PK, limit int) ([]schema.Cell, error)

	// WatermarkGet returns the last recorded sync watermark, or nil if
	// none has ever been recorded.
	WatermarkGet(ctx context.Context) (*schema.Watermark, error)

	// WatermarkSet persists a new watermark, replacing any prior one.
	WatermarkSet(ctx context.Context, w schema.Watermark) error
}

// Now is a seam for tests; production code always uses time.Now.
var Now = time.Now
