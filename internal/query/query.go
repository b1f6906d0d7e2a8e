// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package query implements the request-parameter → result-page
// protocol for the single-cell, range-scan and batch-lookup endpoints,
// composed on top of the store.Store abstraction.
package query

import (
	"context"

	"github.com/opencellid/cellservice/internal/schema"
	"github.com/opencellid/cellservice/internal/store"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
	maxLookupKeys = 50
)

// Service composes the cell store into the read protocols the HTTP
// surface needs.
type Service struct {
	store store.Store
}

func NewService(s store.Store) *Service {
	return &Service{store: s}
}

// GetCell implements §4.4.1: a point lookup when radio is given, or a
// best-match selection across every radio at that (mcc,net,area,cell)
// when it is omitted. Returns (nil, nil) on no match, never a
// not-found error — absence is a normal result here (spec §7).
func (s *Service) GetCell(ctx context.Context, mcc, net uint16, area uint32, cell uint64, radio *schema.Radio) (*schema.Cell, error) {
	if radio != nil {
		return s.store.GetByPK(ctx, schema.PK{Mcc: mcc, Net: net, Area: area, Cell: cell, Radio: *radio})
	}

	rows, err := s.store.GetByPrefix(ctx, mcc, net, area, cell)
	if err != nil {
		return nil, err
	}
	return BestMatch(rows), nil
}

// ScanFilter is the validated request shape for a /cells range scan.
type ScanFilter struct {
	Mcc    *uint16
	Mnc    *uint16
	MinLat *float32
	MaxLat *float32
	MinLon *float32
	MaxLon *float32
	Radio  *schema.Radio
	Cursor string
	// Limit is nil when the caller omitted the parameter (defaultLimit
	// applies); a non-nil zero is the explicit limit=0 boundary case,
	// which yields an empty page rather than the default.
	Limit *int
}

// ScanResult is the §4.4.2 response shape.
type ScanResult struct {
	Cells      []schema.Cell
	NextCursor *string
	HasMore    bool
}

// Scan implements §4.4.2: filter validation, cursor decoding, the
// limit+1 "peek ahead" trick for hasMore, and next-cursor encoding.
func (s *Service) Scan(ctx context.Context, f ScanFilter) (*ScanResult, error) {
	if err := validateGeofence(f.MinLat, f.MaxLat, f.MinLon, f.MaxLon); err != nil {
		return nil, err
	}

	limit := defaultLimit
	if f.Limit != nil {
		limit = *f.Limit
		if limit < 0 {
			return nil, invalid("limit must not be negative")
		}
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	var after *schema.PK
	if f.Cursor != "" {
		pk, err := store.DecodeCursor(f.Cursor)
		if err != nil {
			return nil, invalid(err.Error())
		}
		after = &pk
	}

	if limit == 0 {
		any, err := s.store.Scan(ctx, toStoreFilter(f), after, 1)
		if err != nil {
			return nil, err
		}
		return &ScanResult{Cells: []schema.Cell{}, HasMore: len(any) > 0}, nil
	}

	rows, err := s.store.Scan(ctx, toStoreFilter(f), after, limit+1)
	if err != nil {
		return nil, err
	}

	hasMore := len(rows) > limit
	if hasMore {
		rows = rows[:limit]
	}

	result := &ScanResult{Cells: rows, HasMore: hasMore}
	if hasMore {
		pk := rows[len(rows)-1].PK()
		cursor := store.EncodeCursor(pk)
		result.NextCursor = &cursor
	}

	return result, nil
}

// LookupKey is one entry of a /cells/lookup request.
type LookupKey struct {
	Mcc uint16
	Mnc uint16
	Lac uint32
	Cid uint64
}

// BatchLookup implements §4.4.3: resolves at most the first 50 keys,
// preserves response length and order, nil for unresolved keys.
func (s *Service) BatchLookup(ctx context.Context, keys []LookupKey) ([]*schema.Cell, error) {
	out := make([]*schema.Cell, len(keys))

	limit := len(keys)
	if limit > maxLookupKeys {
		limit = maxLookupKeys
	}

	for i := 0; i < limit; i++ {
		k := keys[i]
		rows, err := s.store.GetByPrefix(ctx, k.Mcc, k.Mnc, k.Lac, k.Cid)
		if err != nil {
			return nil, err
		}
		out[i] = BestMatch(rows)
	}

	return out, nil
}

func toStoreFilter(f ScanFilter) store.Filter {
	return store.Filter{
		Mcc: f.Mcc, Mnc: f.Mnc,
		MinLat: f.MinLat, MaxLat: f.MaxLat,
		MinLon: f.MinLon, MaxLon: f.MaxLon,
		Radio: f.Radio,
	}
}

func validateGeofence(minLat, maxLat, minLon, maxLon *float32) error {
	present := 0
	for _, v := range []*float32{minLat, maxLat, minLon, maxLon} {
		if v != nil {
			present++
		}
	}
	if present == 0 {
		return nil
	}
	if present != 4 {
		return invalid("geofence requires all of min_lat, max_lat, min_lon, max_lon together")
	}
	if *minLat > *maxLat {
		return invalid("min_lat must be <= max_lat")
	}
	if *minLon > *maxLon {
		return invalid("min_lon must be <= max_lon")
	}
	return nil
}
