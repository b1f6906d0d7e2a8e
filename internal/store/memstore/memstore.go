// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package memstore is an in-memory implementation of store.Store, used
// by the fast unit-test path instead of a throwaway sqlite3 database.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/opencellid/cellservice/internal/schema"
	"github.com/opencellid/cellservice/internal/store"
)

// Store is a sync.RWMutex-guarded map keyed by schema.PK. It satisfies
// store.Store and is safe for concurrent use by the HTTP handlers and
// the sync task alike.
type Store struct {
	mu    sync.RWMutex
	cells map[schema.PK]schema.Cell
	wm    *schema.Watermark
}

func New() *Store {
	return &Store{cells: make(map[schema.PK]schema.Cell)}
}

var _ store.Store = (*Store)(nil)

func (s *Store) UpsertBatch(ctx context.Context, rows []schema.Cell) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range rows {
		s.cells[c.PK()] = c
	}
	return nil
}

func (s *Store) DeleteByPK(ctx context.Context, pks []schema.PK) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, pk := range pks {
		delete(s.cells, pk)
	}
	return nil
}

func (s *Store) GetByPK(ctx context.Context, pk schema.PK) (*schema.Cell, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cells[pk]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *Store) GetByPrefix(ctx context.Context, mcc, net uint16, area uint32, cell uint64) ([]schema.Cell, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]schema.Cell, 0, 4)
	for pk, c := range s.cells {
		if pk.Mcc == mcc && pk.Net == net && pk.Area == area && pk.Cell == cell {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Radio < out[j].Radio })
	return out, nil
}

func (s *Store) Scan(ctx context.Context, filter store.Filter, after *schema.PK, limit int) ([]schema.Cell, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]schema.Cell, 0, len(s.cells))
	for _, c := range s.cells {
		if matches(c, filter) {
			all = append(all, c)
		}
	}
	sort.Slice(all, func(i, j int) bool { return lessPK(all[i].PK(), all[j].PK()) })

	start := 0
	if after != nil {
		start = len(all)
		for i, c := range all {
			if lessPK(*after, c.PK()) {
				start = i
				break
			}
		}
	}

	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	if start > len(all) {
		start = len(all)
	}

	page := make([]schema.Cell, end-start)
	copy(page, all[start:end])
	return page, nil
}

func (s *Store) WatermarkGet(ctx context.Context) (*schema.Watermark, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.wm == nil {
		return nil, nil
	}
	wm := *s.wm
	return &wm, nil
}

func (s *Store) WatermarkSet(ctx context.Context, w schema.Watermark) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wm = &w
	return nil
}

func matches(c schema.Cell, f store.Filter) bool {
	if f.Mcc != nil && c.Mcc != *f.Mcc {
		return false
	}
	if f.Mnc != nil && c.Net != *f.Mnc {
		return false
	}
	if f.Radio != nil && c.Radio != *f.Radio {
		return false
	}
	if f.MinLat != nil && f.MaxLat != nil && f.MinLon != nil && f.MaxLon != nil {
		if c.Lat < *f.MinLat || c.Lat > *f.MaxLat || c.Lon < *f.MinLon || c.Lon > *f.MaxLon {
			return false
		}
	}
	return true
}

func lessPK(a, b schema.PK) bool {
	if a.Mcc != b.Mcc {
		return a.Mcc < b.Mcc
	}
	if a.Net != b.Net {
		return a.Net < b.Net
	}
	if a.Area != b.Area {
		return a.Area < b.Area
	}
	if a.Cell != b.Cell {
		return a.Cell < b.Cell
	}
	return a.Radio < b.Radio
}
