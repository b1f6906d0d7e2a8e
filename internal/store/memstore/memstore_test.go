// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencellid/cellservice/internal/schema"
	"github.com/opencellid/cellservice/internal/store"
)

func cell(mcc uint16, cellID uint64, radio schema.Radio) schema.Cell {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return schema.Cell{
		Mcc: mcc, Net: 1, Area: 1, Cell: cellID, Radio: radio,
		Lat: 52.5, Lon: 13.4, Created: now, Updated: now,
	}
}

func TestUpsertAndGetByPK(t *testing.T) {
	s := New()
	ctx := context.Background()
	c := cell(262, 1, schema.RadioLTE)

	require.NoError(t, s.UpsertBatch(ctx, []schema.Cell{c}))

	got, err := s.GetByPK(ctx, c.PK())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, c.Samples, got.Samples)
}

func TestUpsertOverwritesOnConflict(t *testing.T) {
	s := New()
	ctx := context.Background()
	c := cell(262, 1, schema.RadioLTE)
	c.Samples = 10
	require.NoError(t, s.UpsertBatch(ctx, []schema.Cell{c}))

	c.Samples = 25
	require.NoError(t, s.UpsertBatch(ctx, []schema.Cell{c}))

	got, err := s.GetByPK(ctx, c.PK())
	require.NoError(t, err)
	assert.EqualValues(t, 25, got.Samples)
}

func TestScanPaginationCoversEverythingExactlyOnce(t *testing.T) {
	s := New()
	ctx := context.Background()

	var rows []schema.Cell
	for i := uint64(0); i < 250; i++ {
		rows = append(rows, cell(262, i, schema.RadioLTE))
	}
	require.NoError(t, s.UpsertBatch(ctx, rows))

	mcc := uint16(262)
	filter := store.Filter{Mcc: &mcc}

	seen := make(map[schema.PK]bool)
	var after *schema.PK
	for {
		page, err := s.Scan(ctx, filter, after, 100)
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		for _, c := range page {
			pk := c.PK()
			assert.False(t, seen[pk], "row returned twice")
			seen[pk] = true
		}
		last := page[len(page)-1].PK()
		after = &last
		if len(page) < 100 {
			break
		}
	}

	assert.Len(t, seen, 250)
}

func TestDeleteByPK(t *testing.T) {
	s := New()
	ctx := context.Background()
	c := cell(262, 1, schema.RadioLTE)
	require.NoError(t, s.UpsertBatch(ctx, []schema.Cell{c}))
	require.NoError(t, s.DeleteByPK(ctx, []schema.PK{c.PK()}))

	got, err := s.GetByPK(ctx, c.PK())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestWatermark(t *testing.T) {
	s := New()
	ctx := context.Background()

	wm, err := s.WatermarkGet(ctx)
	require.NoError(t, err)
	assert.Nil(t, wm)

	now := time.Date(2026, 3, 15, 5, 0, 0, 0, time.UTC)
	require.NoError(t, s.WatermarkSet(ctx, schema.Watermark{LastSyncUTC: now, LastMode: "full"}))

	wm, err = s.WatermarkGet(ctx)
	require.NoError(t, err)
	require.NotNil(t, wm)
	assert.Equal(t, "full", wm.LastMode)
}
