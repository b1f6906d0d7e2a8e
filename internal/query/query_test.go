// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencellid/cellservice/internal/schema"
	"github.com/opencellid/cellservice/internal/store/memstore"
)

func seedCell(t *testing.T, s *memstore.Store, mcc uint16, cellID uint64, radio schema.Radio) schema.Cell {
	t.Helper()
	c := schema.Cell{
		Mcc: mcc, Net: 1, Area: 12345, Cell: cellID, Radio: radio,
		Lat: 52.52, Lon: 13.405, Created: time.Now(), Updated: time.Now(),
	}
	require.NoError(t, s.UpsertBatch(context.Background(), []schema.Cell{c}))
	return c
}

func TestGetCellWithRadio(t *testing.T) {
	s := memstore.New()
	seedCell(t, s, 262, 67890, schema.RadioLTE)
	svc := NewService(s)

	radio := schema.RadioLTE
	got, err := svc.GetCell(context.Background(), 262, 1, 12345, 67890, &radio)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, schema.RadioLTE, got.Radio)
}

func TestGetCellWithoutRadioUsesBestMatch(t *testing.T) {
	s := memstore.New()
	seedCell(t, s, 262, 67890, schema.RadioLTE)
	svc := NewService(s)

	got, err := svc.GetCell(context.Background(), 262, 1, 12345, 67890, nil)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, schema.RadioLTE, got.Radio)
}

func TestGetCellNotFound(t *testing.T) {
	s := memstore.New()
	svc := NewService(s)

	got, err := svc.GetCell(context.Background(), 1, 1, 1, 1, nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestScanGeofenceRequiresAllFour(t *testing.T) {
	s := memstore.New()
	svc := NewService(s)

	minLat := float32(10)
	_, err := svc.Scan(context.Background(), ScanFilter{MinLat: &minLat})
	require.Error(t, err)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestScanPaginationExhaustive(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	for i := uint64(0); i < 250; i++ {
		seedCell(t, s, 262, i, schema.RadioLTE)
	}
	svc := NewService(s)

	mcc := uint16(262)
	limit := 100
	seen := map[uint64]bool{}
	cursor := ""
	for {
		res, err := svc.Scan(ctx, ScanFilter{Mcc: &mcc, Limit: &limit, Cursor: cursor})
		require.NoError(t, err)
		for _, c := range res.Cells {
			seen[c.Cell] = true
		}
		if !res.HasMore {
			break
		}
		cursor = *res.NextCursor
	}
	assert.Len(t, seen, 250)
}

func TestScanLimitZeroYieldsEmptyPage(t *testing.T) {
	s := memstore.New()
	seedCell(t, s, 262, 1, schema.RadioLTE)
	svc := NewService(s)

	limit := 0
	res, err := svc.Scan(context.Background(), ScanFilter{Limit: &limit})
	require.NoError(t, err)
	assert.Empty(t, res.Cells)
	assert.True(t, res.HasMore)
}

func TestScanLimitOverCapIsClamped(t *testing.T) {
	s := memstore.New()
	seedCell(t, s, 262, 1, schema.RadioLTE)
	svc := NewService(s)

	limit := 5000
	res, err := svc.Scan(context.Background(), ScanFilter{Limit: &limit})
	require.NoError(t, err)
	assert.False(t, res.HasMore)
}

func TestBatchLookupCapsAt50(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	for i := uint64(0); i < 60; i++ {
		seedCell(t, s, 262, i, schema.RadioLTE)
	}
	svc := NewService(s)

	keys := make([]LookupKey, 60)
	for i := range keys {
		keys[i] = LookupKey{Mcc: 262, Mnc: 1, Lac: 12345, Cid: uint64(i)}
	}

	got, err := svc.BatchLookup(ctx, keys)
	require.NoError(t, err)
	require.Len(t, got, 60)
	for i := 0; i < 50; i++ {
		assert.NotNil(t, got[i])
	}
	for i := 50; i < 60; i++ {
		assert.Nil(t, got[i])
	}
}

func TestBatchLookupMissingKeyIsNull(t *testing.T) {
	s := memstore.New()
	svc := NewService(s)

	got, err := svc.BatchLookup(context.Background(), []LookupKey{{Mcc: 1, Mnc: 1, Lac: 1, Cid: 1}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Nil(t, got[0])
}
