// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package ingest

import (
	"bytes"
	"compress/gzip"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencellid/cellservice/internal/schema"
	"github.com/opencellid/cellservice/internal/store/memstore"
)

func gzipCSV(t *testing.T, rows string) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	w := gzip.NewWriter(buf)
	_, err := w.Write([]byte(rows))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf
}

const header = "radio,mcc,net,area,cell,unit,lon,lat,range,samples,changeable,created,updated,averageSignal\n"

func TestIngestFullMode(t *testing.T) {
	s := memstore.New()
	body := header + "LTE,262,1,12345,67890,0,13.405,52.52,1000,10,1,1577836800,1577836800,-80\n"

	stats, err := Run(context.Background(), s, gzipCSV(t, body), ModeFull)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Accepted)
	assert.Equal(t, 0, stats.Rejected)

	got, err := s.GetByPK(context.Background(), schema.PK{Mcc: 262, Net: 1, Area: 12345, Cell: 67890, Radio: schema.RadioLTE})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.EqualValues(t, 10, got.Samples)
}

func TestIngestRejectsUnknownRadio(t *testing.T) {
	s := memstore.New()
	body := header + "BOGUS,262,1,12345,67890,0,13.405,52.52,1000,10,1,1577836800,1577836800,-80\n"

	stats, err := Run(context.Background(), s, gzipCSV(t, body), ModeFull)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Accepted)
	assert.Equal(t, 1, stats.Rejected)
}

func TestIngestDiffAppliesTombstone(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()

	full := header + "LTE,262,1,12345,67890,0,13.405,52.52,1000,10,1,1577836800,1577836800,-80\n"
	_, err := Run(ctx, s, gzipCSV(t, full), ModeFull)
	require.NoError(t, err)

	diff := header + "LTE,262,1,12345,67890,0,13.405,52.52,1000,0,0,1577836800,1577923200,-80\n"
	stats, err := Run(ctx, s, gzipCSV(t, diff), ModeDiff)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Deleted)

	got, err := s.GetByPK(ctx, schema.PK{Mcc: 262, Net: 1, Area: 12345, Cell: 67890, Radio: schema.RadioLTE})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestIngestDiffSamePKTombstoneThenUpsertSurvives(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()

	full := header + "LTE,262,1,12345,67890,0,13.405,52.52,1000,10,1,1577836800,1577836800,-80\n"
	_, err := Run(ctx, s, gzipCSV(t, full), ModeFull)
	require.NoError(t, err)

	// Same PK appears twice in one diff: a tombstone row followed later
	// (still inside one flush window) by a normal upsert. The upsert is
	// the last row for that PK, so the row must survive.
	diff := header +
		"LTE,262,1,12345,67890,0,13.405,52.52,1000,0,0,1577836800,1577923200,-80\n" +
		"LTE,262,1,12345,67890,0,13.405,52.52,1000,30,1,1577836800,1578009600,-80\n"
	stats, err := Run(ctx, s, gzipCSV(t, diff), ModeDiff)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Deleted)

	got, err := s.GetByPK(ctx, schema.PK{Mcc: 262, Net: 1, Area: 12345, Cell: 67890, Radio: schema.RadioLTE})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.EqualValues(t, 30, got.Samples)
}

func TestIngestDiffSamePKUpsertThenTombstoneDeletes(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()

	full := header + "LTE,262,1,12345,67890,0,13.405,52.52,1000,10,1,1577836800,1577836800,-80\n"
	_, err := Run(ctx, s, gzipCSV(t, full), ModeFull)
	require.NoError(t, err)

	// Reverse order: an upsert followed by a tombstone for the same PK.
	// The tombstone is the last row, so the delete must win.
	diff := header +
		"LTE,262,1,12345,67890,0,13.405,52.52,1000,30,1,1577836800,1577923200,-80\n" +
		"LTE,262,1,12345,67890,0,13.405,52.52,1000,0,0,1577836800,1578009600,-80\n"
	stats, err := Run(ctx, s, gzipCSV(t, diff), ModeDiff)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Deleted)

	got, err := s.GetByPK(ctx, schema.PK{Mcc: 262, Net: 1, Area: 12345, Cell: 67890, Radio: schema.RadioLTE})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestIngestDiffUpsertsLastWriterWins(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()

	full := header + "LTE,262,1,12345,67890,0,13.405,52.52,1000,10,1,1577836800,1577836800,-80\n"
	_, err := Run(ctx, s, gzipCSV(t, full), ModeFull)
	require.NoError(t, err)

	diff := header + "LTE,262,1,12345,67890,0,13.405,52.52,1000,25,1,1577836800,1577923200,-80\n"
	_, err = Run(ctx, s, gzipCSV(t, diff), ModeDiff)
	require.NoError(t, err)

	got, err := s.GetByPK(ctx, schema.PK{Mcc: 262, Net: 1, Area: 12345, Cell: 67890, Radio: schema.RadioLTE})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.EqualValues(t, 25, got.Samples)
}
