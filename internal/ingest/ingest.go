// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package ingest streams a gzip-compressed OpenCellID CSV body,
// validates and transforms rows, and flushes them to the cell store in
// bounded batches. It never materializes the whole file in memory.
package ingest

import (
	"compress/gzip"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/opencellid/cellservice/internal/schema"
	"github.com/opencellid/cellservice/internal/store"
	"github.com/opencellid/cellservice/pkg/log"
)

// BatchSize is the number of rows accumulated before a flush to the
// store. Order-of-magnitude stable, not a hard contract.
const BatchSize = 1000

// Mode selects full-replace-by-upsert semantics versus diff
// upsert-or-tombstone semantics (spec §4.2).
type Mode int

const (
	ModeFull Mode = iota
	ModeDiff
)

var expectedHeader = []string{
	"radio", "mcc", "net", "area", "cell", "unit", "lon", "lat",
	"range", "samples", "changeable", "created", "updated", "averagesignal",
}

// pendingRow is one buffered flush-window operation: either an upsert
// of cell, or a tombstone delete of the PK it was keyed under.
type pendingRow struct {
	cell      schema.Cell
	tombstone bool
}

// Stats summarizes one ingest run for logging and testing.
type Stats struct {
	Accepted int
	Rejected int
	Deleted  int
	Lines    int
}

// Run decompresses r, parses its CSV rows, and flushes them to s in
// batches of BatchSize. A row-level validation failure increments
// Rejected and is skipped; a batch flush failure aborts the run.
func Run(ctx context.Context, s store.Store, r io.Reader, mode Mode) (Stats, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return Stats{}, fmt.Errorf("INGEST > gzip: %w", err)
	}
	defer gz.Close()

	cr := csv.NewReader(gz)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return Stats{}, fmt.Errorf("INGEST > reading header: %w", err)
	}
	if err := validateHeader(header); err != nil {
		return Stats{}, err
	}
	cr.FieldsPerRecord = len(header)

	var stats Stats
	// pending collapses same-PK rows within a flush window to the last
	// one seen in file order: a map naturally discards everything but
	// the most recent assignment for a given key, so replaying it never
	// needs to know which operation came last. This is what makes the
	// last row for a given PK win even when a tombstone and a normal
	// upsert for the same PK land in the same flush window.
	pending := make(map[schema.PK]pendingRow, BatchSize)

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}

		batch := make([]schema.Cell, 0, len(pending))
		tombstones := make([]schema.PK, 0, len(pending))
		for pk, row := range pending {
			if row.tombstone {
				tombstones = append(tombstones, pk)
			} else {
				batch = append(batch, row.cell)
			}
		}

		if len(batch) > 0 {
			if err := s.UpsertBatch(ctx, batch); err != nil {
				return fmt.Errorf("INGEST > upsert batch at line %d: %w", stats.Lines, err)
			}
		}
		if len(tombstones) > 0 {
			if err := s.DeleteByPK(ctx, tombstones); err != nil {
				return fmt.Errorf("INGEST > delete batch at line %d: %w", stats.Lines, err)
			}
			stats.Deleted += len(tombstones)
		}

		for pk := range pending {
			delete(pending, pk)
		}
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		default:
		}

		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return stats, fmt.Errorf("INGEST > csv parse error at line %d: %w", stats.Lines, err)
		}
		stats.Lines++

		row, err := parseRow(record)
		if err != nil {
			stats.Rejected++
			log.Debugf("INGEST > rejecting line %d: %s", stats.Lines, err.Error())
			continue
		}

		if mode == ModeDiff && isTombstone(row) {
			pending[row.PK()] = pendingRow{tombstone: true}
		} else {
			pending[row.PK()] = pendingRow{cell: row}
		}
		stats.Accepted++

		if len(pending) >= BatchSize {
			if err := flush(); err != nil {
				return stats, err
			}
		}
	}

	if err := flush(); err != nil {
		return stats, err
	}

	return stats, nil
}

func validateHeader(header []string) error {
	if len(header) != len(expectedHeader) {
		return fmt.Errorf("INGEST > unexpected column count %d", len(header))
	}
	for i, col := range header {
		if strings.ToLower(strings.TrimSpace(col)) != expectedHeader[i] {
			return fmt.Errorf("INGEST > unexpected column %q at position %d", col, i)
		}
	}
	return nil
}

// isTombstone applies the diff-mode delete sentinel: changeable=false
// combined with samples=0. The exact upstream tombstone convention is
// not documented in the retrievable source; this is the fallback this
// repo settled on (see DESIGN.md) — "treat unknown as no-delete" is
// honored by requiring both conditions rather than either alone.
func isTombstone(c schema.Cell) bool {
	return !c.Changeable && c.Samples == 0
}

// parseRow decodes and validates one CSV record into a schema.Cell,
// mapping the radio column case-insensitively and converting the
// created/updated unix-epoch columns to UTC timestamps.
func parseRow(record []string) (schema.Cell, error) {
	if len(record) != len(expectedHeader) {
		return schema.Cell{}, fmt.Errorf("wrong field count %d", len(record))
	}

	radio, err := schema.ParseRadio(record[0])
	if err != nil {
		return schema.Cell{}, err
	}

	mcc, err := parseUint(record[1], 16)
	if err != nil {
		return schema.Cell{}, fmt.Errorf("mcc: %w", err)
	}
	net, err := parseUint(record[2], 16)
	if err != nil {
		return schema.Cell{}, fmt.Errorf("net: %w", err)
	}
	area, err := parseUint(record[3], 32)
	if err != nil {
		return schema.Cell{}, fmt.Errorf("area: %w", err)
	}
	cellID, err := parseUint(record[4], 64)
	if err != nil {
		return schema.Cell{}, fmt.Errorf("cell: %w", err)
	}

	var unit *uint16
	if v := strings.TrimSpace(record[5]); v != "" {
		u, err := parseUint(v, 16)
		if err != nil {
			return schema.Cell{}, fmt.Errorf("unit: %w", err)
		}
		u16 := uint16(u)
		unit = &u16
	}

	lon, err := strconv.ParseFloat(record[6], 32)
	if err != nil {
		return schema.Cell{}, fmt.Errorf("lon: %w", err)
	}
	lat, err := strconv.ParseFloat(record[7], 32)
	if err != nil {
		return schema.Cell{}, fmt.Errorf("lat: %w", err)
	}

	rng, err := parseUint(record[8], 32)
	if err != nil {
		return schema.Cell{}, fmt.Errorf("range: %w", err)
	}
	samples, err := parseUint(record[9], 32)
	if err != nil {
		return schema.Cell{}, fmt.Errorf("samples: %w", err)
	}

	changeable := record[10] == "1" || strings.EqualFold(record[10], "true")

	createdUnix, err := strconv.ParseInt(record[11], 10, 64)
	if err != nil {
		return schema.Cell{}, fmt.Errorf("created: %w", err)
	}
	updatedUnix, err := strconv.ParseInt(record[12], 10, 64)
	if err != nil {
		return schema.Cell{}, fmt.Errorf("updated: %w", err)
	}

	var averageSignal *int16
	if v := strings.TrimSpace(record[13]); v != "" {
		s, err := strconv.ParseInt(v, 10, 16)
		if err != nil {
			return schema.Cell{}, fmt.Errorf("averageSignal: %w", err)
		}
		s16 := int16(s)
		averageSignal = &s16
	}

	created := time.Unix(createdUnix, 0).UTC()
	updated := time.Unix(updatedUnix, 0).UTC()
	if created.After(updated) {
		return schema.Cell{}, fmt.Errorf("created %s after updated %s", created, updated)
	}

	return schema.Cell{
		Radio:         radio,
		Mcc:           uint16(mcc),
		Net:           uint16(net),
		Area:          uint32(area),
		Cell:          cellID,
		Unit:          unit,
		Lon:           float32(lon),
		Lat:           float32(lat),
		CellRange:     uint32(rng),
		Samples:       uint32(samples),
		Changeable:    changeable,
		Created:       created,
		Updated:       updated,
		AverageSignal: averageSignal,
	}, nil
}

func parseUint(s string, bits int) (uint64, error) {
	return strconv.ParseUint(strings.TrimSpace(s), 10, bits)
}
