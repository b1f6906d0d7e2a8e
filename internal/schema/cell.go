// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package schema

import (
	"fmt"
	"strings"
	"time"
)

// Radio is the closed set of cellular radio technologies a Cell can
// belong to, ordered oldest to newest generation.
type Radio string

const (
	RadioCDMA Radio = "CDMA"
	RadioGSM  Radio = "GSM"
	RadioUMTS Radio = "UMTS"
	RadioLTE  Radio = "LTE"
	RadioNR   Radio = "NR"
)

// generation maps a Radio to its recency rank; higher wins a best-match
// tiebreak. Unknown radios never reach here — ParseRadio rejects them.
var generation = map[Radio]int{
	RadioCDMA: 0,
	RadioGSM:  1,
	RadioUMTS: 2,
	RadioLTE:  3,
	RadioNR:   4,
}

// Generation returns the recency rank used to break best-match ties:
// NR > LTE > UMTS > GSM > CDMA.
func (r Radio) Generation() int {
	return generation[r]
}

func (r Radio) Valid() bool {
	_, ok := generation[r]
	return ok
}

// ParseRadio maps an upstream radio string to its enum value,
// case-insensitively. Unknown values are rejected at the row level by
// the ingest pipeline, not silently coerced.
func ParseRadio(s string) (Radio, error) {
	r := Radio(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("SCHEMA/CELL > unknown radio %q", s)
	}
	return r, nil
}

// Cell is the canonical cell-tower location record mirrored from
// OpenCellID. The primary key is the composite (Mcc, Net, Area, Cell,
// Radio); Mcc leads the tuple so prefix scans by country/network need
// no radio filter.
type Cell struct {
	Radio         Radio     `json:"radio" db:"radio"`
	Mcc           uint16    `json:"mcc" db:"mcc"`
	Net           uint16    `json:"net" db:"net"`
	Area          uint32    `json:"area" db:"area"`
	Cell          uint64    `json:"cell" db:"cell"`
	Unit          *uint16   `json:"unit,omitempty" db:"unit"`
	Lon           float32   `json:"lon" db:"lon"`
	Lat           float32   `json:"lat" db:"lat"`
	CellRange     uint32    `json:"cellRange" db:"range"`
	Samples       uint32    `json:"samples" db:"samples"`
	Changeable    bool      `json:"changeable" db:"changeable"`
	Created       time.Time `json:"created" db:"created"`
	Updated       time.Time `json:"updated" db:"updated"`
	AverageSignal *int16    `json:"averageSignal,omitempty" db:"average_signal"`
}

// PK is the composite primary key tuple as used by point lookups,
// prefix scans and cursor encoding.
type PK struct {
	Mcc   uint16
	Net   uint16
	Area  uint32
	Cell  uint64
	Radio Radio
}

func (c Cell) PK() PK {
	return PK{Mcc: c.Mcc, Net: c.Net, Area: c.Area, Cell: c.Cell, Radio: c.Radio}
}

// Watermark records the last successful sync, driving the scheduler's
// decision table (§4.1). It may be unset, represented by a nil pointer
// at the call sites that read it.
type Watermark struct {
	LastSyncUTC time.Time `db:"last_sync_utc"`
	LastMode    string    `db:"last_mode"`
}
