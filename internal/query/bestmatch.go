// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package query

import (
	"github.com/opencellid/cellservice/internal/schema"
)

// BestMatch selects the single "best" row among rows sharing the same
// (mcc, net, area, cell) under the total order of spec §4.4.3: higher
// samples wins, then more recent updated, then higher radio
// generation, then a deterministic lexicographic tiebreak on the
// remaining columns. Returns nil for an empty input.
func BestMatch(rows []schema.Cell) *schema.Cell {
	if len(rows) == 0 {
		return nil
	}

	best := rows[0]
	for _, c := range rows[1:] {
		if better(c, best) {
			best = c
		}
	}
	return &best
}

// better reports whether a outranks b under the §4.4.3 total order.
func better(a, b schema.Cell) bool {
	if a.Samples != b.Samples {
		return a.Samples > b.Samples
	}
	if !a.Updated.Equal(b.Updated) {
		return a.Updated.After(b.Updated)
	}
	if a.Radio.Generation() != b.Radio.Generation() {
		return a.Radio.Generation() > b.Radio.Generation()
	}
	// Remaining ties broken lexicographically on unit, lon, lat, range,
	// changeable, created and averageSignal, in that order, so the
	// selection is a total function of its input regardless of slice order.
	if cmp := cmpPtrUint16(a.Unit, b.Unit); cmp != 0 {
		return cmp > 0
	}
	if a.Lon != b.Lon {
		return a.Lon > b.Lon
	}
	if a.Lat != b.Lat {
		return a.Lat > b.Lat
	}
	if a.CellRange != b.CellRange {
		return a.CellRange > b.CellRange
	}
	if a.Changeable != b.Changeable {
		return !a.Changeable
	}
	if !a.Created.Equal(b.Created) {
		return a.Created.After(b.Created)
	}
	if a.AverageSignal == nil || b.AverageSignal == nil {
		return a.AverageSignal != nil && b.AverageSignal == nil
	}
	return *a.AverageSignal > *b.AverageSignal
}

func cmpPtrUint16(a, b *uint16) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	case *a == *b:
		return 0
	case *a > *b:
		return 1
	default:
		return -1
	}
}
