// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencellid/cellservice/internal/schema"
)

func TestBestMatchHigherSamplesWins(t *testing.T) {
	now := time.Now()
	gsm := schema.Cell{Radio: schema.RadioGSM, Samples: 100, Updated: now}
	lte := schema.Cell{Radio: schema.RadioLTE, Samples: 50, Updated: now}

	got := BestMatch([]schema.Cell{gsm, lte})
	require.NotNil(t, got)
	assert.Equal(t, schema.RadioGSM, got.Radio)
}

func TestBestMatchTieBreaksOnRadioGeneration(t *testing.T) {
	now := time.Now()
	gsm := schema.Cell{Radio: schema.RadioGSM, Samples: 50, Updated: now}
	lte := schema.Cell{Radio: schema.RadioLTE, Samples: 50, Updated: now}

	got := BestMatch([]schema.Cell{gsm, lte})
	require.NotNil(t, got)
	assert.Equal(t, schema.RadioLTE, got.Radio)
}

func TestBestMatchTieBreaksOnUpdated(t *testing.T) {
	older := schema.Cell{Radio: schema.RadioGSM, Samples: 50, Updated: time.Now().Add(-time.Hour)}
	newer := schema.Cell{Radio: schema.RadioGSM, Samples: 50, Updated: time.Now()}

	got := BestMatch([]schema.Cell{older, newer})
	require.NotNil(t, got)
	assert.True(t, got.Updated.Equal(newer.Updated))
}

func TestBestMatchEmpty(t *testing.T) {
	assert.Nil(t, BestMatch(nil))
}

func TestBestMatchDeterministicRegardlessOfOrder(t *testing.T) {
	now := time.Now()
	a := schema.Cell{Radio: schema.RadioGSM, Samples: 50, Updated: now, Lon: 1}
	b := schema.Cell{Radio: schema.RadioGSM, Samples: 50, Updated: now, Lon: 2}

	got1 := BestMatch([]schema.Cell{a, b})
	got2 := BestMatch([]schema.Cell{b, a})
	assert.Equal(t, got1, got2)
}
