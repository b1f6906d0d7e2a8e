// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package scheduler

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencellid/cellservice/internal/store/memstore"
)

const fullCSV = "radio,mcc,net,area,cell,unit,lon,lat,range,samples,changeable,created,updated,averagesignal\n" +
	"LTE,262,1,12345,67890,0,13.405,52.52,1000,10,1,1577836800,1577836800,-80\n"

func gzipBody(t *testing.T, s string) io.ReadCloser {
	t.Helper()
	buf := &bytes.Buffer{}
	w := gzip.NewWriter(buf)
	_, err := w.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return io.NopCloser(buf)
}

// slowFetcher blocks its first FetchFull call on release until the
// test closes it, simulating a long-running full sync in flight. Any
// further call is only reached if the caller was not dropped by the
// overlap guard, so the test can assert it never happens.
type slowFetcher struct {
	t       *testing.T
	started chan struct{}
	release chan struct{}
	once    sync.Once
	calls   int32
}

func (f *slowFetcher) FetchFull(ctx context.Context) (io.ReadCloser, error) {
	f.once.Do(func() { close(f.started) })
	f.calls++
	<-f.release
	return gzipBody(f.t, fullCSV), nil
}

func (f *slowFetcher) FetchDiff(ctx context.Context, date string) (io.ReadCloser, error) {
	f.calls++
	return gzipBody(f.t, fullCSV), nil
}

// TestOverlapGuardDropsSecondTickWatermarkAdvancesOnce reproduces the
// "two ticks 10 minutes apart while a 25-minute full sync is running"
// scenario: only the first sync runs to completion, the second is
// dropped outright, and the watermark advances exactly once.
func TestOverlapGuardDropsSecondTickWatermarkAdvancesOnce(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()

	fetcher := &slowFetcher{t: t, started: make(chan struct{}), release: make(chan struct{})}
	r, err := New(s, fetcher)
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.RunOnce(ctx, ActionFull)
	}()

	select {
	case <-fetcher.started:
	case <-time.After(time.Second):
		t.Fatal("first sync never reached the fetch call")
	}

	// The overlap guard is already held by the in-flight sync above;
	// this second tick must be dropped without ever calling fetch.
	r.RunOnce(ctx, ActionDiff)

	wm, err := s.WatermarkGet(ctx)
	require.NoError(t, err)
	assert.Nil(t, wm, "watermark must not advance while the first sync is still running")

	close(fetcher.release)
	wg.Wait()

	wm, err = s.WatermarkGet(ctx)
	require.NoError(t, err)
	require.NotNil(t, wm)
	assert.Equal(t, "full", wm.LastMode)
	assert.EqualValues(t, 1, fetcher.calls, "the dropped tick must never call fetch")
}
