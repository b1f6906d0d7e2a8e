// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package httpapi routes and binds the four HTTP endpoints over
// internal/query, mapping errors to the taxonomy of spec §7.
package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/opencellid/cellservice/internal/query"
	"github.com/opencellid/cellservice/internal/schema"
	"github.com/opencellid/cellservice/pkg/log"
)

// API binds the query service to HTTP handlers.
type API struct {
	query *query.Service
}

func New(q *query.Service) *API {
	return &API{query: q}
}

// MountRoutes wires the four endpoints (/health, /cell, /cells and
// /cells/lookup) plus /metrics onto router, the way cc-backend's
// rest.MountRoutes wires its subtree.
func (a *API) MountRoutes(router *mux.Router) {
	router.HandleFunc("/health", a.health).Methods(http.MethodGet)
	router.HandleFunc("/cell", a.getCell).Methods(http.MethodGet)
	router.HandleFunc("/cells", a.getCells).Methods(http.MethodGet)
	router.HandleFunc("/cells/lookup", a.lookupCells).Methods(http.MethodPost)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
}

// NewRouter builds a fully middleware-wrapped router: compression,
// panic recovery, CORS and request logging, exactly the cc-backend
// server.go stack, generalized to this API's single JSON surface.
func NewRouter(a *API) http.Handler {
	router := mux.NewRouter()
	a.MountRoutes(router)

	router.Use(handlers.CompressHandler)
	router.Use(handlers.RecoveryHandler(handlers.PrintRecoveryStack(true)))
	router.Use(handlers.CORS(
		handlers.AllowedHeaders([]string{"Content-Type"}),
		handlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
		handlers.AllowedOrigins([]string{"*"})))

	return handlers.CustomLoggingHandler(io.Discard, router, func(_ io.Writer, params handlers.LogFormatterParams) {
		log.Debugf("%s %s (%d, %.02fkb, %dms)",
			params.Request.Method, params.URL.RequestURI(),
			params.StatusCode, float32(params.Size)/1024,
			time.Since(params.TimeStamp).Milliseconds())
	})
}

// ErrorResponse is the JSON body for every non-2xx response.
type ErrorResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

func handleError(err error, statusCode int, rw http.ResponseWriter) {
	log.Warnf("HTTPAPI > %d: %s", statusCode, err.Error())
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(statusCode)
	json.NewEncoder(rw).Encode(ErrorResponse{
		Status: http.StatusText(statusCode),
		Error:  err.Error(),
	})
}

func writeJSON(rw http.ResponseWriter, v interface{}) {
	rw.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(rw).Encode(v); err != nil {
		log.Errorf("HTTPAPI > failed to encode response: %s", err.Error())
	}
}

func (a *API) health(rw http.ResponseWriter, r *http.Request) {
	rw.WriteHeader(http.StatusOK)
	rw.Write([]byte("OK"))
}

func parseUint16Param(r *http.Request, name string) (uint16, bool, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, false, nil
	}
	n, err := strconv.ParseUint(v, 10, 16)
	if err != nil {
		return 0, true, err
	}
	return uint16(n), true, nil
}

func parseUint32Param(r *http.Request, name string) (uint32, bool, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, false, nil
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return 0, true, err
	}
	return uint32(n), true, nil
}

func parseUint64Param(r *http.Request, name string) (uint64, bool, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, false, nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, true, err
	}
	return n, true, nil
}

func parseFloat32Param(r *http.Request, name string) (float32, bool, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, false, nil
	}
	n, err := strconv.ParseFloat(v, 32)
	if err != nil {
		return 0, true, err
	}
	return float32(n), true, nil
}

func (a *API) getCell(rw http.ResponseWriter, r *http.Request) {
	mcc, ok, err := parseUint16Param(r, "mcc")
	if err != nil || !ok {
		handleError(errOrMissing(err, "mcc"), http.StatusBadRequest, rw)
		return
	}
	net, ok, err := parseUint16Param(r, "net")
	if err != nil || !ok {
		handleError(errOrMissing(err, "net"), http.StatusBadRequest, rw)
		return
	}
	area, ok, err := parseUint32Param(r, "area")
	if err != nil || !ok {
		handleError(errOrMissing(err, "area"), http.StatusBadRequest, rw)
		return
	}
	cell, ok, err := parseUint64Param(r, "cell")
	if err != nil || !ok {
		handleError(errOrMissing(err, "cell"), http.StatusBadRequest, rw)
		return
	}

	var radio *schema.Radio
	if raw := r.URL.Query().Get("radio"); raw != "" {
		parsed, err := schema.ParseRadio(raw)
		if err != nil {
			handleError(err, http.StatusBadRequest, rw)
			return
		}
		radio = &parsed
	}

	got, err := a.query.GetCell(r.Context(), mcc, net, area, cell, radio)
	if err != nil {
		handleError(err, http.StatusServiceUnavailable, rw)
		return
	}

	writeJSON(rw, got)
}

func (a *API) getCells(rw http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := query.ScanFilter{Cursor: q.Get("cursor")}

	if v, ok, err := parseUint16Param(r, "mcc"); err != nil {
		handleError(err, http.StatusBadRequest, rw)
		return
	} else if ok {
		f.Mcc = &v
	}
	if v, ok, err := parseUint16Param(r, "mnc"); err != nil {
		handleError(err, http.StatusBadRequest, rw)
		return
	} else if ok {
		f.Mnc = &v
	}
	if v, ok, err := parseFloat32Param(r, "min_lat"); err != nil {
		handleError(err, http.StatusBadRequest, rw)
		return
	} else if ok {
		f.MinLat = &v
	}
	if v, ok, err := parseFloat32Param(r, "max_lat"); err != nil {
		handleError(err, http.StatusBadRequest, rw)
		return
	} else if ok {
		f.MaxLat = &v
	}
	if v, ok, err := parseFloat32Param(r, "min_lon"); err != nil {
		handleError(err, http.StatusBadRequest, rw)
		return
	} else if ok {
		f.MinLon = &v
	}
	if v, ok, err := parseFloat32Param(r, "max_lon"); err != nil {
		handleError(err, http.StatusBadRequest, rw)
		return
	} else if ok {
		f.MaxLon = &v
	}
	if raw := q.Get("radio"); raw != "" {
		radio, err := schema.ParseRadio(raw)
		if err != nil {
			handleError(err, http.StatusBadRequest, rw)
			return
		}
		f.Radio = &radio
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			handleError(err, http.StatusBadRequest, rw)
			return
		}
		f.Limit = &n
	}

	res, err := a.query.Scan(r.Context(), f)
	if err != nil {
		if _, ok := err.(*query.ValidationError); ok {
			handleError(err, http.StatusBadRequest, rw)
			return
		}
		handleError(err, http.StatusServiceUnavailable, rw)
		return
	}

	writeJSON(rw, struct {
		Cells      []schema.Cell `json:"cells"`
		NextCursor *string       `json:"nextCursor"`
		HasMore    bool          `json:"hasMore"`
	}{Cells: res.Cells, NextCursor: res.NextCursor, HasMore: res.HasMore})
}

type lookupKeyJSON struct {
	Mcc uint16 `json:"mcc"`
	Mnc uint16 `json:"mnc"`
	Lac uint32 `json:"lac"`
	Cid uint64 `json:"cid"`
}

func (a *API) lookupCells(rw http.ResponseWriter, r *http.Request) {
	var keysJSON []lookupKeyJSON
	if err := decode(r.Body, &keysJSON); err != nil {
		handleError(err, http.StatusBadRequest, rw)
		return
	}

	keys := make([]query.LookupKey, len(keysJSON))
	for i, k := range keysJSON {
		keys[i] = query.LookupKey{Mcc: k.Mcc, Mnc: k.Mnc, Lac: k.Lac, Cid: k.Cid}
	}

	cells, err := a.query.BatchLookup(r.Context(), keys)
	if err != nil {
		handleError(err, http.StatusServiceUnavailable, rw)
		return
	}

	writeJSON(rw, cells)
}

func decode(r io.Reader, val interface{}) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	return dec.Decode(val)
}

func errOrMissing(err error, name string) error {
	if err != nil {
		return err
	}
	return missingParam(name)
}

type missingParamError struct{ name string }

func (e *missingParamError) Error() string { return "missing required parameter: " + e.name }

func missingParam(name string) error { return &missingParamError{name: name} }
