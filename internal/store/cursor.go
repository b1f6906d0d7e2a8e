// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package store

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/opencellid/cellservice/internal/schema"
)

// ErrInvalidCursor is returned by DecodeCursor for any input that does
// not round-trip to a well-formed PK tuple.
type ErrInvalidCursor struct {
	Reason string
}

func (e *ErrInvalidCursor) Error() string {
	return fmt.Sprintf("STORE/CURSOR > invalid cursor: %s", e.Reason)
}

// EncodeCursor is a total function from a PK to its opaque page token:
// base64 over a colon-delimited "mcc:net:area:cell:radio" tuple.
func EncodeCursor(pk schema.PK) string {
	raw := fmt.Sprintf("%d:%d:%d:%d:%s", pk.Mcc, pk.Net, pk.Area, pk.Cell, pk.Radio)
	return base64.URLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor inverts EncodeCursor. It is total: every input either
// yields the PK tuple that produced it or a non-nil *ErrInvalidCursor.
func DecodeCursor(cursor string) (schema.PK, error) {
	raw, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return schema.PK{}, &ErrInvalidCursor{Reason: "not valid base64"}
	}

	parts := strings.Split(string(raw), ":")
	if len(parts) != 5 {
		return schema.PK{}, &ErrInvalidCursor{Reason: "wrong number of components"}
	}

	mcc, err := strconv.ParseUint(parts[0], 10, 16)
	if err != nil {
		return schema.PK{}, &ErrInvalidCursor{Reason: "mcc out of range"}
	}
	net, err := strconv.ParseUint(parts[1], 10, 16)
	if err != nil {
		return schema.PK{}, &ErrInvalidCursor{Reason: "net out of range"}
	}
	area, err := strconv.ParseUint(parts[2], 10, 32)
	if err != nil {
		return schema.PK{}, &ErrInvalidCursor{Reason: "area out of range"}
	}
	cell, err := strconv.ParseUint(parts[3], 10, 64)
	if err != nil {
		return schema.PK{}, &ErrInvalidCursor{Reason: "cell out of range"}
	}
	radio, err := schema.ParseRadio(parts[4])
	if err != nil {
		return schema.PK{}, &ErrInvalidCursor{Reason: "unknown radio"}
	}

	return schema.PK{
		Mcc:   uint16(mcc),
		Net:   uint16(net),
		Area:  uint32(area),
		Cell:  cell,
		Radio: radio,
	}, nil
}
