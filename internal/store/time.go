// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package store

import (
	"fmt"
	"time"
)

// coerceTime normalizes whatever shape the driver handed back for a
// TIMESTAMP/DATETIME column: go-sqlite3 and go-sql-driver/mysql both
// support scanning into time.Time directly when configured to do so,
// but raw []byte/string fallbacks are handled too so this is robust
// across both dialects' default configurations.
func coerceTime(v interface{}) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case []byte:
		return parseTimeLayouts(string(t))
	case string:
		return parseTimeLayouts(t)
	case nil:
		return time.Time{}, nil
	default:
		return time.Time{}, fmt.Errorf("STORE/TIME > unsupported time representation %T", v)
	}
}

var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05Z",
	time.RFC3339,
	"2006-01-02 15:04:05",
}

func parseTimeLayouts(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		} else {
			lastErr = err
		}
	}
	return time.Time{}, lastErr
}
