// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/opencellid/cellservice/internal/schema"
	"github.com/opencellid/cellservice/pkg/log"
)

var cellColumns = []string{
	"mcc", "net", "area", "cell", "radio", "unit", "lon", "lat",
	"range", "samples", "changeable", "created", "updated", "average_signal",
}

// SQLStore is the jmoiron/sqlx + Masterminds/squirrel backed Store
// implementation, dialect-aware over sqlite3 and mysql.
type SQLStore struct {
	conn *DBConnection
}

func NewSQLStore(conn *DBConnection) *SQLStore {
	return &SQLStore{conn: conn}
}

func (s *SQLStore) placeholder() sq.PlaceholderFormat {
	return sq.Question
}

func (s *SQLStore) UpsertBatch(ctx context.Context, rows []schema.Cell) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.conn.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	ib := sq.Insert("cell").Columns(cellColumns...).PlaceholderFormat(s.placeholder())
	for _, c := range rows {
		ib = ib.Values(c.Mcc, c.Net, c.Area, c.Cell, string(c.Radio), c.Unit, c.Lon, c.Lat,
			c.CellRange, c.Samples, c.Changeable, c.Created.UTC(), c.Updated.UTC(), c.AverageSignal)
	}

	switch s.conn.Driver {
	case "mysql":
		ib = ib.Suffix("ON DUPLICATE KEY UPDATE " + mysqlUpdateAllColumns())
	default: // sqlite3
		ib = ib.Suffix("ON CONFLICT(mcc, net, area, cell, radio) DO UPDATE SET " + sqliteUpdateAllColumns())
	}

	sqlStr, args, err := ib.ToSql()
	if err != nil {
		log.Warn("STORE/CELL > error while converting upsert batch to sql")
		return err
	}

	if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
		log.Errorf("STORE/CELL > upsert batch failed: %s", err.Error())
		return err
	}

	return tx.Commit()
}

func mysqlUpdateAllColumns() string {
	cols := []string{"unit", "lon", "lat", "range", "samples", "changeable", "created", "updated", "average_signal"}
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = fmt.Sprintf("%s = VALUES(%s)", c, c)
	}
	return strings.Join(parts, ", ")
}

func sqliteUpdateAllColumns() string {
	cols := []string{"unit", "lon", "lat", "range", "samples", "changeable", "created", "updated", "average_signal"}
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = fmt.Sprintf("%s = excluded.%s", c, c)
	}
	return strings.Join(parts, ", ")
}

func (s *SQLStore) DeleteByPK(ctx context.Context, pks []schema.PK) error {
	if len(pks) == 0 {
		return nil
	}

	tx, err := s.conn.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, pk := range pks {
		db := sq.Delete("cell").PlaceholderFormat(s.placeholder()).Where(sq.Eq{
			"mcc": pk.Mcc, "net": pk.Net, "area": pk.Area, "cell": pk.Cell, "radio": string(pk.Radio),
		})
		sqlStr, args, err := db.ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
			log.Errorf("STORE/CELL > delete by pk failed: %s", err.Error())
			return err
		}
	}

	return tx.Commit()
}

func (s *SQLStore) GetByPK(ctx context.Context, pk schema.PK) (*schema.Cell, error) {
	query := sq.Select(cellColumns...).From("cell").PlaceholderFormat(s.placeholder()).Where(sq.Eq{
		"mcc": pk.Mcc, "net": pk.Net, "area": pk.Area, "cell": pk.Cell, "radio": string(pk.Radio),
	})

	rows, err := s.runQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (s *SQLStore) GetByPrefix(ctx context.Context, mcc, net uint16, area uint32, cell uint64) ([]schema.Cell, error) {
	query := sq.Select(cellColumns...).From("cell").PlaceholderFormat(s.placeholder()).
		Where(sq.Eq{"mcc": mcc, "net": net, "area": area, "cell": cell}).
		OrderBy("radio ASC")

	return s.runQuery(ctx, query)
}

func (s *SQLStore) Scan(ctx context.Context, filter Filter, after *schema.PK, limit int) ([]schema.Cell, error) {
	query := sq.Select(cellColumns...).From("cell").PlaceholderFormat(s.placeholder()).
		OrderBy("mcc ASC", "net ASC", "area ASC", "cell ASC", "radio ASC").
		Limit(uint64(limit))

	query = buildWhereClause(filter, query)
	if seek := buildSeekPredicate(after); seek != nil {
		query = query.Where(seek)
	}

	return s.runQuery(ctx, query)
}

func (s *SQLStore) runQuery(ctx context.Context, query sq.SelectBuilder) ([]schema.Cell, error) {
	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Warn("STORE/CELL > error while converting query to sql")
		return nil, err
	}

	log.Debugf("SQL query: `%s`, args: %#v", sqlStr, args)
	rows, err := query.RunWith(s.conn.stmtCache).QueryContext(ctx)
	if err != nil {
		log.Errorf("STORE/CELL > error while running query: %s", err.Error())
		return nil, err
	}
	defer rows.Close()

	cells := make([]schema.Cell, 0, 32)
	for rows.Next() {
		var c schema.Cell
		var radioStr string
		var created, updated interface{}
		if err := rows.Scan(&c.Mcc, &c.Net, &c.Area, &c.Cell, &radioStr, &c.Unit, &c.Lon, &c.Lat,
			&c.CellRange, &c.Samples, &c.Changeable, &created, &updated, &c.AverageSignal); err != nil {
			log.Warn("STORE/CELL > error while scanning row")
			return nil, err
		}
		c.Radio = schema.Radio(radioStr)
		if t, err := coerceTime(created); err == nil {
			c.Created = t
		}
		if t, err := coerceTime(updated); err == nil {
			c.Updated = t
		}
		cells = append(cells, c)
	}

	return cells, rows.Err()
}

func (s *SQLStore) WatermarkGet(ctx context.Context) (*schema.Watermark, error) {
	row := s.conn.DB.QueryRowContext(ctx, "SELECT last_sync_utc, last_mode FROM schema_watermark WHERE id = 1")

	var lastSync interface{}
	var mode string
	if err := row.Scan(&lastSync, &mode); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if lastSync == nil {
		return nil, nil
	}

	t, err := coerceTime(lastSync)
	if err != nil {
		return nil, err
	}

	return &schema.Watermark{LastSyncUTC: t, LastMode: mode}, nil
}

func (s *SQLStore) WatermarkSet(ctx context.Context, w schema.Watermark) error {
	var sqlStr string
	switch s.conn.Driver {
	case "mysql":
		sqlStr = `INSERT INTO schema_watermark (id, last_sync_utc, last_mode) VALUES (1, ?, ?)
			ON DUPLICATE KEY UPDATE last_sync_utc = VALUES(last_sync_utc), last_mode = VALUES(last_mode)`
	default:
		sqlStr = `INSERT INTO schema_watermark (id, last_sync_utc, last_mode) VALUES (1, ?, ?)
			ON CONFLICT(id) DO UPDATE SET last_sync_utc = excluded.last_sync_utc, last_mode = excluded.last_mode`
	}

	_, err := s.conn.DB.ExecContext(ctx, sqlStr, w.LastSyncUTC.UTC(), w.LastMode)
	return err
}
