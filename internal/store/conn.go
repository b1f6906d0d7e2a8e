// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package store

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/qustavo/sqlhooks/v2"

	"github.com/opencellid/cellservice/pkg/log"
)

var (
	dbConnOnce     sync.Once
	dbConnInstance *DBConnection
)

// DBConnection wraps the singleton sqlx handle shared by every store
// operation. Only one is ever created per process.
type DBConnection struct {
	DB        *sqlx.DB
	Driver    string
	stmtCache *sq.StmtCache
}

// Connect opens the database handle for driver ("sqlite3" or "mysql"),
// applies pending migrations, and wires SQL-level query logging. Safe
// to call more than once; only the first call takes effect.
func Connect(driver string, dsn string) error {
	var err error
	var dbHandle *sqlx.DB

	dbConnOnce.Do(func() {
		switch driver {
		case "sqlite3":
			sql.Register("sqlite3WithHooks", sqlhooks.Wrap(&sqlite3.SQLiteDriver{}, &Hooks{}))
			dbHandle, err = sqlx.Open("sqlite3WithHooks", fmt.Sprintf("%s?_foreign_keys=on", dsn))
			if err != nil {
				return
			}
			// sqlite does not multithread; one connection avoids lock waits.
			dbHandle.SetMaxOpenConns(1)
		case "mysql":
			sql.Register("mysqlWithHooks", sqlhooks.Wrap(&mysql.MySQLDriver{}, &Hooks{}))
			dbHandle, err = sqlx.Open("mysqlWithHooks", fmt.Sprintf("%s?multiStatements=true", dsn))
			if err != nil {
				return
			}
			dbHandle.SetConnMaxLifetime(time.Minute * 3)
			dbHandle.SetMaxOpenConns(10)
			dbHandle.SetMaxIdleConns(10)
		default:
			err = fmt.Errorf("STORE/CONN > unsupported database driver: %s", driver)
			return
		}

		if err = MigrateDB(driver, dsn); err != nil {
			return
		}

		dbConnInstance = &DBConnection{DB: dbHandle, Driver: driver, stmtCache: sq.NewStmtCache(dbHandle)}
	})

	return err
}

// GetConnection returns the process-wide connection. Connect must have
// succeeded first.
func GetConnection() *DBConnection {
	if dbConnInstance == nil {
		log.Abortf("STORE/CONN > database connection not initialized")
	}
	return dbConnInstance
}
