// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package store

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/opencellid/cellservice/pkg/log"
)

//go:embed migrations/*
var migrationFiles embed.FS

// MigrateDB applies all pending migrations for driver ("sqlite3" or
// "mysql") against dsn, creating the schema on a fresh database.
func MigrateDB(driver string, dsn string) error {
	var m *migrate.Migrate
	var err error

	switch driver {
	case "sqlite3":
		d, derr := iofs.New(migrationFiles, "migrations/sqlite3")
		if derr != nil {
			return derr
		}
		m, err = migrate.NewWithSourceInstance("iofs", d, fmt.Sprintf("sqlite3://%s?_foreign_keys=on", dsn))
	case "mysql":
		d, derr := iofs.New(migrationFiles, "migrations/mysql")
		if derr != nil {
			return derr
		}
		m, err = migrate.NewWithSourceInstance("iofs", d, fmt.Sprintf("mysql://%s?multiStatements=true", dsn))
	default:
		return fmt.Errorf("STORE/MIGRATION > unsupported database driver: %s", driver)
	}
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	log.Info("STORE/MIGRATION > schema up to date")
	return nil
}

