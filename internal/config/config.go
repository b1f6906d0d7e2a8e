// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config loads process configuration through a three-layer
// precedence, lowest to highest: compiled-in defaults, a JSON config
// file, and environment variables (themselves possibly populated from
// a .env file by internal/runtimeEnv.LoadEnv). This mirrors cc-backend's
// internal/config.Init, generalized from a single JSON-only load to
// also accept environment overrides the way a twelve-factor service
// typically wants.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/opencellid/cellservice/pkg/log"
)

// ProgramConfig is the full set of knobs the cell-tower mirror needs.
type ProgramConfig struct {
	Addr             string `json:"addr"`
	DBDriver         string `json:"dbDriver"`
	DB               string `json:"db"`
	OpenCellIDAPIKey string `json:"openCellIdApiKey"`
	OpenCellIDURL    string `json:"openCellIdUrl"`
	LogLevel         string `json:"logLevel"`
	LogDateTime      bool   `json:"logDateTime"`
}

// Keys holds the effective configuration after Init has run.
var Keys = ProgramConfig{
	Addr:          ":3000",
	DBDriver:      "sqlite3",
	DB:            "./var/cellservice.db",
	OpenCellIDURL: "https://opencellid.org/ocid",
	LogLevel:      "info",
	LogDateTime:   false,
}

// Init applies the JSON config file at flagConfigFile (if it exists)
// over the defaults, then lets DATABASE_URL, OPENCELLID_API_KEY and
// CELLSERVICE_LOG_LEVEL override individual fields, matching §6's
// environment contract.
func Init(flagConfigFile string) error {
	if flagConfigFile != "" {
		raw, err := os.ReadFile(flagConfigFile)
		if err != nil {
			if !os.IsNotExist(err) {
				return err
			}
		} else {
			dec := json.NewDecoder(bytes.NewReader(raw))
			dec.DisallowUnknownFields()
			if err := dec.Decode(&Keys); err != nil {
				return fmt.Errorf("CONFIG > parsing %s: %w", flagConfigFile, err)
			}
		}
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		Keys.DB = v
	}
	if v := os.Getenv("OPENCELLID_API_KEY"); v != "" {
		Keys.OpenCellIDAPIKey = v
	}
	if v := os.Getenv("CELLSERVICE_LOG_LEVEL"); v != "" {
		Keys.LogLevel = v
	}

	if Keys.OpenCellIDAPIKey == "" {
		log.Warn("CONFIG > OPENCELLID_API_KEY is unset; sync will fail at fetch time")
	}

	return nil
}
