// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package runtimeEnv

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/joho/godotenv"
	"github.com/opencellid/cellservice/pkg/log"
)

// LoadEnv reads a .env-style file and adds every variable found to the
// process environment. Existing environment variables are not
// overwritten, so `DATABASE_URL=foo ./cellservice` still wins over a
// same-named entry in the file.
func LoadEnv(file string) error {
	vars, err := godotenv.Read(file)
	if err != nil {
		return err
	}

	for key, val := range vars {
		if _, present := os.LookupEnv(key); present {
			continue
		}
		if err := os.Setenv(key, val); err != nil {
			return err
		}
	}

	return nil
}

// SystemdNotifiy informs systemd that the process is running, if
// started using systemd:
// https://www.freedesktop.org/software/systemd/man/sd_notify.html
func SystemdNotifiy(ready bool, status string) {
	if os.Getenv("NOTIFY_SOCKET") == "" {
		// Not started using systemd
		return
	}

	args := []string{fmt.Sprintf("--pid=%d", os.Getpid())}
	if ready {
		args = append(args, "--ready")
	}

	if status != "" {
		args = append(args, fmt.Sprintf("--status=%s", status))
	}

	cmd := exec.Command("systemd-notify", args...)
	if err := cmd.Run(); err != nil {
		log.Debugf("systemd-notify failed: %s", err.Error())
	}
}
