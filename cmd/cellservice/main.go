// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/gops/agent"

	"github.com/opencellid/cellservice/internal/config"
	"github.com/opencellid/cellservice/internal/fetch"
	"github.com/opencellid/cellservice/internal/httpapi"
	"github.com/opencellid/cellservice/internal/query"
	"github.com/opencellid/cellservice/internal/scheduler"
	"github.com/opencellid/cellservice/internal/store"
	"github.com/opencellid/cellservice/internal/runtimeEnv"
	"github.com/opencellid/cellservice/pkg/log"
)

func main() {
	var flagConfigFile string
	var flagSyncNow string
	var flagNoServer bool
	var flagGops bool

	flag.StringVar(&flagConfigFile, "config", "./config.json", "Overwrite the global config options by those specified in `config.json`")
	flag.StringVar(&flagSyncNow, "sync-now", "", "Force an immediate sync before (or instead of) starting the server: `full` or `diff`")
	flag.BoolVar(&flagNoServer, "no-server", false, "Do not start the HTTP server, stop right after initialization and sync handling")
	flag.BoolVar(&flagGops, "gops", false, "Listen via github.com/google/gops/agent (for debugging)")
	flag.Parse()

	if flagGops {
		if err := agent.Listen(agent.Options{}); err != nil {
			log.Fatalf("gops/agent.Listen failed: %s", err.Error())
		}
	}

	if err := runtimeEnv.LoadEnv("./.env"); err != nil && !os.IsNotExist(err) {
		log.Fatalf("parsing './.env' file failed: %s", err.Error())
	}

	if err := config.Init(flagConfigFile); err != nil {
		log.Fatal(err)
	}

	log.Init(config.Keys.LogLevel, config.Keys.LogDateTime)

	if err := store.Connect(config.Keys.DBDriver, config.Keys.DB); err != nil {
		log.Fatalf("STORE > connect failed: %s", err.Error())
	}
	sqlStore := store.NewSQLStore(store.GetConnection())

	fetcher := fetch.New(config.Keys.OpenCellIDURL, config.Keys.OpenCellIDAPIKey)

	runner, err := scheduler.New(sqlStore, fetcher)
	if err != nil {
		log.Fatalf("SCHEDULER > init failed: %s", err.Error())
	}

	if flagSyncNow != "" {
		var action scheduler.Action
		switch flagSyncNow {
		case "full":
			action = scheduler.ActionFull
		case "diff":
			action = scheduler.ActionDiff
		default:
			log.Fatalf("MAIN > -sync-now must be 'full' or 'diff', got %q", flagSyncNow)
		}
		runner.RunOnce(context.Background(), action)
	}

	if flagNoServer {
		return
	}

	querySvc := query.NewService(sqlStore)
	api := httpapi.New(querySvc)
	handler := httpapi.NewRouter(api)

	server := &http.Server{
		Addr:         config.Keys.Addr,
		Handler:      handler,
		ReadTimeout:  20 * time.Second,
		WriteTimeout: 20 * time.Second,
	}

	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		log.Fatalf("MAIN > could not listen on %s: %s", server.Addr, err.Error())
	}

	runner.Start()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Errorf("MAIN > http server failed: %s", err.Error())
		}
	}()

	runtimeEnv.SystemdNotifiy(true, "")
	log.Infof("MAIN > listening on %s", server.Addr)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	log.Info("MAIN > shutting down")
	runtimeEnv.SystemdNotifiy(false, "stopping")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Errorf("MAIN > server shutdown error: %s", err.Error())
	}
	if err := runner.Shutdown(); err != nil {
		log.Errorf("MAIN > scheduler shutdown error: %s", err.Error())
	}

	wg.Wait()
	fmt.Println("MAIN > exiting")
}
