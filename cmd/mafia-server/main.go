// Package main is the entry point for the Mafia game server. It only
// handles dependency injection and server lifecycle; no game logic
// belongs here.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AshuferMorningstar/Mafia/internal/config"
	"github.com/AshuferMorningstar/Mafia/internal/engine"
	"github.com/AshuferMorningstar/Mafia/internal/infra/storage"
	"github.com/AshuferMorningstar/Mafia/internal/network"
	"github.com/AshuferMorningstar/Mafia/internal/platform/logger"
	"github.com/AshuferMorningstar/Mafia/internal/platform/metrics"
	"github.com/AshuferMorningstar/Mafia/internal/registry"
)

func main() {
	configPath := flag.String("config", "", "path to an optional yaml config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		os.Stderr.WriteString("failed to load configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := logger.New(cfg.Server.LogLevel, cfg.Server.LogFormat)
	if err != nil {
		os.Stderr.WriteString("failed to build logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("initializing sqlite database", "path", cfg.Server.DBPath)
	db, err := storage.InitSQLite(cfg.Server.DBPath)
	if err != nil {
		log.Error("failed to initialize sqlite", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	messages := storage.NewMessageRepository(db)

	collector := metrics.NewCollector()
	hub := network.NewHub(log, collector)

	rooms := registry.NewRooms(registry.Config{
		Clock:   engine.RealClock(),
		Emitter: hub,
		Store:   messages,
		Log:     log,
		Metrics: collector,
		Timings: engine.Timings{
			Prestart:      cfg.Game.Prestart,
			Announce:      cfg.Game.Announce,
			SummaryPause:  cfg.Game.SummaryPause,
			PostVotePause: cfg.Game.PostVotePause,
			EndedPause:    cfg.Game.EndedPause,
		},
		Grace: cfg.Game.GraceWindow,
		Seed:  time.Now().UnixNano(),
	})
	defer rooms.Shutdown()

	router := network.NewRouter(rooms, hub, log, collector)
	api := network.NewAPI(rooms, hub, router, messages, log, collector,
		cfg.Server.EventRate, cfg.Server.EventBurst)

	srv := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: api.Routes(),
	}

	go func() {
		log.Info("mafia server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down", "timeout", cfg.Server.ShutdownTimeout)
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "err", err)
	}
}
