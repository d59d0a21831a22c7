// @title                      Fleet Monitor API
// @version                    1.0
// @description                Machine fleet cache kept current from the upstream push feed.
// @BasePath                   /
// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization

package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "fleet_monitor/docs"
	"fleet_monitor/internal/clock"
	"fleet_monitor/internal/config"
	"fleet_monitor/internal/handlers"
	"fleet_monitor/internal/logger"
	"fleet_monitor/internal/metrics"
	"fleet_monitor/internal/realtime"
	"fleet_monitor/internal/repository"
	"fleet_monitor/internal/repository/db"
	"fleet_monitor/internal/server"
	"fleet_monitor/internal/service"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// load config.yml, FLEET_* env and flags
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, config.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}

	// init logger
	log := logger.Get(cfg.Log.Level)
	if err := cfg.Validate(); err != nil {
		log.Fatalw("invalid config", "err", err)
	}

	// open DB
	sqlDB, err := db.InitDB(cfg.DB.Path)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err, "path", cfg.DB.Path)
	}
	defer func() {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	reg := metrics.NewRegistry()
	m := metrics.New(reg)
	clk := clock.Real()

	repos, err := newRepositories(cfg, sqlDB, log)
	if err != nil {
		log.Fatalw("failed to load operators", "err", err)
	}

	// in-memory state shared by the push feed and the HTTP layer
	cache := service.NewMachineCache(clk)
	notifications := service.NewNotificationLog(clk, cfg.Notifications.Capacity, cfg.Notifications.TTL, log.Named("notifications"), m)
	dispatcher := realtime.NewDispatcher(log.Named("dispatcher"), m)
	pipeline := realtime.NewPipeline(realtime.NewValidator(), dispatcher, log.Named("pipeline"), m)
	manager := realtime.NewManager(cfg.Upstream.WSURL, realtime.NewWSDialer(cfg.Realtime.DialTimeout), pipeline.HandleFrame,
		realtime.WithReconnectInterval(cfg.Realtime.ReconnectInterval),
		realtime.WithMaxAttempts(cfg.Realtime.MaxReconnectAttempts),
		realtime.WithStableAfter(cfg.Realtime.StableAfter),
		realtime.WithDialTimeout(cfg.Realtime.DialTimeout),
		realtime.WithClock(clk),
		realtime.WithLogger(log.Named("ws")),
		realtime.WithMetrics(m),
	)

	syncer := service.NewSyncService(cache, notifications, clk, log.Named("sync"), m)

	// wire dependencies
	services := service.NewService(service.Deps{
		Repos:         repos,
		Cache:         cache,
		Notifications: notifications,
		Connection:    manager,
		Liveness:      syncer,
		Auth:          service.AuthConfig{SigningKey: cfg.Auth.SigningKey, TokenTTL: cfg.Auth.TokenTTL},
		Clock:         clk,
		Log:           log,
	})

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// seed before subscribing so the first merge already sees the fleet
	services.Machines.Seed(ctx)

	dispatcher.Subscribe("sync", syncer.HandleEvent)
	dispatcher.Subscribe("journal", services.EventLog.HandleEvent)

	manager.Connect()
	go notifications.Run(ctx, cfg.Notifications.SweepInterval)

	opts := []handlers.Option{handlers.WithMetrics(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))}
	if !cfg.Auth.Enabled {
		log.Warnw("auth_disabled", "scope", "/api/v1")
		opts = append(opts, handlers.WithoutAuth())
	}
	apiHandler := handlers.NewHandler(services, log.Named("http"), opts...)

	// start HTTP server
	srv := &server.Server{}
	runHTTPServer(srv, cfg.Port, apiHandler, log)

	// graceful shutdown
	waitForShutdown(cancel, manager, srv, log)
}

// newRepositories builds the repository set and mirrors configured operators
// into the operators table, revoking any that were removed from config.
func newRepositories(cfg *config.Config, sqlDB *sql.DB, log *logger.Logger) (*repository.Repository, error) {
	api := repository.NewMachineHTTP(cfg.Upstream.APIURL, cfg.Upstream.FetchTimeout, log.Named("upstream"))
	repos := repository.NewRepository(sqlDB, api)
	if err := repos.Auth.ReplaceAll(cfg.Auth.Operators); err != nil {
		return nil, err
	}
	if cfg.Auth.Enabled && len(cfg.Auth.Operators) == 0 {
		log.Warnw("no_operators_configured", "hint", "set auth.operators to allow sign-in")
	}
	return repos, nil
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		log.Infow("http_listening", "port", port)
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, conn service.Connection, srv *server.Server, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// close the push feed first so no reconnect fires during shutdown
	conn.Disconnect()

	// stop background goroutines
	cancel()

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}
}
