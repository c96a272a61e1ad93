package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/ugaemi/duel-arena-server/internal/arena"
	"github.com/ugaemi/duel-arena-server/internal/config"
	"github.com/ugaemi/duel-arena-server/internal/handler"
	"github.com/ugaemi/duel-arena-server/internal/httpapi"
	"github.com/ugaemi/duel-arena-server/internal/metrics"
	"github.com/ugaemi/duel-arena-server/internal/room"
	"github.com/ugaemi/duel-arena-server/internal/store"
	"github.com/ugaemi/duel-arena-server/internal/ws"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	setupLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	audit, err := openAuditStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to open audit store", "error", err)
		os.Exit(1)
	}
	defer audit.Close()

	sink := store.NewSink(audit, 0, 0, nil)

	hub := ws.NewHub()
	hub.InputRate = rate.Limit(cfg.InputRate)
	hub.InputBurst = cfg.InputBurst

	rm := room.NewManager(room.Options{
		Game:  cfg.Game,
		Arena: arenaFactory(cfg.Arena),
		Audit: sink,
	})
	router := handler.NewRouter(rm)

	hub.OnMessage = router.HandleMessage
	hub.OnDisconnect = router.HandleDisconnect

	go hub.Run()

	api := httpapi.NewRouter(httpapi.RouterConfig{
		Hub:            hub,
		Rooms:          rm,
		AllowedOrigins: cfg.AllowedOrigins,
	})
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           api,
		ReadHeaderTimeout: 5 * time.Second,
	}

	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		metricsSrv = &http.Server{Addr: cfg.MetricsAddr, Handler: metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go serve(metricsSrv, "metrics")
	}

	go serve(srv, "server")

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}
	if metricsSrv != nil {
		metricsSrv.Shutdown(shutdownCtx)
	}

	rm.Shutdown()
	sink.Close()
	slog.Info("server stopped", "audit_dropped", sink.Dropped())
}

func serve(srv *http.Server, name string) {
	slog.Info(name+" starting", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error(name+" failed", "error", err)
		os.Exit(1)
	}
}

func openAuditStore(ctx context.Context, cfg *config.Config) (store.AuditStore, error) {
	if cfg.DatabaseURL == "" {
		slog.Info("DATABASE_URL not set, anti-cheat audit disabled")
		return store.NopStore{}, nil
	}
	return store.NewPostgresStore(ctx, cfg.DatabaseURL)
}

func arenaFactory(kind string) func() (*arena.Map, error) {
	if kind == config.ArenaRandom {
		return func() (*arena.Map, error) {
			rng := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
			return arena.Generate(rng, arena.DefaultGenerateConfig())
		}
	}
	return func() (*arena.Map, error) { return arena.Default(), nil }
}

func setupLogger(cfg *config.Config) {
	var h slog.Handler
	opts := &slog.HandlerOptions{}

	switch cfg.LogLevel {
	case "debug":
		opts.Level = slog.LevelDebug
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	switch cfg.LogFormat {
	case "json":
		h = slog.NewJSONHandler(os.Stdout, opts)
	default:
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(h))
}
