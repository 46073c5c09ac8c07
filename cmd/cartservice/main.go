package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"github.com/boutique/cartservice/internal/api"
	"github.com/boutique/cartservice/internal/bootstrap"
	"github.com/boutique/cartservice/internal/config"
	"github.com/boutique/cartservice/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src := config.FromEnv()

	// Initialize logger
	log := logger.New(src.Get(config.KeyEnv))
	slog.SetDefault(log)

	rt, err := bootstrap.Start(ctx, src, bootstrap.WithLogger(log))
	if err != nil {
		log.Error("Startup failed", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:    ":" + rt.Config.Port,
		Handler: api.NewServer(rt.Store, rt.Telemetry, log).Routes(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("HTTP shutdown failed", "error", err)
		}
	}()

	log.Info("Starting server", "port", rt.Config.Port, "backend", rt.BackendKind.String())

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("Server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rt.Shutdown(shutdownCtx); err != nil {
		log.Warn("Shutdown incomplete", "error", err)
	}
}
