package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	configloader "github.com/foxseedlab/tablesession/external/config"
	discordimpl "github.com/foxseedlab/tablesession/external/discord"
	"github.com/foxseedlab/tablesession/external/httpapi"
	identityimpl "github.com/foxseedlab/tablesession/external/identity"
	repositoryimpl "github.com/foxseedlab/tablesession/external/repository"
	webhookimpl "github.com/foxseedlab/tablesession/external/webhook"
	"github.com/foxseedlab/tablesession/internal/broadcast"
	"github.com/foxseedlab/tablesession/internal/config"
	"github.com/foxseedlab/tablesession/internal/repository"
	"github.com/foxseedlab/tablesession/internal/session"
	"github.com/samber/do/v2"
)

func main() {
	slog.Info("startup: loading configuration")
	cfg := mustLoadConfig()
	initLogger(cfg)
	slog.Info("startup: configuration loaded", "env", cfg.Env, "database_driver", cfg.DatabaseDriver, "discord", cfg.DiscordEnabled())

	slog.Info("startup: building dependency graph")
	injector := setupDI(cfg)

	run(cfg, injector)
}

func mustLoadConfig() *config.Config {
	cfg, err := configloader.Load()
	if err != nil {
		slog.Error("config validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

func initLogger(cfg *config.Config) {
	logLevel := slog.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))
}

func setupDI(cfg *config.Config) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	repositoryimpl.RegisterDI(injector)
	discordimpl.RegisterDI(injector)
	webhookimpl.RegisterDI(injector)
	identityimpl.RegisterDI(injector)
	broadcast.RegisterDI(injector)
	session.RegisterDI(injector)
	httpapi.RegisterDI(injector)

	return injector
}

func run(cfg *config.Config, injector do.Injector) {
	repo, err := do.Invoke[repository.Repository](injector)
	if err != nil {
		slog.Error("failed to open repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()

	srv, err := do.Invoke[*http.Server](injector)
	if err != nil {
		slog.Error("failed to build http server", "error", err)
		os.Exit(1)
	}

	done := make(chan struct{})
	go func() {
		slog.Info("startup: http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", "error", err)
		}
		close(done)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		slog.Info("shutting down")
	case <-done:
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("http server shutdown failed", "error", err)
	}
	<-done
}
