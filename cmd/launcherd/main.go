package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pysugar/launcher-accounts/internal/api"
	"github.com/pysugar/launcher-accounts/internal/auth/provider"
	"github.com/pysugar/launcher-accounts/internal/auth/token"
	"github.com/pysugar/launcher-accounts/internal/config"
	"github.com/pysugar/launcher-accounts/internal/db"
	"github.com/pysugar/launcher-accounts/internal/logging"
	"github.com/pysugar/launcher-accounts/internal/profile"
	"github.com/pysugar/launcher-accounts/internal/store"
	"github.com/pysugar/launcher-accounts/internal/version"
)

func main() {
	configPath := flag.String("config", os.Getenv("LAUNCHER_CONFIG"), "path to config.yaml")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if err := logging.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.DataDir).Msg("Failed to create data directory")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.AccountsFile), 0o700); err != nil {
		log.Fatal().Err(err).Msg("Failed to create accounts directory")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize audit log
	database, err := db.InitDB(cfg.EventsDB)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	events := db.NewEventLog(database)
	if cfg.Tokens.EventRetention > 0 {
		if n, err := events.Prune(ctx, time.Now().Add(-cfg.Tokens.EventRetention)); err != nil {
			log.Warn().Err(err).Msg("⚠️ Failed to prune token events")
		} else if n > 0 {
			log.Info().Int64("deleted", n).Msg("🧹 Pruned old token events")
		}
	}

	// Initialize token manager
	refresher := provider.NewOAuthRefresher(provider.Config{
		ClientID:     cfg.OAuth.ClientID,
		ClientSecret: cfg.OAuth.ClientSecret,
		TokenURL:     cfg.OAuth.TokenURL,
		Scopes:       cfg.OAuth.Scopes,
	}, nil)
	tokenManager := token.NewManager(store.Shared(cfg.AccountsFile), refresher,
		token.WithSkew(cfg.Tokens.Skew),
		token.WithRefreshTimeout(cfg.Tokens.RefreshTimeout),
		token.WithEventRecorder(events),
	)
	if _, err := tokenManager.GetAllAccounts(); err != nil {
		// A corrupt file is reported on every call until the user repairs it.
		log.Error().Err(err).Str("path", cfg.AccountsFile).Msg("❌ Account store unreadable")
	}
	if cfg.Tokens.RefreshInterval > 0 {
		tokenManager.StartRefreshLoop(ctx, cfg.Tokens.RefreshInterval, cfg.Tokens.RefreshLookahead)
	}

	handler := api.NewRouter(api.Deps{
		Tokens:           tokenManager,
		Events:           events,
		Profile:          profile.NewClient(tokenManager, cfg.ProfileAPI, nil),
		AdminPassword:    cfg.Server.AdminPassword,
		RefreshLookahead: cfg.Tokens.RefreshLookahead,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("⚠️ Graceful shutdown failed")
		}
	}()

	log.Info().
		Str("version", version.Version).
		Str("addr", srv.Addr).
		Str("accounts", cfg.AccountsFile).
		Msg("🚀 Launcher account service starting")
	if cfg.Server.AdminPassword == "" && cfg.Server.Host != "127.0.0.1" && cfg.Server.Host != "localhost" {
		log.Warn().Msg("⚠️ API is reachable off-host without an admin password")
	}

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server failed")
	}
	log.Info().Msg("👋 Launcher account service stopped")
}
