package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/reelgrab/reelgrab/internal/api"
	"github.com/reelgrab/reelgrab/internal/api/handler"
	"github.com/reelgrab/reelgrab/internal/config"
	"github.com/reelgrab/reelgrab/internal/domain"
	"github.com/reelgrab/reelgrab/internal/downloader"
	"github.com/reelgrab/reelgrab/internal/repository"
	"github.com/reelgrab/reelgrab/internal/service"
	"github.com/reelgrab/reelgrab/internal/session"
	"github.com/reelgrab/reelgrab/internal/store"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("reelgrab %s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("starting reelgrab",
		"version", Version,
		"build_time", BuildTime,
	)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Media store creates its directories on startup
	mediaStore, err := store.New(cfg.Storage, logger)
	if err != nil {
		logger.Error("failed to initialize media store", "error", err)
		os.Exit(1)
	}

	// Instagram session is optional; without it only public posts work
	var sess *session.Session
	if cfg.Instagram.SessionFile != "" {
		sess, err = session.Load(cfg.Instagram.SessionFile, cfg.Instagram.Passphrase)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				logger.Warn("no Instagram session file, private posts will fail",
					"path", cfg.Instagram.SessionFile)
			} else {
				logger.Error("failed to load Instagram session", "error", err)
				os.Exit(1)
			}
		} else {
			logger.Info("Instagram session loaded", "username", sess.Username)
		}
	}

	// Download history is optional; an empty path disables it
	var history *repository.HistoryRepository
	if cfg.History.Path != "" {
		history, err = repository.NewHistoryRepository(cfg.History.Path)
		if err != nil {
			logger.Error("failed to open history database", "error", err)
			os.Exit(1)
		}
		defer history.Close()
	}

	// Platform downloaders
	downloaders := map[domain.Platform]downloader.Downloader{
		domain.PlatformInstagram: downloader.NewInstagramDownloader(cfg.Instagram, cfg.Storage.TempPath, sess, logger),
		domain.PlatformTikTok:    downloader.NewTikTokDownloader(cfg.TikTok, cfg.Storage.TempPath, logger),
	}

	// Dispatcher
	var recorder service.HistoryRecorder
	if history != nil {
		recorder = history
	}
	downloadSvc := service.NewDownloadService(
		downloaders,
		mediaStore,
		recorder,
		cfg.Server.BaseURL,
		cfg.Storage.MaxFiles,
		logger,
	)

	// Handlers
	downloadHandler := handler.NewDownloadHandler(downloadSvc, logger)
	var lister handler.HistoryLister
	var pinger handler.Pinger
	if history != nil {
		lister = history
		pinger = history
	}
	historyHandler := handler.NewHistoryHandler(lister, logger)
	healthHandler := handler.NewHealthHandler(cfg.Storage.MediaPath, pinger)

	// Setup router
	router := api.NewRouter(
		downloadHandler,
		historyHandler,
		healthHandler,
		cfg.Storage.MediaPath,
		cfg.Server.CORSOriginList(),
		logger,
	)

	// Setup HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting HTTP server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
