// Package api assembles the HTTP surface of the service.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/reelgrab/reelgrab/internal/api/handler"
	mw "github.com/reelgrab/reelgrab/internal/api/middleware"
)

// NewRouter creates the HTTP router with all routes configured.
// mediaPath is served read-only under /static/.
func NewRouter(
	downloadHandler *handler.DownloadHandler,
	historyHandler *handler.HistoryHandler,
	healthHandler *handler.HealthHandler,
	mediaPath string,
	corsOrigins []string,
	logger *slog.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CleanPath)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.Logger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Minute))
	r.Use(mw.CORS(corsOrigins))

	// Health endpoints
	r.Get("/health", healthHandler.Live)
	r.Get("/ready", healthHandler.Ready)

	// API
	r.Route("/api", func(r chi.Router) {
		r.Post("/download/", downloadHandler.Download)
		r.Post("/download", downloadHandler.Download)
		r.Get("/downloads", historyHandler.List)
		r.Get("/stats", healthHandler.Stats)
	})

	// Archived videos
	fileServer := http.StripPrefix("/static/", http.FileServer(http.Dir(mediaPath)))
	r.Get("/static/*", fileServer.ServeHTTP)

	return r
}
