package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/reelgrab/reelgrab/internal/domain"
)

// Fetcher is the slice of the download service the handler needs.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*domain.MediaRecord, error)
}

// DownloadHandler handles download-related HTTP requests.
type DownloadHandler struct {
	svc    Fetcher
	logger *slog.Logger
}

// NewDownloadHandler creates a new download handler.
func NewDownloadHandler(svc Fetcher, logger *slog.Logger) *DownloadHandler {
	return &DownloadHandler{
		svc:    svc,
		logger: logger,
	}
}

// DownloadRequest is the JSON request body for a download.
type DownloadRequest struct {
	URL string `json:"url"`
}

// DownloadResponse is the JSON response after a successful download.
type DownloadResponse struct {
	Author      string `json:"author"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at"`
	VideoURL    string `json:"video_url"`
}

// Download handles POST /api/download/
func (h *DownloadHandler) Download(w http.ResponseWriter, r *http.Request) {
	var req DownloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusUnprocessableEntity, "url is required")
		return
	}

	record, err := h.svc.Fetch(r.Context(), req.URL)
	if err != nil {
		h.writeFetchError(w, req.URL, err)
		return
	}

	writeJSON(w, http.StatusOK, DownloadResponse{
		Author:      record.Author,
		Description: record.Description,
		CreatedAt:   record.CreatedAt.UTC().Format(time.RFC3339),
		VideoURL:    record.PublicURL,
	})
}

// writeFetchError maps dispatcher errors onto HTTP statuses.
func (h *DownloadHandler) writeFetchError(w http.ResponseWriter, url string, err error) {
	switch {
	case errors.Is(err, domain.ErrUnsupportedURL):
		writeError(w, http.StatusBadRequest, "unsupported URL: only Instagram and TikTok posts are accepted")
	case errors.Is(err, domain.ErrNotVideo):
		writeError(w, http.StatusBadRequest, "post does not contain a video")
	case errors.Is(err, domain.ErrUpstreamAuth):
		writeError(w, http.StatusForbidden, "post is private or requires login")
	case errors.Is(err, domain.ErrUpstreamNotFound):
		writeError(w, http.StatusNotFound, "post not found")
	default:
		h.logger.Error("download failed", "url", url, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"detail": message})
}
