package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/reelgrab/reelgrab/internal/domain"
)

// HistoryLister is the slice of the history repository the handler needs.
type HistoryLister interface {
	Recent(ctx context.Context, limit int) ([]domain.DownloadEntry, error)
}

// HistoryHandler serves the download history log.
type HistoryHandler struct {
	history HistoryLister
	logger  *slog.Logger
}

// NewHistoryHandler creates a new history handler. history may be nil
// when persistence is disabled.
func NewHistoryHandler(history HistoryLister, logger *slog.Logger) *HistoryHandler {
	return &HistoryHandler{
		history: history,
		logger:  logger,
	}
}

// HistoryEntryResponse represents one download attempt.
type HistoryEntryResponse struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Platform  string    `json:"platform"`
	Author    string    `json:"author,omitempty"`
	Filename  string    `json:"filename,omitempty"`
	Status    string    `json:"status"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// HistoryResponse contains the recent download attempts, newest first.
type HistoryResponse struct {
	Downloads []HistoryEntryResponse `json:"downloads"`
}

// List handles GET /api/downloads
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusNotFound, "download history is disabled")
		return
	}

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}

	entries, err := h.history.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error("history query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list downloads")
		return
	}

	resp := HistoryResponse{
		Downloads: make([]HistoryEntryResponse, 0, len(entries)),
	}
	for _, e := range entries {
		resp.Downloads = append(resp.Downloads, HistoryEntryResponse{
			ID:        e.ID,
			URL:       e.URL,
			Platform:  e.Platform,
			Author:    e.Author,
			Filename:  e.Filename,
			Status:    e.Status,
			Detail:    e.Detail,
			CreatedAt: e.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}
