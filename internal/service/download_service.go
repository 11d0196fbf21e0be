// Package service wires URL classification, the platform downloaders,
// the media store and the history log into the download dispatch flow.
package service

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"github.com/reelgrab/reelgrab/internal/domain"
	"github.com/reelgrab/reelgrab/internal/downloader"
	"github.com/reelgrab/reelgrab/internal/store"
)

// HistoryRecorder is the slice of the history repository the dispatcher
// needs. Nil-able: history is optional.
type HistoryRecorder interface {
	Insert(ctx context.Context, entry *domain.DownloadEntry) error
}

// DownloadService dispatches a post URL to the right platform
// downloader and lands the result in the media store.
type DownloadService struct {
	downloaders map[domain.Platform]downloader.Downloader
	store       *store.MediaStore
	history     HistoryRecorder
	baseURL     string
	maxFiles    int
	logger      *slog.Logger
}

// NewDownloadService creates the dispatcher. history may be nil.
func NewDownloadService(
	downloaders map[domain.Platform]downloader.Downloader,
	mediaStore *store.MediaStore,
	history HistoryRecorder,
	baseURL string,
	maxFiles int,
	logger *slog.Logger,
) *DownloadService {
	return &DownloadService{
		downloaders: downloaders,
		store:       mediaStore,
		history:     history,
		baseURL:     baseURL,
		maxFiles:    maxFiles,
		logger:      logger,
	}
}

// Fetch classifies the URL, runs the platform downloader once (no
// retries), stores the video, prunes the media directory, and returns
// the normalized record. Every attempt lands in the history log.
func (s *DownloadService) Fetch(ctx context.Context, rawURL string) (*domain.MediaRecord, error) {
	platform := domain.Classify(rawURL)
	if platform == domain.PlatformUnknown {
		s.record(ctx, rawURL, platform, nil, domain.ErrUnsupportedURL)
		return nil, domain.ErrUnsupportedURL
	}

	dl, ok := s.downloaders[platform]
	if !ok {
		s.record(ctx, rawURL, platform, nil, domain.ErrUnsupportedURL)
		return nil, domain.ErrUnsupportedURL
	}

	// Idempotent fast path: a post already in the archive is served
	// from disk instead of being fetched again.
	if meta, path, ok := s.store.FindBySource(rawURL); ok {
		record := &domain.MediaRecord{
			Platform:    platform,
			Author:      meta.Author,
			Description: meta.Description,
			CreatedAt:   meta.CreatedAt,
			Filename:    meta.Filename,
			FilePath:    path,
			PublicURL:   s.publicURL(meta.Filename),
		}
		s.record(ctx, rawURL, platform, &downloader.Result{
			Author:        meta.Author,
			SuggestedName: meta.Filename,
		}, nil)
		s.logger.Info("serving archived copy", "platform", platform, "file", meta.Filename)
		return record, nil
	}

	result, err := dl.Fetch(ctx, rawURL)
	if err != nil {
		s.record(ctx, rawURL, platform, nil, err)
		return nil, err
	}

	finalPath, err := s.store.Put(result.TempPath, result.SuggestedName, domain.SidecarMetadata{
		Platform:    platform.String(),
		SourceURL:   rawURL,
		Author:      result.Author,
		Description: result.Description,
		CreatedAt:   result.CreatedAt,
		ArchivedAt:  time.Now().UTC(),
		Filename:    result.SuggestedName,
	})
	if err != nil {
		s.record(ctx, rawURL, platform, result, err)
		return nil, err
	}

	// Retention runs synchronously after every successful store.
	s.store.Prune(s.maxFiles)

	record := &domain.MediaRecord{
		Platform:    platform,
		Author:      result.Author,
		Description: result.Description,
		CreatedAt:   result.CreatedAt,
		Filename:    result.SuggestedName,
		FilePath:    finalPath,
		PublicURL:   s.publicURL(result.SuggestedName),
	}

	s.record(ctx, rawURL, platform, result, nil)
	s.logger.Info("download completed",
		"platform", platform,
		"author", record.Author,
		"file", record.Filename,
	)

	return record, nil
}

// publicURL joins the static prefix onto the configured base URL.
func (s *DownloadService) publicURL(filename string) string {
	joined, err := url.JoinPath(s.baseURL, "static", filename)
	if err != nil {
		return s.baseURL + "/static/" + filename
	}
	return joined
}

// record writes a history row; failures are logged and swallowed so
// history never breaks a download.
func (s *DownloadService) record(ctx context.Context, rawURL string, platform domain.Platform, result *downloader.Result, fetchErr error) {
	if s.history == nil {
		return
	}

	entry := &domain.DownloadEntry{
		URL:      rawURL,
		Platform: platform.String(),
		Status:   domain.DownloadStatusCompleted,
	}
	if result != nil {
		entry.Author = result.Author
		entry.Filename = result.SuggestedName
	}
	if fetchErr != nil {
		entry.Status = domain.DownloadStatusFailed
		entry.Detail = fetchErr.Error()
	}

	if err := s.history.Insert(ctx, entry); err != nil {
		s.logger.Warn("history insert failed", "error", err)
	}
}
