// Package store implements the bounded local media cache. Downloaded
// videos land in a single flat directory; after every write the store
// prunes the directory back down to the configured retention count,
// deleting oldest-by-mtime files first.
package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/reelgrab/reelgrab/internal/config"
	"github.com/reelgrab/reelgrab/internal/domain"
)

// MediaStore owns the media directory. A single mutex guards store and
// prune so that concurrent requests cannot observe or race on a
// half-pruned directory; the pair runs as one critical section.
type MediaStore struct {
	mediaPath string
	tempPath  string
	mu        sync.Mutex
	logger    *slog.Logger
}

// New creates a MediaStore over the configured directories, creating
// them if needed.
func New(cfg config.StorageConfig, logger *slog.Logger) (*MediaStore, error) {
	if err := os.MkdirAll(cfg.MediaPath, 0755); err != nil {
		return nil, fmt.Errorf("create media directory: %w", err)
	}
	if err := os.MkdirAll(cfg.TempPath, 0755); err != nil {
		return nil, fmt.Errorf("create temp directory: %w", err)
	}

	return &MediaStore{
		mediaPath: cfg.MediaPath,
		tempPath:  cfg.TempPath,
		logger:    logger,
	}, nil
}

// MediaPath returns the directory the store manages.
func (s *MediaStore) MediaPath() string {
	return s.mediaPath
}

// TempPath returns the scratch directory for in-flight downloads.
func (s *MediaStore) TempPath() string {
	return s.tempPath
}

// Lookup returns the stored path for filename if the file already
// exists. Used as the idempotent fast path when the same post is
// requested twice.
func (s *MediaStore) Lookup(filename string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lookupLocked(filename)
}

func (s *MediaStore) lookupLocked(filename string) (string, bool) {
	path := filepath.Join(s.mediaPath, filename)
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}

// FindBySource returns the archived video and its sidecar metadata for
// a source URL, if both survived pruning. Sidecars that fail to parse
// are skipped.
func (s *MediaStore) FindBySource(sourceURL string) (domain.SidecarMetadata, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.mediaPath)
	if err != nil {
		return domain.SidecarMetadata{}, "", false
	}

	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.mediaPath, e.Name()))
		if err != nil {
			continue
		}
		var meta domain.SidecarMetadata
		if err := json.Unmarshal(data, &meta); err != nil || meta.SourceURL != sourceURL {
			continue
		}
		if path, ok := s.lookupLocked(meta.Filename); ok {
			return meta, path, true
		}
	}
	return domain.SidecarMetadata{}, "", false
}

// Put moves a downloaded temp file into the media directory under
// finalName, writes the metadata sidecar, and returns the final path.
// The rename keeps the publish atomic: readers of the media directory
// never see a partially written video.
func (s *MediaStore) Put(tempPath, finalName string, meta domain.SidecarMetadata) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	finalPath := filepath.Join(s.mediaPath, finalName)

	if err := os.Rename(tempPath, finalPath); err != nil {
		// Cross-device rename falls back to copy
		if copyErr := copyFile(tempPath, finalPath); copyErr != nil {
			return "", fmt.Errorf("move video to final location: %w", err)
		}
		os.Remove(tempPath)
	}

	sidecarPath := strings.TrimSuffix(finalPath, filepath.Ext(finalPath)) + ".json"
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}
	if err := os.WriteFile(sidecarPath, data, 0644); err != nil {
		return "", fmt.Errorf("write metadata: %w", err)
	}

	return finalPath, nil
}

// Prune deletes media files beyond the maxFiles most recent ones,
// together with their sidecars. Ordering is mtime descending, filename
// descending as the deterministic tie-break. Per-file deletion failures
// are logged and skipped. Returns the number of videos deleted.
func (s *MediaStore) Prune(maxFiles int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.pruneLocked(maxFiles)
}

type mediaFile struct {
	name    string
	modTime int64
}

func (s *MediaStore) pruneLocked(maxFiles int) int {
	entries, err := os.ReadDir(s.mediaPath)
	if err != nil {
		s.logger.Error("prune: read media directory", "error", err)
		return 0
	}

	var files []mediaFile
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".mp4" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, mediaFile{name: e.Name(), modTime: info.ModTime().UnixNano()})
	}

	if len(files) <= maxFiles {
		return 0
	}

	// Newest first; equal mtimes fall back to filename so repeated
	// prunes over the same directory always agree on the survivors.
	sort.Slice(files, func(i, j int) bool {
		if files[i].modTime != files[j].modTime {
			return files[i].modTime > files[j].modTime
		}
		return files[i].name > files[j].name
	})

	deleted := 0
	for _, f := range files[maxFiles:] {
		path := filepath.Join(s.mediaPath, f.name)
		if err := os.Remove(path); err != nil {
			s.logger.Warn("prune: delete file failed", "file", f.name, "error", err)
			continue
		}
		deleted++

		// Best-effort sidecar cleanup
		base := strings.TrimSuffix(path, filepath.Ext(path))
		os.Remove(base + ".json")
		os.Remove(base + ".txt")
	}

	if deleted > 0 {
		s.logger.Info("media pruning completed", "deleted", deleted, "max_files", maxFiles)
	}
	return deleted
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0644)
}
