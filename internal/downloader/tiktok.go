package downloader

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/reelgrab/reelgrab/internal/config"
	"github.com/reelgrab/reelgrab/internal/domain"
)

var tiktokVideoIDPattern = regexp.MustCompile(`/video/(\d+)`)

// TikTokDownloader fetches TikTok videos by shelling out to yt-dlp.
type TikTokDownloader struct {
	binPath  string
	tempPath string
	timeout  time.Duration
	logger   *slog.Logger
}

// NewTikTokDownloader creates a TikTok downloader.
func NewTikTokDownloader(cfg config.TikTokConfig, tempPath string, logger *slog.Logger) *TikTokDownloader {
	return &TikTokDownloader{
		binPath:  cfg.BinPath,
		tempPath: tempPath,
		timeout:  cfg.Timeout,
		logger:   logger,
	}
}

// ExtractTikTokVideoID derives a stable identifier from common TikTok
// URL shapes. Short links (vm/vt) carry no numeric ID, so those fall
// back to the sanitized URL tail.
func ExtractTikTokVideoID(url string) string {
	if m := tiktokVideoIDPattern.FindStringSubmatch(url); m != nil {
		return m[1]
	}
	cleaned := regexp.MustCompile(`[^A-Za-z0-9]+`).ReplaceAllString(url, "")
	if len(cleaned) > 32 {
		cleaned = cleaned[len(cleaned)-32:]
	}
	return cleaned
}

// ytdlpInfo is the subset of yt-dlp's info JSON we consume.
type ytdlpInfo struct {
	ID          string `json:"id"`
	Uploader    string `json:"uploader"`
	UploaderID  string `json:"uploader_id"`
	Description string `json:"description"`
	Title       string `json:"title"`
	Timestamp   int64  `json:"timestamp"`
}

// Fetch runs yt-dlp into an isolated temp dir, parses the info JSON for
// metadata, and moves the video out before the dir is cleaned up.
func (d *TikTokDownloader) Fetch(ctx context.Context, url string) (*Result, error) {
	workDir, err := os.MkdirTemp(d.tempPath, "ytdlp-")
	if err != nil {
		return nil, domain.NewDownloadError(domain.PlatformTikTok, url, fmt.Errorf("create work dir: %w", err))
	}
	defer os.RemoveAll(workDir)

	runCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	outTpl := filepath.Join(workDir, "video.%(ext)s")
	cmd := exec.CommandContext(
		runCtx, d.binPath,
		"-f", "best[ext=mp4]/best",
		"--no-playlist",
		"-q", "--no-warnings", "--no-progress",
		"--write-info-json",
		"-o", outTpl,
		url,
	)

	var stderr strings.Builder
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, domain.NewDownloadError(domain.PlatformTikTok, url,
			classifyYtdlpError(err, stderr.String()))
	}

	videoPath, infoPath, err := findOutputs(workDir)
	if err != nil {
		return nil, domain.NewDownloadError(domain.PlatformTikTok, url, err)
	}

	info, err := parseInfoJSON(infoPath)
	if err != nil {
		d.logger.Warn("yt-dlp info JSON unreadable, metadata will be sparse", "error", err)
		info = &ytdlpInfo{}
	}

	// Move the video out of the work dir before the deferred cleanup
	tempPath := filepath.Join(d.tempPath, uuid.NewString()+filepath.Ext(videoPath))
	if err := os.Rename(videoPath, tempPath); err != nil {
		return nil, domain.NewDownloadError(domain.PlatformTikTok, url, fmt.Errorf("move video: %w", err))
	}

	videoID := info.ID
	if videoID == "" {
		videoID = ExtractTikTokVideoID(url)
	}

	author := info.Uploader
	if author == "" {
		author = info.UploaderID
	}

	description := info.Description
	if description == "" {
		description = info.Title
	}

	createdAt := time.Now().UTC()
	if info.Timestamp > 0 {
		createdAt = time.Unix(info.Timestamp, 0).UTC()
	}

	return &Result{
		TempPath:      tempPath,
		SuggestedName: videoID + ".mp4",
		Author:        author,
		Description:   description,
		CreatedAt:     createdAt,
	}, nil
}

// classifyYtdlpError maps yt-dlp failures onto the domain error
// taxonomy based on its stderr output.
func classifyYtdlpError(runErr error, stderr string) error {
	lowered := strings.ToLower(stderr)

	switch {
	case strings.Contains(lowered, "private"),
		strings.Contains(lowered, "login"),
		strings.Contains(lowered, "log in"),
		strings.Contains(lowered, "403"):
		return domain.ErrUpstreamAuth
	case strings.Contains(lowered, "not found"),
		strings.Contains(lowered, "404"),
		strings.Contains(lowered, "unable to find"),
		strings.Contains(lowered, "video unavailable"):
		return domain.ErrUpstreamNotFound
	}

	msg := strings.TrimSpace(stderr)
	if msg == "" {
		return fmt.Errorf("yt-dlp failed: %w", runErr)
	}
	return fmt.Errorf("yt-dlp failed: %s", msg)
}

func findOutputs(dir string) (videoPath, infoPath string, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", "", fmt.Errorf("read work dir: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if strings.HasSuffix(e.Name(), ".info.json") {
			infoPath = path
		} else {
			videoPath = path
		}
	}

	if videoPath == "" {
		return "", "", fmt.Errorf("yt-dlp ran but produced no video file")
	}
	return videoPath, infoPath, nil
}

func parseInfoJSON(path string) (*ytdlpInfo, error) {
	if path == "" {
		return nil, fmt.Errorf("no info JSON written")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var info ytdlpInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, err
	}
	return &info, nil
}
