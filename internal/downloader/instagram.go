package downloader

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/reelgrab/reelgrab/internal/config"
	"github.com/reelgrab/reelgrab/internal/domain"
	"github.com/reelgrab/reelgrab/internal/session"
)

const instagramAPIBase = "https://www.instagram.com"

// InstagramDownloader fetches Instagram posts through the web API using
// a pre-provisioned session credential.
type InstagramDownloader struct {
	client   *http.Client
	apiBase  string
	tempPath string
	sess     *session.Session
	cfg      config.InstagramConfig
	logger   *slog.Logger
}

// NewInstagramDownloader creates an Instagram downloader. sess may be
// nil; requests then go out unauthenticated and private content fails
// with an auth error.
func NewInstagramDownloader(cfg config.InstagramConfig, tempPath string, sess *session.Session, logger *slog.Logger) *InstagramDownloader {
	return &InstagramDownloader{
		client:   &http.Client{Timeout: cfg.Timeout},
		apiBase:  instagramAPIBase,
		tempPath: tempPath,
		sess:     sess,
		cfg:      cfg,
		logger:   logger,
	}
}

// ExtractShortcode pulls the post shortcode out of an Instagram URL.
func ExtractShortcode(url string) (string, error) {
	parts := strings.Split(strings.Trim(url, "/"), "/")
	for i, part := range parts {
		if (part == "p" || part == "reel" || part == "tv") && i+1 < len(parts) {
			code := parts[i+1]
			if idx := strings.IndexByte(code, '?'); idx >= 0 {
				code = code[:idx]
			}
			if code != "" {
				return code, nil
			}
		}
	}
	return "", fmt.Errorf("could not extract shortcode from URL %q", url)
}

// postInfo is the subset of the Instagram web API response we consume.
type postInfo struct {
	Items []struct {
		ID string `json:"id"`
		// pk arrives as a bare 19-digit number; json.Number keeps the
		// full digits instead of rounding through float64.
		PK   json.Number `json:"pk"`
		User struct {
			Username string `json:"username"`
		} `json:"user"`
		Caption *struct {
			Text string `json:"text"`
		} `json:"caption"`
		TakenAt       int64 `json:"taken_at"`
		MediaType     int   `json:"media_type"`
		VideoVersions []struct {
			URL string `json:"url"`
		} `json:"video_versions"`
	} `json:"items"`
}

// Fetch loads the post metadata, rejects non-video posts, and streams
// the mp4 into a temp file.
func (d *InstagramDownloader) Fetch(ctx context.Context, url string) (*Result, error) {
	shortcode, err := ExtractShortcode(url)
	if err != nil {
		return nil, domain.NewDownloadError(domain.PlatformInstagram, url, err)
	}

	info, err := d.fetchPostInfo(ctx, shortcode)
	if err != nil {
		return nil, domain.NewDownloadError(domain.PlatformInstagram, url, err)
	}

	item := info.Items[0]
	// media_type 2 is video; carousels and images are rejected
	if item.MediaType != 2 || len(item.VideoVersions) == 0 {
		return nil, domain.NewDownloadError(domain.PlatformInstagram, url, domain.ErrNotVideo)
	}

	mediaID := item.ID
	if mediaID == "" {
		mediaID = item.PK.String()
	}
	if mediaID == "" {
		mediaID = shortcode
	}
	// Strip the "_userid" suffix Instagram appends to media IDs
	if idx := strings.IndexByte(mediaID, '_'); idx > 0 {
		mediaID = mediaID[:idx]
	}

	tempPath, err := d.downloadVideo(ctx, item.VideoVersions[0].URL)
	if err != nil {
		return nil, domain.NewDownloadError(domain.PlatformInstagram, url, err)
	}

	caption := ""
	if item.Caption != nil {
		caption = item.Caption.Text
	}

	createdAt := time.Now().UTC()
	if item.TakenAt > 0 {
		createdAt = time.Unix(item.TakenAt, 0).UTC()
	}

	return &Result{
		TempPath:      tempPath,
		SuggestedName: mediaID + ".mp4",
		Author:        item.User.Username,
		Description:   caption,
		CreatedAt:     createdAt,
	}, nil
}

func (d *InstagramDownloader) fetchPostInfo(ctx context.Context, shortcode string) (*postInfo, error) {
	infoURL := fmt.Sprintf("%s/p/%s/?__a=1&__d=dis", d.apiBase, shortcode)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, infoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	d.setHeaders(req)
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch post info: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, domain.ErrUpstreamAuth
	case resp.StatusCode == http.StatusNotFound:
		return nil, domain.ErrUpstreamNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var info postInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		// Instagram serves the HTML login wall instead of JSON when the
		// session is missing or expired.
		return nil, domain.ErrUpstreamAuth
	}
	if len(info.Items) == 0 {
		return nil, domain.ErrUpstreamNotFound
	}

	return &info, nil
}

func (d *InstagramDownloader) downloadVideo(ctx context.Context, videoURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, videoURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	d.setHeaders(req)
	req.Header.Set("Accept", "video/mp4,video/*;q=0.9,*/*;q=0.8")

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download video: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("video download status code: %d", resp.StatusCode)
	}

	tempPath := filepath.Join(d.tempPath, uuid.NewString()+".part")
	f, err := os.Create(tempPath)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	written, err := io.Copy(f, resp.Body)
	f.Close()
	if err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("write video: %w", err)
	}
	if written == 0 {
		os.Remove(tempPath)
		return "", fmt.Errorf("downloaded video file is empty")
	}

	return tempPath, nil
}

func (d *InstagramDownloader) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", d.cfg.UserAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("Referer", "https://www.instagram.com/")
	if d.sess != nil {
		req.Header.Set("Cookie", d.sess.CookieHeader())
	}
}
