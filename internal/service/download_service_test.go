package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/reelgrab/reelgrab/internal/config"
	"github.com/reelgrab/reelgrab/internal/domain"
	"github.com/reelgrab/reelgrab/internal/downloader"
	"github.com/reelgrab/reelgrab/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeDownloader is a canned-response Downloader for dispatcher tests.
type fakeDownloader struct {
	result  *downloader.Result
	err     error
	gotURL  string
	tempDir string
	calls   int
}

func (f *fakeDownloader) Fetch(ctx context.Context, url string) (*downloader.Result, error) {
	f.gotURL = url
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	// Materialize a fresh temp file per call, as a real downloader would.
	temp := filepath.Join(f.tempDir, "dl.part")
	if err := os.WriteFile(temp, []byte("video"), 0644); err != nil {
		return nil, err
	}
	r := *f.result
	r.TempPath = temp
	return &r, nil
}

// fakeHistory records inserted entries in memory.
type fakeHistory struct {
	entries []domain.DownloadEntry
	err     error
}

func (f *fakeHistory) Insert(ctx context.Context, entry *domain.DownloadEntry) error {
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, *entry)
	return nil
}

func newTestService(t *testing.T, dl downloader.Downloader, history HistoryRecorder) (*DownloadService, *store.MediaStore) {
	t.Helper()
	dir := t.TempDir()
	st, err := store.New(config.StorageConfig{
		MediaPath: filepath.Join(dir, "media"),
		TempPath:  filepath.Join(dir, "tmp"),
	}, testLogger())
	if err != nil {
		t.Fatalf("store.New failed: %v", err)
	}

	downloaders := map[domain.Platform]downloader.Downloader{}
	if dl != nil {
		downloaders[domain.PlatformInstagram] = dl
		downloaders[domain.PlatformTikTok] = dl
	}

	svc := NewDownloadService(downloaders, st, history, "http://localhost:8000", 10, testLogger())
	return svc, st
}

func TestFetch_Success(t *testing.T) {
	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	fake := &fakeDownloader{
		tempDir: t.TempDir(),
		result: &downloader.Result{
			SuggestedName: "v1.mp4",
			Author:        "bob",
			Description:   "hi",
			CreatedAt:     created,
		},
	}
	history := &fakeHistory{}
	svc, st := newTestService(t, fake, history)

	rec, err := svc.Fetch(context.Background(), "https://www.instagram.com/reel/ABC123/")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if rec.Author != "bob" || rec.Description != "hi" {
		t.Errorf("record = %+v", rec)
	}
	if !rec.CreatedAt.Equal(created) {
		t.Errorf("created_at = %v, want %v", rec.CreatedAt, created)
	}
	if rec.PublicURL != "http://localhost:8000/static/v1.mp4" {
		t.Errorf("public URL = %q", rec.PublicURL)
	}
	if rec.Platform != domain.PlatformInstagram {
		t.Errorf("platform = %s", rec.Platform)
	}

	// Video landed in the media directory
	if _, ok := st.Lookup("v1.mp4"); !ok {
		t.Error("video should be stored under its suggested name")
	}

	// History row for the success
	if len(history.entries) != 1 {
		t.Fatalf("history has %d entries, want 1", len(history.entries))
	}
	if history.entries[0].Status != domain.DownloadStatusCompleted {
		t.Errorf("history status = %q", history.entries[0].Status)
	}
}

func TestFetch_UnsupportedURL(t *testing.T) {
	history := &fakeHistory{}
	svc, _ := newTestService(t, nil, history)

	_, err := svc.Fetch(context.Background(), "not-a-url")
	if !errors.Is(err, domain.ErrUnsupportedURL) {
		t.Errorf("error = %v, want ErrUnsupportedURL", err)
	}

	if len(history.entries) != 1 || history.entries[0].Status != domain.DownloadStatusFailed {
		t.Errorf("unsupported URL should record a failed history entry: %+v", history.entries)
	}
}

func TestFetch_DownloaderErrorPropagates(t *testing.T) {
	fake := &fakeDownloader{
		tempDir: t.TempDir(),
		err:     domain.NewDownloadError(domain.PlatformInstagram, "u", domain.ErrUpstreamAuth),
	}
	history := &fakeHistory{}
	svc, _ := newTestService(t, fake, history)

	_, err := svc.Fetch(context.Background(), "https://www.instagram.com/p/PRIV/")
	if !errors.Is(err, domain.ErrUpstreamAuth) {
		t.Errorf("error = %v, want ErrUpstreamAuth", err)
	}

	if len(history.entries) != 1 {
		t.Fatalf("history has %d entries, want 1", len(history.entries))
	}
	if history.entries[0].Status != domain.DownloadStatusFailed || history.entries[0].Detail == "" {
		t.Errorf("failed entry = %+v", history.entries[0])
	}
}

func TestFetch_PrunesAfterStore(t *testing.T) {
	fake := &fakeDownloader{
		tempDir: t.TempDir(),
		result: &downloader.Result{
			Author:    "bob",
			CreatedAt: time.Now(),
		},
	}
	svc, st := newTestService(t, fake, nil)
	svc.maxFiles = 2

	for i := 0; i < 4; i++ {
		fake.result.SuggestedName = string(rune('a'+i)) + ".mp4"
		url := fmt.Sprintf("https://www.instagram.com/reel/ABC%d/", i)
		if _, err := svc.Fetch(context.Background(), url); err != nil {
			t.Fatalf("Fetch %d failed: %v", i, err)
		}
		// Spread mtimes so retention ordering is unambiguous
		path, _ := st.Lookup(fake.result.SuggestedName)
		mt := time.Now().Add(time.Duration(i) * time.Second)
		os.Chtimes(path, mt, mt)
	}

	count := 0
	entries, _ := os.ReadDir(st.MediaPath())
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".mp4" {
			count++
		}
	}
	if count != 2 {
		t.Errorf("media dir has %d videos after fetches, want 2", count)
	}
}

func TestFetch_RepeatServesArchivedCopy(t *testing.T) {
	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	fake := &fakeDownloader{
		tempDir: t.TempDir(),
		result: &downloader.Result{
			SuggestedName: "v1.mp4",
			Author:        "bob",
			Description:   "hi",
			CreatedAt:     created,
		},
	}
	history := &fakeHistory{}
	svc, _ := newTestService(t, fake, history)

	url := "https://www.instagram.com/reel/ABC123/"
	first, err := svc.Fetch(context.Background(), url)
	if err != nil {
		t.Fatalf("first Fetch failed: %v", err)
	}

	second, err := svc.Fetch(context.Background(), url)
	if err != nil {
		t.Fatalf("second Fetch failed: %v", err)
	}

	if fake.calls != 1 {
		t.Errorf("downloader ran %d times, want 1", fake.calls)
	}
	if second.Author != "bob" || second.Description != "hi" {
		t.Errorf("archived record = %+v", second)
	}
	if !second.CreatedAt.Equal(created) {
		t.Errorf("archived created_at = %v, want %v", second.CreatedAt, created)
	}
	if second.PublicURL != first.PublicURL || second.FilePath != first.FilePath {
		t.Errorf("archived copy should point at the same file: %+v vs %+v", second, first)
	}

	// Both attempts land in the history log
	if len(history.entries) != 2 {
		t.Fatalf("history has %d entries, want 2", len(history.entries))
	}
	if history.entries[1].Status != domain.DownloadStatusCompleted {
		t.Errorf("archived hit status = %q", history.entries[1].Status)
	}
}

func TestFetch_RedownloadsAfterPruneEvictsFile(t *testing.T) {
	fake := &fakeDownloader{
		tempDir: t.TempDir(),
		result: &downloader.Result{
			SuggestedName: "v1.mp4",
			Author:        "bob",
			CreatedAt:     time.Now(),
		},
	}
	svc, st := newTestService(t, fake, nil)

	url := "https://www.instagram.com/reel/ABC123/"
	if _, err := svc.Fetch(context.Background(), url); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	// Simulate eviction: the video is gone but a sidecar could linger
	path, _ := st.Lookup("v1.mp4")
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Fetch(context.Background(), url); err != nil {
		t.Fatalf("Fetch after eviction failed: %v", err)
	}
	if fake.calls != 2 {
		t.Errorf("downloader ran %d times, want 2 after eviction", fake.calls)
	}
}

func TestFetch_NilHistoryIsFine(t *testing.T) {
	fake := &fakeDownloader{
		tempDir: t.TempDir(),
		result: &downloader.Result{
			SuggestedName: "v.mp4",
			Author:        "bob",
			CreatedAt:     time.Now(),
		},
	}
	svc, _ := newTestService(t, fake, nil)

	if _, err := svc.Fetch(context.Background(), "https://vm.tiktok.com/ZMabc/"); err != nil {
		t.Fatalf("Fetch with nil history failed: %v", err)
	}
}

func TestFetch_HistoryFailureDoesNotFailDownload(t *testing.T) {
	fake := &fakeDownloader{
		tempDir: t.TempDir(),
		result: &downloader.Result{
			SuggestedName: "v.mp4",
			Author:        "bob",
			CreatedAt:     time.Now(),
		},
	}
	history := &fakeHistory{err: errors.New("db locked")}
	svc, _ := newTestService(t, fake, history)

	if _, err := svc.Fetch(context.Background(), "https://www.instagram.com/p/ABC/"); err != nil {
		t.Fatalf("history failure should not fail the download: %v", err)
	}
}
