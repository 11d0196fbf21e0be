package downloader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/reelgrab/reelgrab/internal/domain"
)

func TestExtractTikTokVideoID(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"https://www.tiktok.com/@someuser/video/7301234567890123456", "7301234567890123456"},
		{"https://m.tiktok.com/v/7301234567890123456/", "7301234567890123456"},
	}

	for _, c := range cases {
		if got := ExtractTikTokVideoID(c.url); got != c.want {
			t.Errorf("ExtractTikTokVideoID(%q) = %q, want %q", c.url, got, c.want)
		}
	}
}

func TestExtractTikTokVideoID_ShortLink(t *testing.T) {
	// vm/vt short links have no numeric ID; the sanitized fallback must
	// still be stable and filename-safe.
	got := ExtractTikTokVideoID("https://vm.tiktok.com/ZMabcDEF/")
	if got == "" {
		t.Fatal("fallback ID should not be empty")
	}
	for _, r := range got {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			t.Errorf("fallback ID %q contains unsafe character %q", got, r)
		}
	}
	if len(got) > 32 {
		t.Errorf("fallback ID too long: %d", len(got))
	}
}

func TestClassifyYtdlpError(t *testing.T) {
	base := fmt.Errorf("exit status 1")

	cases := []struct {
		stderr string
		want   error
	}{
		{"ERROR: This video is private", domain.ErrUpstreamAuth},
		{"ERROR: Log in for access", domain.ErrUpstreamAuth},
		{"ERROR: HTTP Error 403: Forbidden", domain.ErrUpstreamAuth},
		{"ERROR: Unable to find video", domain.ErrUpstreamNotFound},
		{"ERROR: HTTP Error 404: Not Found", domain.ErrUpstreamNotFound},
		{"ERROR: Video unavailable", domain.ErrUpstreamNotFound},
	}

	for _, c := range cases {
		got := classifyYtdlpError(base, c.stderr)
		if !errors.Is(got, c.want) {
			t.Errorf("classifyYtdlpError(%q) = %v, want %v", c.stderr, got, c.want)
		}
	}
}

func TestClassifyYtdlpError_Generic(t *testing.T) {
	base := fmt.Errorf("exit status 1")

	err := classifyYtdlpError(base, "ERROR: something exploded")
	if errors.Is(err, domain.ErrUpstreamAuth) || errors.Is(err, domain.ErrUpstreamNotFound) {
		t.Errorf("generic stderr should not map to a specific domain error: %v", err)
	}
	if err.Error() == "" {
		t.Error("generic error should carry the stderr message")
	}

	// Empty stderr falls back to the exec error
	err = classifyYtdlpError(base, "")
	if !errors.Is(err, base) {
		t.Errorf("empty stderr should wrap the exec error, got %v", err)
	}
}

func TestFindOutputs(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "video.mp4")
	info := filepath.Join(dir, "video.info.json")
	if err := os.WriteFile(video, []byte("v"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(info, []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}

	gotVideo, gotInfo, err := findOutputs(dir)
	if err != nil {
		t.Fatalf("findOutputs failed: %v", err)
	}
	if gotVideo != video {
		t.Errorf("video = %q, want %q", gotVideo, video)
	}
	if gotInfo != info {
		t.Errorf("info = %q, want %q", gotInfo, info)
	}
}

func TestFindOutputs_NoVideo(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "video.info.json"), []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, _, err := findOutputs(dir); err == nil {
		t.Error("findOutputs should fail when no video file exists")
	}
}

func TestParseInfoJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "video.info.json")
	content := `{"id":"123","uploader":"carol","description":"dance","timestamp":1700000000}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	info, err := parseInfoJSON(path)
	if err != nil {
		t.Fatalf("parseInfoJSON failed: %v", err)
	}
	if info.ID != "123" || info.Uploader != "carol" || info.Timestamp != 1700000000 {
		t.Errorf("info = %+v", info)
	}
}

func TestParseInfoJSON_Empty(t *testing.T) {
	if _, err := parseInfoJSON(""); err == nil {
		t.Error("parseInfoJSON should fail for empty path")
	}
}
