package domain

import (
	"errors"
	"testing"
)

func TestClassify_Instagram(t *testing.T) {
	urls := []string{
		"https://www.instagram.com/p/ABC123/",
		"https://instagram.com/reel/xYz-_9/",
		"https://www.instagram.com/tv/Qwerty123/",
		"http://www.instagram.com/reel/ABC123",
		"https://www.instagram.com/reel/ABC123/?igsh=xyz",
		"HTTPS://WWW.INSTAGRAM.COM/REEL/ABC123/",
	}

	for _, u := range urls {
		if got := Classify(u); got != PlatformInstagram {
			t.Errorf("Classify(%q) = %s, want instagram", u, got)
		}
	}
}

func TestClassify_TikTok(t *testing.T) {
	urls := []string{
		"https://www.tiktok.com/@someuser/video/7301234567890123456",
		"https://tiktok.com/@some.user_name/video/123/",
		"https://vm.tiktok.com/ZMabcDEF/",
		"https://vt.tiktok.com/ZSabc123",
		"https://m.tiktok.com/v/7301234567890123456/",
	}

	for _, u := range urls {
		if got := Classify(u); got != PlatformTikTok {
			t.Errorf("Classify(%q) = %s, want tiktok", u, got)
		}
	}
}

func TestClassify_Unknown(t *testing.T) {
	urls := []string{
		"",
		"not-a-url",
		"https://example.com/video/123",
		"https://www.instagram.com/someuser/",
		"https://www.instagram.com/stories/someuser/123/",
		"https://www.tiktok.com/@someuser",
		"https://youtube.com/watch?v=abc",
		"ftp://instagram.com/p/ABC123/",
		"instagram.com/p/ABC123/",
		"https://notinstagram.com/p/ABC123/",
	}

	for _, u := range urls {
		if got := Classify(u); got != PlatformUnknown {
			t.Errorf("Classify(%q) = %s, want unknown", u, got)
		}
	}
}

// Classification must be total: arbitrary garbage input never panics and
// always maps to exactly one platform.
func TestClassify_Total(t *testing.T) {
	inputs := []string{
		"\x00\xff\xfe",
		"https://",
		"////",
		string(make([]byte, 4096)),
	}

	for _, in := range inputs {
		switch Classify(in) {
		case PlatformInstagram, PlatformTikTok, PlatformUnknown:
		default:
			t.Errorf("Classify(%q) returned unexpected platform", in)
		}
	}
}

func TestDownloadError_Unwrap(t *testing.T) {
	inner := ErrUpstreamAuth
	err := NewDownloadError(PlatformInstagram, "https://www.instagram.com/p/X/", inner)

	if !errors.Is(err, ErrUpstreamAuth) {
		t.Error("DownloadError should unwrap to the inner error")
	}

	msg := err.Error()
	if msg == "" {
		t.Error("DownloadError message should not be empty")
	}
}
