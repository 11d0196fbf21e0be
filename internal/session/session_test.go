package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/reelgrab/reelgrab/pkg/secret"
)

func TestLoad_Plaintext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	content := `{"username":"bob","sessionid":"abc123","csrftoken":"tok"}`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	s, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if s.Username != "bob" || s.SessionID != "abc123" {
		t.Errorf("session = %+v", s)
	}
	if got := s.CookieHeader(); got != "sessionid=abc123; csrftoken=tok" {
		t.Errorf("CookieHeader() = %q", got)
	}
}

func TestLoad_Encrypted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.enc")

	data, err := secret.Encrypt([]byte(`{"username":"bob","sessionid":"abc123"}`), "pw")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatal(err)
	}

	s, err := Load(path, "pw")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if s.SessionID != "abc123" {
		t.Errorf("sessionid = %q", s.SessionID)
	}
}

func TestLoad_EncryptedWithoutPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.enc")

	data, err := secret.Encrypt([]byte(`{"sessionid":"abc"}`), "pw")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path, ""); err == nil {
		t.Error("Load should fail for encrypted file without passphrase")
	}
}

func TestLoad_MissingSessionID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte(`{"username":"bob"}`), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path, ""); err == nil {
		t.Error("Load should fail when sessionid is absent")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/session.json", ""); err == nil {
		t.Error("Load should fail for missing file")
	}
}

func TestCookieHeader_NoCSRF(t *testing.T) {
	s := &Session{SessionID: "abc"}
	if got := s.CookieHeader(); got != "sessionid=abc" {
		t.Errorf("CookieHeader() = %q", got)
	}
}
