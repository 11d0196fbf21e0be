// Package session loads the pre-provisioned Instagram session
// credential used by the Instagram downloader.
package session

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/reelgrab/reelgrab/pkg/secret"
)

// Session holds the Instagram web session credential. It is provisioned
// out of band (browser export) and read by the server at startup.
type Session struct {
	Username  string `json:"username"`
	SessionID string `json:"sessionid"`
	CSRFToken string `json:"csrftoken,omitempty"`
}

// Load reads the session file at path. Files carrying the secret
// container magic are decrypted with the passphrase first; plaintext
// JSON files load as-is.
func Load(path, passphrase string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}

	if secret.IsEncrypted(data) {
		if passphrase == "" {
			return nil, fmt.Errorf("session file %s is encrypted but no passphrase is configured", path)
		}
		data, err = secret.Decrypt(data, passphrase)
		if err != nil {
			return nil, fmt.Errorf("decrypt session file: %w", err)
		}
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse session file: %w", err)
	}
	if s.SessionID == "" {
		return nil, fmt.Errorf("session file %s has no sessionid", path)
	}

	return &s, nil
}

// CookieHeader renders the session as a Cookie header value.
func (s *Session) CookieHeader() string {
	h := "sessionid=" + s.SessionID
	if s.CSRFToken != "" {
		h += "; csrftoken=" + s.CSRFToken
	}
	return h
}
