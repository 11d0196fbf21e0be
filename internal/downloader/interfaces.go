package downloader

import (
	"context"
	"time"
)

// Result is the normalized outcome of a platform fetch. The video sits
// in a temp file; the dispatcher moves it into the media store.
type Result struct {
	// TempPath is where the downloaded video currently lives.
	TempPath string

	// SuggestedName is the stable filename for the media directory,
	// derived from the platform's media identifier.
	SuggestedName string

	Author      string
	Description string
	CreatedAt   time.Time
}

// Downloader fetches a post's video and metadata from one platform.
// Implementations make a single attempt; retry policy is the caller's
// concern (currently: none).
type Downloader interface {
	Fetch(ctx context.Context, url string) (*Result, error)
}
