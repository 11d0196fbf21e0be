package domain

import "errors"

// Domain errors.
var (
	// ErrUnsupportedURL is returned when the URL matches no supported platform.
	ErrUnsupportedURL = errors.New("unsupported URL: must be an Instagram post/reel or TikTok video link")

	// ErrUpstreamAuth is returned when the upstream platform refuses access
	// (private account, login required, expired session).
	ErrUpstreamAuth = errors.New("content is private or requires login")

	// ErrUpstreamNotFound is returned when the post does not exist upstream.
	ErrUpstreamNotFound = errors.New("post not found")

	// ErrNotVideo is returned when the post exists but contains no video.
	ErrNotVideo = errors.New("the provided URL does not contain a video")

	// ErrAlreadyRunning is returned when starting a server that is already up.
	ErrAlreadyRunning = errors.New("server is already running")

	// ErrPortInUse is returned when the configured port is bound by another process.
	ErrPortInUse = errors.New("port is already in use")

	// ErrNotRunning is reported (not failed) when stopping an already stopped server.
	ErrNotRunning = errors.New("server is not running")
)

// DownloadError wraps an upstream downloader failure with platform context.
type DownloadError struct {
	Platform Platform
	URL      string
	Err      error
}

func (e *DownloadError) Error() string {
	return string(e.Platform) + " download [" + e.URL + "]: " + e.Err.Error()
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

// NewDownloadError creates a new DownloadError.
func NewDownloadError(platform Platform, url string, err error) *DownloadError {
	return &DownloadError{
		Platform: platform,
		URL:      url,
		Err:      err,
	}
}
