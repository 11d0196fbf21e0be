package domain

import (
	"time"
)

// Platform identifies the social network a URL belongs to.
type Platform string

const (
	PlatformInstagram Platform = "instagram"
	PlatformTikTok    Platform = "tiktok"
	PlatformUnknown   Platform = "unknown"
)

// String returns the string representation of the Platform.
func (p Platform) String() string {
	return string(p)
}

// MediaRecord describes one successfully downloaded video. It is built
// once per download and never mutated afterwards; the file it points at
// is eventually removed by the media store's retention pruning.
type MediaRecord struct {
	Platform    Platform
	Author      string
	Description string
	CreatedAt   time.Time
	Filename    string
	FilePath    string
	PublicURL   string
}

// SidecarMetadata is the JSON structure written next to the video file.
type SidecarMetadata struct {
	Platform    string    `json:"platform"`
	SourceURL   string    `json:"source_url"`
	Author      string    `json:"author"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	ArchivedAt  time.Time `json:"archived_at"`
	Filename    string    `json:"filename"`
}

// DownloadEntry is one row of the download history log.
type DownloadEntry struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Platform  string    `json:"platform"`
	Author    string    `json:"author,omitempty"`
	Filename  string    `json:"filename,omitempty"`
	Status    string    `json:"status"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Download history statuses.
const (
	DownloadStatusCompleted = "completed"
	DownloadStatusFailed    = "failed"
)
