package domain

import (
	"regexp"
)

// URL patterns for the supported platforms. Instagram posts, reels and
// IGTV links; TikTok canonical, short (vm/vt) and mobile links.
var (
	instagramPattern = regexp.MustCompile(`(?i)^https?://(www\.)?instagram\.com/(p|reel|tv)/[\w-]+/?(\?.*)?$`)

	tiktokPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^https?://(www\.)?tiktok\.com/@[\w.-]+/video/\d+/?(\?.*)?$`),
		regexp.MustCompile(`(?i)^https?://(www\.)?(vm|vt)\.tiktok\.com/[\w-]+/?(\?.*)?$`),
		regexp.MustCompile(`(?i)^https?://(www\.)?m\.tiktok\.com/v/\d+/?(\?.*)?$`),
	}
)

// Classify maps a URL to the platform that can serve it. It is total:
// any input string, well-formed or not, maps to exactly one platform,
// with PlatformUnknown as the catch-all.
func Classify(url string) Platform {
	if instagramPattern.MatchString(url) {
		return PlatformInstagram
	}
	for _, p := range tiktokPatterns {
		if p.MatchString(url) {
			return PlatformTikTok
		}
	}
	return PlatformUnknown
}
