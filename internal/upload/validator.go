package upload

import (
	"fmt"
	"strings"

	"github.com/kiranshivaraju/linkmetrics/pkg/models"
)

const (
	msgPlatformRequired = "Platform is required."
	msgURLRequired      = "URL is required."
)

var platformAliases = map[string]string{
	"yt":          models.PlatformYouTube,
	"youtube.com": models.PlatformYouTube,
	"tt":          models.PlatformTikTok,
	"tik tok":     models.PlatformTikTok,
	"ig":          models.PlatformInstagram,
	"insta":       models.PlatformInstagram,
}

var msgUnsupportedPlatform = fmt.Sprintf(
	"Unsupported platform. Platform must be one of: [%s].",
	strings.Join(models.SupportedPlatforms(), ", "))

// NormalizePlatform trims, lowercases and de-aliases a platform name.
func NormalizePlatform(raw string) string {
	p := strings.ToLower(strings.TrimSpace(raw))
	if canonical, ok := platformAliases[p]; ok {
		return canonical
	}
	return p
}

// ValidateRow normalizes one raw (platform, url) pair. Both fields are checked
// independently so a row may carry several messages. A nil or blank input is
// reported as missing. The row is valid iff errs is empty.
func ValidateRow(platformRaw, urlRaw *string) (platform, url *string, errs []string) {
	if platformRaw == nil || strings.TrimSpace(*platformRaw) == "" {
		errs = append(errs, msgPlatformRequired)
	} else {
		p := NormalizePlatform(*platformRaw)
		platform = &p
		if !models.IsSupportedPlatform(p) {
			errs = append(errs, msgUnsupportedPlatform)
		}
	}

	if urlRaw == nil || strings.TrimSpace(*urlRaw) == "" {
		errs = append(errs, msgURLRequired)
	} else {
		u := strings.TrimSpace(*urlRaw)
		url = &u
	}

	return platform, url, errs
}
