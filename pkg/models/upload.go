package models

const (
	PlatformYouTube   = "youtube"
	PlatformTikTok    = "tiktok"
	PlatformInstagram = "instagram"
)

// SupportedPlatforms returns the supported platform names in sorted order.
func SupportedPlatforms() []string {
	return []string{PlatformInstagram, PlatformTikTok, PlatformYouTube}
}

// IsSupportedPlatform reports whether name is a canonical supported platform.
func IsSupportedPlatform(name string) bool {
	switch name {
	case PlatformYouTube, PlatformTikTok, PlatformInstagram:
		return true
	}
	return false
}

// ParsedRow is the validation outcome of one uploaded row. It is never persisted.
type ParsedRow struct {
	RowIndex      int      `json:"row_index"`
	Platform      *string  `json:"platform"`
	URL           *string  `json:"url"`
	ErrorMessages []string `json:"error_messages,omitempty"`
}

// Valid reports whether the row passed validation.
func (r ParsedRow) Valid() bool {
	return len(r.ErrorMessages) == 0
}

// UploadReport is the per-row outcome of parsing an upload plus aggregate counts.
type UploadReport struct {
	TotalRows   int         `json:"total_rows"`
	ValidRows   int         `json:"valid_rows"`
	InvalidRows int         `json:"invalid_rows"`
	Rows        []ParsedRow `json:"rows"`
}
