// Package social publishes posts to social platforms. Each platform is a
// Publisher that checks its payload limits before making exactly one
// outbound publish flow, and reports failures with a shared taxonomy.
package social

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"
)

// Platform identifies a social network.
type Platform string

const (
	Facebook  Platform = "facebook"
	Instagram Platform = "instagram"
	X         Platform = "x"
	YouTube   Platform = "youtube"
	TikTok    Platform = "tiktok"
)

// Platforms lists every supported platform.
var Platforms = []Platform{Facebook, Instagram, X, YouTube, TikTok}

var platformAliases = map[string]Platform{
	"facebook":  Facebook,
	"fb":        Facebook,
	"instagram": Instagram,
	"ig":        Instagram,
	"x":         X,
	"twitter":   X,
	"youtube":   YouTube,
	"yt":        YouTube,
	"tiktok":    TikTok,
}

// ParsePlatform resolves a platform name or short alias.
func ParsePlatform(s string) (Platform, error) {
	if p, ok := platformAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPlatform, s)
}

// Post is the publish payload. Each platform reads its own subset of fields.
type Post struct {
	// facebook
	PageID  string `json:"page_id,omitempty"`
	Message string `json:"message,omitempty"`

	// instagram
	AccountID string `json:"ig_account_id,omitempty"`
	ImageURL  string `json:"image_url,omitempty"`

	// instagram, tiktok
	Caption string `json:"caption,omitempty"`

	// x
	Text     string   `json:"text,omitempty"`
	MediaIDs []string `json:"media_ids,omitempty"`

	// youtube, tiktok
	Title         string   `json:"title,omitempty"`
	Description   string   `json:"description,omitempty"`
	VideoURL      string   `json:"video_url,omitempty"`
	PrivacyStatus string   `json:"privacy_status,omitempty"`
	Hashtags      []string `json:"hashtags,omitempty"`

	// AccessToken overrides the configured platform credential.
	AccessToken string `json:"access_token,omitempty"`
}

// Result is the normalized outcome of a successful publish.
type Result struct {
	Platform Platform `json:"platform"`
	Status   string   `json:"status"`
	RemoteID string   `json:"remote_id"`
}

// Publish statuses.
const (
	StatusPublished = "published"
	StatusUploaded  = "uploaded"
	StatusInitiated = "initiated"
)

// PreviewLength is the number of runes kept in a logged post preview.
const PreviewLength = 100

// describe returns the target account and the text preview logged for post.
func describe(p Platform, post Post) (target, preview string) {
	switch p {
	case Facebook:
		return post.PageID, truncateRunes(post.Message, PreviewLength)
	case Instagram:
		return post.AccountID, truncateRunes(post.Caption, PreviewLength)
	case X:
		return "", truncateRunes(post.Text, PreviewLength)
	case YouTube:
		return "", truncateRunes(post.Title, PreviewLength)
	case TikTok:
		return "", truncateRunes(post.Caption, PreviewLength)
	}
	return "", ""
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

func isHTTPURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
