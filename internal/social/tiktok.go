package social

import (
	"context"
	"net/http"
	"strings"
)

// MaxTikTokCaption bounds the caption including appended hashtags.
const MaxTikTokCaption = 2200

// TikTokPublisher starts a direct post that TikTok pulls from a URL.
type TikTokPublisher struct {
	baseURL string
	token   string
	client  vendorClient
}

// NewTikTokPublisher creates a publisher for the TikTok content posting API.
func NewTikTokPublisher(baseURL, token string, hc *http.Client) *TikTokPublisher {
	return &TikTokPublisher{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  vendorClient{platform: TikTok, http: hc},
	}
}

// Platform implements Publisher.
func (p *TikTokPublisher) Platform() Platform { return TikTok }

func (p *TikTokPublisher) accessToken(post Post) string {
	if post.AccessToken != "" {
		return post.AccessToken
	}
	return p.token
}

// FullCaption appends the hashtags to the caption.
func FullCaption(caption string, hashtags []string) string {
	var b strings.Builder
	b.WriteString(caption)
	for _, tag := range hashtags {
		tag = strings.TrimPrefix(strings.TrimSpace(tag), "#")
		if tag == "" {
			continue
		}
		b.WriteString(" #")
		b.WriteString(tag)
	}
	return b.String()
}

// Validate implements Publisher.
func (p *TikTokPublisher) Validate(post Post) error {
	switch {
	case post.VideoURL == "" || strings.TrimSpace(post.Caption) == "":
		return invalidPayload(TikTok, "missing required fields: video_url, caption")
	case !isHTTPURL(post.VideoURL):
		return invalidPayload(TikTok, "video_url must be an http(s) URL")
	case p.accessToken(post) == "":
		return invalidPayload(TikTok, "missing access token; set TIKTOK_USER_ACCESS_TOKEN or pass access_token")
	}
	if n := runeLen(FullCaption(post.Caption, post.Hashtags)); n > MaxTikTokCaption {
		return invalidPayload(TikTok, "caption with hashtags is %d characters, limit is %d", n, MaxTikTokCaption)
	}
	return nil
}

// Publish implements Publisher.
func (p *TikTokPublisher) Publish(ctx context.Context, post Post) (*Result, error) {
	payload := map[string]any{
		"post_info": map[string]any{
			"title":         FullCaption(post.Caption, post.Hashtags),
			"privacy_level": "PUBLIC_TO_EVERYONE",
		},
		"source_info": map[string]any{
			"source":    "PULL_FROM_URL",
			"video_url": post.VideoURL,
		},
	}
	body, err := p.client.postJSON(ctx, p.baseURL+"/v2/post/publish/video/init/", payload, bearer(p.accessToken(post)))
	if err != nil {
		return nil, err
	}
	// TikTok reports success as error.code "ok".
	if code := body.Get("error.code").String(); code != "" && code != "ok" {
		return nil, &PublishError{
			Platform:   TikTok,
			Kind:       ErrVendor,
			StatusCode: http.StatusOK,
			VendorCode: code,
			Message:    body.Get("error.message").String(),
		}
	}
	id := body.Get("data.publish_id").String()
	if id == "" {
		id = body.Get("data.upload_id").String()
	}
	if id == "" {
		return nil, missingID(TikTok, "publish_id")
	}
	return &Result{Platform: TikTok, Status: StatusInitiated, RemoteID: id}, nil
}
