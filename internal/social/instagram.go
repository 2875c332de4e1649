package social

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// MaxInstagramCaption is the caption limit for feed posts.
const MaxInstagramCaption = 2200

// InstagramPublisher creates a media container and publishes it.
type InstagramPublisher struct {
	baseURL string
	client  vendorClient
}

// NewInstagramPublisher creates a publisher for the Instagram Graph API.
func NewInstagramPublisher(baseURL string, hc *http.Client) *InstagramPublisher {
	return &InstagramPublisher{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  vendorClient{platform: Instagram, http: hc},
	}
}

// Platform implements Publisher.
func (p *InstagramPublisher) Platform() Platform { return Instagram }

// Validate implements Publisher.
func (p *InstagramPublisher) Validate(post Post) error {
	var missing []string
	for _, f := range []struct{ name, val string }{
		{"ig_account_id", post.AccountID},
		{"image_url", post.ImageURL},
		{"caption", post.Caption},
		{"access_token", post.AccessToken},
	} {
		if strings.TrimSpace(f.val) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return invalidPayload(Instagram, "missing required fields: %s", strings.Join(missing, ", "))
	}
	if !isHTTPURL(post.ImageURL) {
		return invalidPayload(Instagram, "image_url must be an http(s) URL")
	}
	if n := runeLen(post.Caption); n > MaxInstagramCaption {
		return invalidPayload(Instagram, "caption is %d characters, limit is %d", n, MaxInstagramCaption)
	}
	return nil
}

// Publish implements Publisher.
func (p *InstagramPublisher) Publish(ctx context.Context, post Post) (*Result, error) {
	account := p.baseURL + "/" + GraphAPIVersion + "/" + url.PathEscape(post.AccountID)

	container, err := p.client.postForm(ctx, account+"/media", url.Values{
		"image_url":    {post.ImageURL},
		"caption":      {post.Caption},
		"access_token": {post.AccessToken},
	}, nil)
	if err != nil {
		return nil, err
	}
	creationID := container.Get("id").String()
	if creationID == "" {
		return nil, missingID(Instagram, "container id")
	}

	published, err := p.client.postForm(ctx, account+"/media_publish", url.Values{
		"creation_id":  {creationID},
		"access_token": {post.AccessToken},
	}, nil)
	if err != nil {
		return nil, err
	}
	mediaID := published.Get("id").String()
	if mediaID == "" {
		return nil, missingID(Instagram, "media id")
	}
	return &Result{Platform: Instagram, Status: StatusPublished, RemoteID: mediaID}, nil
}
