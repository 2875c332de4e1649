package social

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// GraphAPIVersion is the Graph API version used for Facebook and Instagram.
const GraphAPIVersion = "v19.0"

// MaxFacebookMessage is the longest page post the Graph API accepts.
const MaxFacebookMessage = 63206

// FacebookPublisher posts to a Facebook page feed.
type FacebookPublisher struct {
	baseURL string
	client  vendorClient
}

// NewFacebookPublisher creates a publisher for the Graph API at baseURL.
func NewFacebookPublisher(baseURL string, hc *http.Client) *FacebookPublisher {
	return &FacebookPublisher{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  vendorClient{platform: Facebook, http: hc},
	}
}

// Platform implements Publisher.
func (p *FacebookPublisher) Platform() Platform { return Facebook }

// Validate implements Publisher.
func (p *FacebookPublisher) Validate(post Post) error {
	var missing []string
	if post.PageID == "" {
		missing = append(missing, "page_id")
	}
	if strings.TrimSpace(post.Message) == "" {
		missing = append(missing, "message")
	}
	if post.AccessToken == "" {
		missing = append(missing, "access_token")
	}
	if len(missing) > 0 {
		return invalidPayload(Facebook, "missing required fields: %s", strings.Join(missing, ", "))
	}
	if n := runeLen(post.Message); n > MaxFacebookMessage {
		return invalidPayload(Facebook, "message is %d characters, limit is %d", n, MaxFacebookMessage)
	}
	return nil
}

// Publish implements Publisher.
func (p *FacebookPublisher) Publish(ctx context.Context, post Post) (*Result, error) {
	endpoint := p.baseURL + "/" + GraphAPIVersion + "/" + url.PathEscape(post.PageID) + "/feed"
	body, err := p.client.postForm(ctx, endpoint, url.Values{
		"message":      {post.Message},
		"access_token": {post.AccessToken},
	}, nil)
	if err != nil {
		return nil, err
	}
	id := body.Get("id").String()
	if id == "" {
		return nil, missingID(Facebook, "id")
	}
	return &Result{Platform: Facebook, Status: StatusPublished, RemoteID: id}, nil
}
