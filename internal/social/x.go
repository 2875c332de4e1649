package social

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/dghubble/oauth1"
)

// X post limits.
const (
	MaxXText     = 280
	MaxXMediaIDs = 4
)

// XCredentials are the configured X credentials. A bearer token is tried
// first; the OAuth 1.0a user credentials are the fallback.
type XCredentials struct {
	BearerToken       string
	ConsumerKey       string
	ConsumerSecret    string
	AccessToken       string
	AccessTokenSecret string
}

func (c XCredentials) hasOAuth1() bool {
	return c.ConsumerKey != "" && c.ConsumerSecret != "" && c.AccessToken != "" && c.AccessTokenSecret != ""
}

// XPublisher posts to X.
type XPublisher struct {
	baseURL string
	creds   XCredentials
	hc      *http.Client
}

// NewXPublisher creates a publisher for the X API at baseURL.
func NewXPublisher(baseURL string, creds XCredentials, hc *http.Client) *XPublisher {
	return &XPublisher{
		baseURL: strings.TrimRight(baseURL, "/"),
		creds:   creds,
		hc:      hc,
	}
}

// Platform implements Publisher.
func (p *XPublisher) Platform() Platform { return X }

// Validate implements Publisher.
func (p *XPublisher) Validate(post Post) error {
	n := runeLen(post.Text)
	switch {
	case strings.TrimSpace(post.Text) == "":
		return invalidPayload(X, "missing required field: text")
	case n > MaxXText:
		return invalidPayload(X, "text is %d characters, limit is %d", n, MaxXText)
	case len(post.MediaIDs) > MaxXMediaIDs:
		return invalidPayload(X, "%d media ids given, limit is %d", len(post.MediaIDs), MaxXMediaIDs)
	}
	if p.bearerToken(post) == "" && !p.creds.hasOAuth1() {
		return invalidPayload(X, "no bearer token or OAuth 1.0a credentials configured")
	}
	return nil
}

func (p *XPublisher) bearerToken(post Post) string {
	if post.AccessToken != "" {
		return post.AccessToken
	}
	return p.creds.BearerToken
}

// Publish implements Publisher. An app-only bearer token that the v2 endpoint
// refuses falls back to OAuth 1.0a when those credentials exist.
func (p *XPublisher) Publish(ctx context.Context, post Post) (*Result, error) {
	if token := p.bearerToken(post); token != "" {
		res, err := p.publishV2(ctx, post, token)
		if err == nil || !p.creds.hasOAuth1() || !unsupportedAuth(err) {
			return res, err
		}
	}
	return p.publishOAuth1(ctx, post)
}

func (p *XPublisher) publishV2(ctx context.Context, post Post, token string) (*Result, error) {
	payload := map[string]any{"text": post.Text}
	if len(post.MediaIDs) > 0 {
		payload["media"] = map[string]any{"media_ids": post.MediaIDs}
	}
	client := vendorClient{platform: X, http: p.hc}
	body, err := client.postJSON(ctx, p.baseURL+"/2/tweets", payload, bearer(token))
	if err != nil {
		return nil, err
	}
	id := body.Get("data.id").String()
	if id == "" {
		return nil, missingID(X, "data.id")
	}
	return &Result{Platform: X, Status: StatusPublished, RemoteID: id}, nil
}

func (p *XPublisher) publishOAuth1(ctx context.Context, post Post) (*Result, error) {
	config := oauth1.NewConfig(p.creds.ConsumerKey, p.creds.ConsumerSecret)
	hc := config.Client(ctx, oauth1.NewToken(p.creds.AccessToken, p.creds.AccessTokenSecret))
	if p.hc != nil {
		hc.Timeout = p.hc.Timeout
	}

	form := url.Values{"status": {post.Text}}
	if len(post.MediaIDs) > 0 {
		form.Set("media_ids", strings.Join(post.MediaIDs, ","))
	}
	client := vendorClient{platform: X, http: hc}
	body, err := client.postForm(ctx, p.baseURL+"/1.1/statuses/update.json", form, nil)
	if err != nil {
		return nil, err
	}
	id := body.Get("id_str").String()
	if id == "" {
		return nil, missingID(X, "id_str")
	}
	return &Result{Platform: X, Status: StatusPublished, RemoteID: id}, nil
}

// unsupportedAuth reports a v2 refusal of app-only authentication.
func unsupportedAuth(err error) bool {
	var pe *PublishError
	if !errors.As(err, &pe) || pe.StatusCode != http.StatusForbidden {
		return false
	}
	return strings.Contains(pe.Message, "Unsupported Authentication") ||
		strings.Contains(pe.Message, "Application-Only")
}
