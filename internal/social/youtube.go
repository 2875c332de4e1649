package social

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

// YouTube upload limits.
const (
	MaxYouTubeTitle       = 100
	MaxYouTubeDescription = 5000
)

// DefaultYouTubeUploadTimeout bounds fetching and uploading one video.
const DefaultYouTubeUploadTimeout = 10 * time.Minute

var youtubePrivacy = map[string]bool{"public": true, "unlisted": true, "private": true}

// VideoInserter uploads a video with the given OAuth access token.
type VideoInserter interface {
	Insert(ctx context.Context, token string, video *youtube.Video, media io.Reader) (*youtube.Video, error)
}

// apiInserter uses the YouTube Data API v3 client. Calls are bounded by ctx.
type apiInserter struct {
	base http.RoundTripper
	opts []option.ClientOption
}

func (a apiInserter) Insert(ctx context.Context, token string, video *youtube.Video, media io.Reader) (*youtube.Video, error) {
	hc := &http.Client{Transport: &oauth2.Transport{
		Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
		Base:   a.base,
	}}
	opts := append([]option.ClientOption{option.WithHTTPClient(hc)}, a.opts...)
	svc, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating youtube service: %w", err)
	}
	return svc.Videos.Insert([]string{"snippet", "status"}, video).Media(media).Context(ctx).Do()
}

// YouTubePublisher uploads a video fetched from a URL.
type YouTubePublisher struct {
	token         string
	inserter      VideoInserter
	fetch         *http.Client
	uploadTimeout time.Duration
}

// NewYouTubePublisher creates a publisher using the YouTube Data API.
// token is the default access token; opts are passed to the API client.
// hc supplies the transport; its Timeout is not applied to the streamed
// fetch and upload, which are bounded by the upload timeout instead.
func NewYouTubePublisher(token string, hc *http.Client, opts ...option.ClientOption) *YouTubePublisher {
	fetch := streamingClient(hc)
	return &YouTubePublisher{
		token:         token,
		inserter:      apiInserter{base: fetch.Transport, opts: opts},
		fetch:         fetch,
		uploadTimeout: DefaultYouTubeUploadTimeout,
	}
}

// NewYouTubePublisherWithInserter creates a publisher around a custom inserter.
func NewYouTubePublisherWithInserter(token string, hc *http.Client, inserter VideoInserter) *YouTubePublisher {
	return &YouTubePublisher{
		token:         token,
		inserter:      inserter,
		fetch:         streamingClient(hc),
		uploadTimeout: DefaultYouTubeUploadTimeout,
	}
}

// WithUploadTimeout sets the deadline shared by the video fetch and the upload.
// Non-positive values keep the default.
func (p *YouTubePublisher) WithUploadTimeout(d time.Duration) *YouTubePublisher {
	if d > 0 {
		p.uploadTimeout = d
	}
	return p
}

// streamingClient copies hc without its Timeout, which would otherwise
// cover reading the whole video body.
func streamingClient(hc *http.Client) *http.Client {
	if hc == nil {
		return &http.Client{}
	}
	c := *hc
	c.Timeout = 0
	return &c
}

// Platform implements Publisher.
func (p *YouTubePublisher) Platform() Platform { return YouTube }

func (p *YouTubePublisher) accessToken(post Post) string {
	if post.AccessToken != "" {
		return post.AccessToken
	}
	return p.token
}

func privacyOf(post Post) string {
	if post.PrivacyStatus == "" {
		return "public"
	}
	return post.PrivacyStatus
}

// Validate implements Publisher.
func (p *YouTubePublisher) Validate(post Post) error {
	title := strings.TrimSpace(post.Title)
	switch {
	case title == "" || post.VideoURL == "":
		return invalidPayload(YouTube, "missing required fields: title, video_url")
	case runeLen(post.Title) > MaxYouTubeTitle:
		return invalidPayload(YouTube, "title is %d characters, limit is %d", runeLen(post.Title), MaxYouTubeTitle)
	case runeLen(post.Description) > MaxYouTubeDescription:
		return invalidPayload(YouTube, "description is %d characters, limit is %d", runeLen(post.Description), MaxYouTubeDescription)
	case strings.ContainsAny(post.Title, "<>"):
		return invalidPayload(YouTube, "title must not contain < or >")
	case !isHTTPURL(post.VideoURL):
		return invalidPayload(YouTube, "video_url must be an http(s) URL")
	case !youtubePrivacy[privacyOf(post)]:
		return invalidPayload(YouTube, "privacy_status must be public, unlisted or private")
	case p.accessToken(post) == "":
		return invalidPayload(YouTube, "missing access token; set YOUTUBE_ACCESS_TOKEN or pass access_token")
	}
	return nil
}

// Publish implements Publisher. The video is streamed from VideoURL into the
// upload without buffering it on disk. Fetch and upload share one deadline.
func (p *YouTubePublisher) Publish(ctx context.Context, post Post) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, p.uploadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, post.VideoURL, nil)
	if err != nil {
		return nil, invalidPayload(YouTube, "video_url: %v", err)
	}
	resp, err := p.fetch.Do(req)
	if err != nil {
		return nil, transportError(YouTube, fmt.Errorf("fetching video: %w", err))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &PublishError{
			Platform:   YouTube,
			Kind:       ErrVendor,
			StatusCode: resp.StatusCode,
			Message:    "fetching video_url returned " + resp.Status,
		}
	}

	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       post.Title,
			Description: post.Description,
		},
		Status: &youtube.VideoStatus{PrivacyStatus: privacyOf(post)},
	}
	uploaded, err := p.inserter.Insert(ctx, p.accessToken(post), video, resp.Body)
	if err != nil {
		return nil, classifyGoogle(err)
	}
	if uploaded == nil || uploaded.Id == "" {
		return nil, missingID(YouTube, "video id")
	}
	return &Result{Platform: YouTube, Status: StatusUploaded, RemoteID: uploaded.Id}, nil
}

var youtubeQuotaReasons = map[string]bool{
	"quotaExceeded":         true,
	"rateLimitExceeded":     true,
	"userRateLimitExceeded": true,
	"uploadLimitExceeded":   true,
}

// classifyGoogle maps a Google API error onto a failure kind. Quota reasons
// win over the 403 status they are reported with.
func classifyGoogle(err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return transportError(YouTube, err)
	}
	pe := &PublishError{Platform: YouTube, Kind: ErrVendor, StatusCode: gerr.Code, Message: gerr.Message}
	if pe.Message == "" {
		pe.Message = http.StatusText(gerr.Code)
	}
	for _, item := range gerr.Errors {
		if youtubeQuotaReasons[item.Reason] {
			pe.Kind = ErrRateLimited
			pe.VendorCode = item.Reason
			return pe
		}
	}
	switch gerr.Code {
	case http.StatusTooManyRequests:
		pe.Kind = ErrRateLimited
	case http.StatusUnauthorized, http.StatusForbidden:
		pe.Kind = ErrAuthExpired
	}
	return pe
}
