package social

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/buildswift/orchestrator/internal/applog"
	"github.com/buildswift/orchestrator/internal/models"
	"github.com/buildswift/orchestrator/pkg/config"
	"github.com/buildswift/orchestrator/pkg/logger"
)

// vendorStub records hits and answers with a fixed status and body.
type vendorStub struct {
	hits   int32
	status int
	body   string
	check  func(r *http.Request)
}

func (v *vendorStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&v.hits, 1)
	if v.check != nil {
		v.check(r)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(v.status)
	_, _ = io.WriteString(w, v.body)
}

func (v *vendorStub) Hits() int { return int(atomic.LoadInt32(&v.hits)) }

func newStubServer(t *testing.T, stub *vendorStub) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)
	return srv
}

func testClient() *http.Client {
	return &http.Client{Timeout: 5 * time.Second}
}

func newTestService(t *testing.T, pubs ...Publisher) (*Service, *applog.FileStore) {
	t.Helper()
	logs, err := applog.NewFileStore(t.TempDir(), logger.Discard())
	require.NoError(t, err)
	return NewService(logs, logger.Discard(), pubs), logs
}

func socialRecords(t *testing.T, logs applog.Store) []models.SocialPostRecord {
	t.Helper()
	recs, err := applog.ListAs[models.SocialPostRecord](context.Background(), logs, models.LogSocialPosts)
	require.NoError(t, err)
	return recs
}

func TestXOverLimitRejectedWithoutVendorCall(t *testing.T) {
	stub := &vendorStub{status: http.StatusCreated, body: `{"data":{"id":"1"}}`}
	srv := newStubServer(t, stub)
	svc, logs := newTestService(t, NewXPublisher(srv.URL, XCredentials{BearerToken: "tok"}, testClient()))

	_, err := svc.Publish(context.Background(), X, Post{Text: strings.Repeat("é", MaxXText+1)})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidPayload)
	assert.Zero(t, stub.Hits())
	assert.Empty(t, socialRecords(t, logs))
}

func TestValidation(t *testing.T) {
	fb := NewFacebookPublisher("http://unused", testClient())
	ig := NewInstagramPublisher("http://unused", testClient())
	x := NewXPublisher("http://unused", XCredentials{}, testClient())
	yt := NewYouTubePublisher("", testClient())
	tt := NewTikTokPublisher("http://unused", "", testClient())

	tests := []struct {
		name string
		pub  Publisher
		post Post
		ok   bool
	}{
		{"fb ok", fb, Post{PageID: "1", Message: "hi", AccessToken: "t"}, true},
		{"fb missing token", fb, Post{PageID: "1", Message: "hi"}, false},
		{"fb too long", fb, Post{PageID: "1", Message: strings.Repeat("a", MaxFacebookMessage+1), AccessToken: "t"}, false},
		{"ig ok", ig, Post{AccountID: "1", ImageURL: "https://img.example/a.jpg", Caption: "c", AccessToken: "t"}, true},
		{"ig bad url", ig, Post{AccountID: "1", ImageURL: "ftp://img/a.jpg", Caption: "c", AccessToken: "t"}, false},
		{"ig caption too long", ig, Post{AccountID: "1", ImageURL: "https://img/a.jpg", Caption: strings.Repeat("a", MaxInstagramCaption+1), AccessToken: "t"}, false},
		{"x empty text", x, Post{Text: "  ", AccessToken: "t"}, false},
		{"x no credentials", x, Post{Text: "hello"}, false},
		{"x request token", x, Post{Text: "hello", AccessToken: "t"}, true},
		{"x too many media", x, Post{Text: "hello", AccessToken: "t", MediaIDs: []string{"1", "2", "3", "4", "5"}}, false},
		{"yt ok", yt, Post{Title: "t", VideoURL: "https://v/a.mp4", AccessToken: "t"}, true},
		{"yt bad privacy", yt, Post{Title: "t", VideoURL: "https://v/a.mp4", PrivacyStatus: "friends", AccessToken: "t"}, false},
		{"yt title too long", yt, Post{Title: strings.Repeat("a", MaxYouTubeTitle+1), VideoURL: "https://v/a.mp4", AccessToken: "t"}, false},
		{"yt description too long", yt, Post{Title: "t", Description: strings.Repeat("a", MaxYouTubeDescription+1), VideoURL: "https://v/a.mp4", AccessToken: "t"}, false},
		{"yt no token", yt, Post{Title: "t", VideoURL: "https://v/a.mp4"}, false},
		{"tiktok ok", tt, Post{VideoURL: "https://v/a.mp4", Caption: "c", AccessToken: "t"}, true},
		{"tiktok hashtags overflow", tt, Post{VideoURL: "https://v/a.mp4", Caption: strings.Repeat("a", MaxTikTokCaption-3), Hashtags: []string{"abc"}, AccessToken: "t"}, false},
		{"tiktok no token", tt, Post{VideoURL: "https://v/a.mp4", Caption: "c"}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.pub.Validate(tc.post)
			if tc.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidPayload)
		})
	}
}

func TestFacebookPublish(t *testing.T) {
	stub := &vendorStub{status: http.StatusOK, body: `{"id":"123_456"}`}
	stub.check = func(r *http.Request) {
		assert.Equal(t, "/v19.0/123/feed", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "tok", r.PostForm.Get("access_token"))
	}
	srv := newStubServer(t, stub)
	svc, logs := newTestService(t, NewFacebookPublisher(srv.URL, testClient()))

	message := strings.Repeat("ß", 150)
	res, err := svc.Publish(context.Background(), Facebook, Post{PageID: "123", Message: message, AccessToken: "tok"})
	require.NoError(t, err)
	assert.Equal(t, &Result{Platform: Facebook, Status: StatusPublished, RemoteID: "123_456"}, res)

	recs := socialRecords(t, logs)
	require.Len(t, recs, 1)
	assert.Equal(t, "facebook", recs[0].Platform)
	assert.Equal(t, "123", recs[0].Target)
	assert.Equal(t, "123_456", recs[0].RemoteID)
	assert.Equal(t, strings.Repeat("ß", PreviewLength), recs[0].Preview)
	assert.Equal(t, StatusPublished, recs[0].Status)
}

func TestGraphErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		kind      error
		retryable bool
	}{
		{"expired token", http.StatusBadRequest, `{"error":{"message":"Session has expired","type":"OAuthException","code":190}}`, ErrAuthExpired, false},
		{"app throttled", http.StatusForbidden, `{"error":{"message":"Application request limit reached","code":4}}`, ErrRateLimited, true},
		{"page throttled", http.StatusBadRequest, `{"error":{"message":"Too many calls","code":32}}`, ErrRateLimited, true},
		{"plain 429", http.StatusTooManyRequests, `{}`, ErrRateLimited, true},
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"bad token"}}`, ErrAuthExpired, false},
		{"bad request", http.StatusBadRequest, `{"error":{"message":"Invalid parameter","code":100}}`, ErrVendor, false},
		{"server error", http.StatusBadGateway, `not json`, ErrVendor, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			stub := &vendorStub{status: tc.status, body: tc.body}
			srv := newStubServer(t, stub)
			svc, logs := newTestService(t, NewFacebookPublisher(srv.URL, testClient()))

			_, err := svc.Publish(context.Background(), Facebook, Post{PageID: "1", Message: "m", AccessToken: "t"})
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.kind)

			var pe *PublishError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tc.status, pe.StatusCode)
			assert.Equal(t, tc.retryable, pe.Retryable())
			assert.Equal(t, 1, stub.Hits())
			assert.Empty(t, socialRecords(t, logs))
		})
	}
}

func TestGraphErrorInSuccessfulResponse(t *testing.T) {
	stub := &vendorStub{status: http.StatusOK, body: `{"error":{"message":"Session has expired","code":190}}`}
	srv := newStubServer(t, stub)

	_, err := NewFacebookPublisher(srv.URL, testClient()).Publish(context.Background(), Post{PageID: "1", Message: "m", AccessToken: "t"})
	assert.ErrorIs(t, err, ErrAuthExpired)
}

func TestInstagramPublishTwoSteps(t *testing.T) {
	var mu sync.Mutex
	var paths []string
	record := func(p string) {
		mu.Lock()
		paths = append(paths, p)
		mu.Unlock()
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/v19.0/777/media", func(w http.ResponseWriter, r *http.Request) {
		record(r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "https://img.example/a.jpg", r.PostForm.Get("image_url"))
		_, _ = io.WriteString(w, `{"id":"container_1"}`)
	})
	mux.HandleFunc("/v19.0/777/media_publish", func(w http.ResponseWriter, r *http.Request) {
		record(r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "container_1", r.PostForm.Get("creation_id"))
		_, _ = io.WriteString(w, `{"id":"media_9"}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	res, err := NewInstagramPublisher(srv.URL, testClient()).Publish(context.Background(), Post{
		AccountID: "777", ImageURL: "https://img.example/a.jpg", Caption: "New site!", AccessToken: "t",
	})
	require.NoError(t, err)
	assert.Equal(t, "media_9", res.RemoteID)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"/v19.0/777/media", "/v19.0/777/media_publish"}, paths)
}

func TestXBearerPublish(t *testing.T) {
	stub := &vendorStub{status: http.StatusCreated, body: `{"data":{"id":"1789","text":"hello"}}`}
	stub.check = func(r *http.Request) {
		assert.Equal(t, "/2/tweets", r.URL.Path)
		assert.Equal(t, "Bearer env-token", r.Header.Get("Authorization"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "hello", body["text"])
		assert.Equal(t, map[string]any{"media_ids": []any{"m1"}}, body["media"])
	}
	srv := newStubServer(t, stub)

	res, err := NewXPublisher(srv.URL, XCredentials{BearerToken: "env-token"}, testClient()).
		Publish(context.Background(), Post{Text: "hello", MediaIDs: []string{"m1"}})
	require.NoError(t, err)
	assert.Equal(t, "1789", res.RemoteID)
}

func TestXFallsBackToOAuth1(t *testing.T) {
	var v2Hits, v1Hits int32
	mux := http.NewServeMux()
	mux.HandleFunc("/2/tweets", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&v2Hits, 1)
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"title":"Unsupported Authentication","detail":"Authenticating with OAuth 2.0 Application-Only is forbidden for this endpoint.","status":403}`)
	})
	mux.HandleFunc("/1.1/statuses/update.json", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&v1Hits, 1)
		assert.True(t, strings.HasPrefix(r.Header.Get("Authorization"), "OAuth "))
		assert.Contains(t, r.Header.Get("Authorization"), `oauth_consumer_key="ck"`)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "hello", r.PostForm.Get("status"))
		_, _ = io.WriteString(w, `{"id":1790,"id_str":"1790"}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	creds := XCredentials{BearerToken: "app", ConsumerKey: "ck", ConsumerSecret: "cs", AccessToken: "at", AccessTokenSecret: "as"}
	res, err := NewXPublisher(srv.URL, creds, testClient()).Publish(context.Background(), Post{Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "1790", res.RemoteID)
	assert.Equal(t, int32(1), atomic.LoadInt32(&v2Hits))
	assert.Equal(t, int32(1), atomic.LoadInt32(&v1Hits))
}

func TestXForbiddenWithoutFallbackIsAuthExpired(t *testing.T) {
	stub := &vendorStub{status: http.StatusForbidden, body: `{"title":"Forbidden","detail":"not permitted","status":403}`}
	srv := newStubServer(t, stub)

	_, err := NewXPublisher(srv.URL, XCredentials{BearerToken: "app"}, testClient()).Publish(context.Background(), Post{Text: "hello"})
	assert.ErrorIs(t, err, ErrAuthExpired)
	assert.Equal(t, 1, stub.Hits())
}

type fakeInserter struct {
	token string
	video *youtube.Video
	media []byte
	err   error
}

func (f *fakeInserter) Insert(_ context.Context, token string, video *youtube.Video, media io.Reader) (*youtube.Video, error) {
	f.token = token
	f.video = video
	data, err := io.ReadAll(media)
	if err != nil {
		return nil, err
	}
	f.media = data
	if f.err != nil {
		return nil, f.err
	}
	return &youtube.Video{Id: "vid_42"}, nil
}

func TestYouTubeUploadStreamsVideo(t *testing.T) {
	videoSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "fake-mp4-bytes")
	}))
	defer videoSrv.Close()

	ins := &fakeInserter{}
	pub := NewYouTubePublisherWithInserter("env-token", testClient(), ins)
	svc, logs := newTestService(t, pub)

	res, err := svc.Publish(context.Background(), YouTube, Post{
		Title:       "Bella's opening night",
		Description: "Come by",
		VideoURL:    videoSrv.URL + "/clip.mp4",
	})
	require.NoError(t, err)
	assert.Equal(t, &Result{Platform: YouTube, Status: StatusUploaded, RemoteID: "vid_42"}, res)
	assert.Equal(t, "env-token", ins.token)
	assert.Equal(t, "fake-mp4-bytes", string(ins.media))
	assert.Equal(t, "Bella's opening night", ins.video.Snippet.Title)
	assert.Equal(t, "public", ins.video.Status.PrivacyStatus)

	recs := socialRecords(t, logs)
	require.Len(t, recs, 1)
	assert.Equal(t, "Bella's opening night", recs[0].Preview)
}

func TestYouTubeErrorClassification(t *testing.T) {
	videoSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "bytes")
	}))
	defer videoSrv.Close()

	tests := []struct {
		name string
		err  error
		kind error
	}{
		{"quota", &googleapi.Error{Code: 403, Message: "quota", Errors: []googleapi.ErrorItem{{Reason: "quotaExceeded"}}}, ErrRateLimited},
		{"expired", &googleapi.Error{Code: 401, Message: "Invalid Credentials"}, ErrAuthExpired},
		{"backend", &googleapi.Error{Code: 503, Message: "backendError"}, ErrVendor},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			pub := NewYouTubePublisherWithInserter("tok", testClient(), &fakeInserter{err: tc.err})
			_, err := pub.Publish(context.Background(), Post{Title: "t", VideoURL: videoSrv.URL})
			assert.ErrorIs(t, err, tc.kind)
		})
	}
}

func TestYouTubeUnreachableVideo(t *testing.T) {
	videoSrv := httptest.NewServer(http.NotFoundHandler())
	defer videoSrv.Close()

	ins := &fakeInserter{}
	pub := NewYouTubePublisherWithInserter("tok", testClient(), ins)
	_, err := pub.Publish(context.Background(), Post{Title: "t", VideoURL: videoSrv.URL})
	assert.ErrorIs(t, err, ErrVendor)
	assert.Nil(t, ins.video)
}

func TestYouTubeUploadHonoursUploadTimeout(t *testing.T) {
	videoSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "fake-mp4-bytes")
	}))
	defer videoSrv.Close()

	auths := make(chan string, 4)
	stalled := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case auths <- r.Header.Get("Authorization"):
		default:
		}
		select {
		case <-r.Context().Done():
		case <-time.After(3 * time.Second):
		}
	}))
	defer stalled.Close()

	pub := NewYouTubePublisher("tok", testClient(), option.WithEndpoint(stalled.URL+"/")).
		WithUploadTimeout(200 * time.Millisecond)

	start := time.Now()
	_, err := pub.Publish(context.Background(), Post{Title: "t", VideoURL: videoSrv.URL})
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrVendor)
	assert.Less(t, elapsed, 2*time.Second)
	select {
	case got := <-auths:
		assert.Equal(t, "Bearer tok", got)
	case <-time.After(time.Second):
		t.Fatal("upload endpoint was never called")
	}
}

func TestYouTubeSlowVideoStream(t *testing.T) {
	const chunk, chunks = 1024, 5
	videoSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		for i := 0; i < chunks; i++ {
			if _, err := io.WriteString(w, strings.Repeat("v", chunk)); err != nil {
				return
			}
			flusher.Flush()
			time.Sleep(100 * time.Millisecond)
		}
	}))
	defer videoSrv.Close()

	t.Run("vendor client timeout does not cut the stream", func(t *testing.T) {
		ins := &fakeInserter{}
		pub := NewYouTubePublisherWithInserter("tok", &http.Client{Timeout: 200 * time.Millisecond}, ins)

		res, err := pub.Publish(context.Background(), Post{Title: "t", VideoURL: videoSrv.URL})
		require.NoError(t, err)
		assert.Equal(t, "vid_42", res.RemoteID)
		assert.Len(t, ins.media, chunk*chunks)
	})

	t.Run("upload timeout bounds the stream", func(t *testing.T) {
		ins := &fakeInserter{}
		pub := NewYouTubePublisherWithInserter("tok", testClient(), ins).
			WithUploadTimeout(150 * time.Millisecond)

		_, err := pub.Publish(context.Background(), Post{Title: "t", VideoURL: videoSrv.URL})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrVendor)
	})
}

func TestTikTokPublish(t *testing.T) {
	stub := &vendorStub{status: http.StatusOK, body: `{"data":{"publish_id":"v_pub_url~1"},"error":{"code":"ok","message":""}}`}
	stub.check = func(r *http.Request) {
		assert.Equal(t, "/v2/post/publish/video/init/", r.URL.Path)
		assert.Equal(t, "Bearer user-token", r.Header.Get("Authorization"))
		var body map[string]map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Grand opening #pizza #local", body["post_info"]["title"])
		assert.Equal(t, "PULL_FROM_URL", body["source_info"]["source"])
	}
	srv := newStubServer(t, stub)

	res, err := NewTikTokPublisher(srv.URL, "user-token", testClient()).Publish(context.Background(), Post{
		VideoURL: "https://cdn.example/v.mp4",
		Caption:  "Grand opening",
		Hashtags: []string{"pizza", "#local"},
	})
	require.NoError(t, err)
	assert.Equal(t, &Result{Platform: TikTok, Status: StatusInitiated, RemoteID: "v_pub_url~1"}, res)
}

func TestTikTokErrorCodes(t *testing.T) {
	stub := &vendorStub{status: http.StatusUnauthorized, body: `{"error":{"code":"access_token_invalid","message":"The access token is invalid"}}`}
	srv := newStubServer(t, stub)

	_, err := NewTikTokPublisher(srv.URL, "tok", testClient()).Publish(context.Background(), Post{VideoURL: "https://v/a.mp4", Caption: "c"})
	assert.ErrorIs(t, err, ErrAuthExpired)

	var pe *PublishError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "access_token_invalid", pe.VendorCode)
}

func TestServiceUnknownPlatformAndObserver(t *testing.T) {
	var outcomes []string
	logs, err := applog.NewFileStore(t.TempDir(), logger.Discard())
	require.NoError(t, err)
	svc := NewService(logs, logger.Discard(), []Publisher{NewXPublisher("http://unused", XCredentials{}, testClient())},
		WithObserver(func(p Platform, outcome string) { outcomes = append(outcomes, string(p)+":"+outcome) }))

	_, err = svc.Publish(context.Background(), Facebook, Post{})
	assert.ErrorIs(t, err, ErrUnknownPlatform)

	_, err = svc.Publish(context.Background(), X, Post{Text: "hi"})
	assert.ErrorIs(t, err, ErrInvalidPayload)

	assert.Equal(t, []string{"x:invalid_payload"}, outcomes)
	assert.Equal(t, []Platform{X}, svc.Platforms())
}

func TestParsePlatform(t *testing.T) {
	for in, want := range map[string]Platform{"fb": Facebook, "IG": Instagram, "twitter": X, "youtube": YouTube, " tiktok ": TikTok} {
		got, err := ParsePlatform(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParsePlatform("myspace")
	assert.ErrorIs(t, err, ErrUnknownPlatform)
}

func TestDefaultPublishersCoverAllPlatforms(t *testing.T) {
	svc := NewService(nil, logger.Discard(), DefaultPublishers(configForTest()))
	assert.Equal(t, Platforms, svc.Platforms())
}

func configForTest() config.SocialConfig {
	return config.SocialConfig{
		VendorTimeout:    time.Second,
		GraphBaseURL:     "https://graph.facebook.com",
		InstagramBaseURL: "https://graph.instagram.com",
		XBaseURL:         "https://api.twitter.com",
		TikTokBaseURL:    "https://open.tiktokapis.com",
	}
}
