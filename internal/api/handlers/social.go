package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/buildswift/orchestrator/internal/applog"
	"github.com/buildswift/orchestrator/internal/models"
	"github.com/buildswift/orchestrator/internal/social"
)

// RecentPostsLimit is how many posts GET /meta/posts returns.
const RecentPostsLimit = 20

// ServerName is reported by GET /meta/status.
const ServerName = "buildswift"

// Publisher publishes a post to one platform.
type Publisher interface {
	Publish(ctx context.Context, platform social.Platform, post social.Post) (*social.Result, error)
	Platforms() []social.Platform
}

// SocialHandler handles the /meta endpoints.
type SocialHandler struct {
	publisher Publisher
	logs      applog.Store
	logger    *slog.Logger
	now       func() time.Time
}

// NewSocialHandler creates a new social handler.
func NewSocialHandler(publisher Publisher, logs applog.Store, logger *slog.Logger) *SocialHandler {
	return &SocialHandler{
		publisher: publisher,
		logs:      logs,
		logger:    logger,
		now:       time.Now,
	}
}

// PublishResponse reports an accepted publish.
type PublishResponse struct {
	Status   string          `json:"status"`
	PostID   string          `json:"post_id"`
	Platform social.Platform `json:"platform"`
	Message  string          `json:"message"`
}

// Publish returns a handler that publishes the request body to platform.
func (h *SocialHandler) Publish(platform social.Platform) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var post social.Post
		if err := decodeJSON(w, r, &post); err != nil {
			WriteBadRequest(w, r, err.Error())
			return
		}

		res, err := h.publisher.Publish(r.Context(), platform, post)
		if err != nil {
			WriteError(w, r, h.logger, err)
			return
		}

		WriteJSON(w, http.StatusOK, PublishResponse{
			Status:   res.Status,
			PostID:   res.RemoteID,
			Platform: res.Platform,
			Message:  "Post " + res.Status + " successfully",
		})
	}
}

// StatusResponse is the body of GET /meta/status.
type StatusResponse struct {
	Status    string            `json:"status"`
	Server    string            `json:"server"`
	Timestamp time.Time         `json:"timestamp"`
	Platforms []social.Platform `json:"platforms"`
}

// Status handles GET /meta/status.
func (h *SocialHandler) Status(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, StatusResponse{
		Status:    "connected",
		Server:    ServerName,
		Timestamp: h.now().UTC(),
		Platforms: h.publisher.Platforms(),
	})
}

// RecentPost is one entry of GET /meta/posts.
type RecentPost struct {
	ID        string    `json:"id"`
	Platform  string    `json:"platform"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Posts handles GET /meta/posts.
func (h *SocialHandler) Posts(w http.ResponseWriter, r *http.Request) {
	entries, err := h.logs.Tail(r.Context(), models.LogSocialPosts, RecentPostsLimit)
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	records, err := applog.Decode[models.SocialPostRecord](entries)
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}

	posts := make([]RecentPost, 0, len(records))
	for _, rec := range records {
		id := rec.RemoteID
		if id == "" {
			id = rec.ID
		}
		posts = append(posts, RecentPost{
			ID:        id,
			Platform:  rec.Platform,
			Content:   rec.Preview,
			Timestamp: rec.Timestamp,
		})
	}
	WriteJSON(w, http.StatusOK, posts)
}
