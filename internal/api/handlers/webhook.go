package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/buildswift/orchestrator/internal/fulfillment"
	"github.com/buildswift/orchestrator/internal/models"
	"github.com/buildswift/orchestrator/internal/payments"
	"github.com/buildswift/orchestrator/pkg/logger"
)

// maxWebhookBytes bounds a webhook delivery body.
const maxWebhookBytes = 1 << 20

// WebhookVerifier authenticates and parses a raw webhook delivery.
type WebhookVerifier interface {
	VerifyWebhook(payload []byte, signature string) (*models.PaymentEvent, error)
}

// EventProcessor applies a verified event exactly once.
type EventProcessor interface {
	Handle(ctx context.Context, event *models.PaymentEvent) (*fulfillment.Result, error)
}

// WebhookObserver is told the outcome of every delivery.
type WebhookObserver func(kind models.EventKind, outcome string)

// WebhookHandler handles POST /webhook.
type WebhookHandler struct {
	verifier  WebhookVerifier
	processor EventProcessor
	observe   WebhookObserver
	logger    *slog.Logger
}

// NewWebhookHandler creates a new webhook handler. observe may be nil.
func NewWebhookHandler(verifier WebhookVerifier, processor EventProcessor, observe WebhookObserver, logger *slog.Logger) *WebhookHandler {
	if observe == nil {
		observe = func(models.EventKind, string) {}
	}
	return &WebhookHandler{
		verifier:  verifier,
		processor: processor,
		observe:   observe,
		logger:    logger,
	}
}

// WebhookResponse acknowledges a delivery.
type WebhookResponse struct {
	OK      bool                `json:"ok"`
	Outcome fulfillment.Outcome `json:"outcome"`
	Slug    string              `json:"slug,omitempty"`
	Domain  string              `json:"domain,omitempty"`
}

// Receive verifies the delivery, then hands it to the processor. Unverified
// deliveries are rejected before anything else happens. A failed build
// answers 503 so the processor redelivers.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		WriteBadRequest(w, r, "could not read webhook body")
		return
	}

	event, err := h.verifier.VerifyWebhook(payload, r.Header.Get(payments.SignatureHeader))
	if err != nil {
		outcome := "invalid_payload"
		if errors.Is(err, payments.ErrInvalidSignature) {
			outcome = "invalid_signature"
		}
		h.logger.Warn("webhook rejected",
			"reason", outcome,
			"error", err,
			"remote_addr", r.RemoteAddr,
			"request_id", middleware.GetReqID(r.Context()),
		)
		h.observe("unverified", outcome)
		WriteError(w, r, h.logger, err)
		return
	}

	ctx := logger.ContextWithEventID(r.Context(), event.ID)
	result, err := h.processor.Handle(ctx, event)
	if err != nil {
		h.observe(event.Kind, "failed")
		WriteError(w, r, h.logger, err)
		return
	}

	h.observe(event.Kind, string(result.Outcome))
	WriteJSON(w, http.StatusOK, WebhookResponse{
		OK:      true,
		Outcome: result.Outcome,
		Slug:    result.Slug,
		Domain:  result.Domain,
	})
}
