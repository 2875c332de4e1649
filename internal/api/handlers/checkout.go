package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"unicode"

	apierrors "github.com/buildswift/orchestrator/internal/api/errors"
	"github.com/buildswift/orchestrator/internal/builder"
	"github.com/buildswift/orchestrator/internal/payments"
)

// CheckoutCreator opens hosted checkout sessions.
type CheckoutCreator interface {
	CreateCheckoutSession(ctx context.Context, req payments.CheckoutRequest) (*payments.CheckoutSession, error)
}

// CheckoutHandler handles POST /api/checkout.
type CheckoutHandler struct {
	gateway CheckoutCreator
	logger  *slog.Logger
}

// NewCheckoutHandler creates a new checkout handler.
func NewCheckoutHandler(gateway CheckoutCreator, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{gateway: gateway, logger: logger}
}

// validateCheckout normalizes req and checks the business fields before any
// processor call.
func validateCheckout(req *payments.CheckoutRequest) apierrors.ValidationErrors {
	var errs apierrors.ValidationErrors
	req.BusinessName = strings.TrimSpace(req.BusinessName)
	req.Email = strings.TrimSpace(req.Email)
	req.Industry = strings.TrimSpace(req.Industry)
	req.Package = strings.TrimSpace(req.Package)

	switch {
	case req.BusinessName == "":
		errs.Add("business_name", "business_name is required")
	case len(req.BusinessName) > builder.MaxNameLength:
		errs.Add("business_name", "business_name is too long")
	case strings.IndexFunc(req.BusinessName, unicode.IsControl) >= 0:
		errs.Add("business_name", "business_name must not contain control characters")
	}
	if req.Email != "" && !strings.Contains(req.Email, "@") {
		errs.Add("email", "email must be a valid address")
	}
	return errs
}

// Create handles POST /api/checkout.
func (h *CheckoutHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req payments.CheckoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteBadRequest(w, r, err.Error())
		return
	}
	if errs := validateCheckout(&req); errs.HasErrors() {
		writeFieldErrors(w, r, errs)
		return
	}
	req.BaseURL = requestOrigin(r)

	session, err := h.gateway.CreateCheckoutSession(r.Context(), req)
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, session)
}

// requestOrigin reconstructs the public origin of r.
func requestOrigin(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto == "http" || proto == "https" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}
