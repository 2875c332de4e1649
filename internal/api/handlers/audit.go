package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	apierrors "github.com/buildswift/orchestrator/internal/api/errors"
	"github.com/buildswift/orchestrator/internal/applog"
	"github.com/buildswift/orchestrator/internal/models"
)

// AuditStatusNew marks a lead nobody has worked yet.
const AuditStatusNew = "new"

// AuditHandler records free site-audit requests.
type AuditHandler struct {
	logs   applog.Store
	logger *slog.Logger
}

// NewAuditHandler creates a new audit handler.
func NewAuditHandler(logs applog.Store, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{logs: logs, logger: logger}
}

// AuditRequest is the lead form payload.
type AuditRequest struct {
	Business string `json:"business"`
	Website  string `json:"website"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Industry string `json:"industry"`
}

// Create handles POST /api/audit.
func (h *AuditHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req AuditRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteBadRequest(w, r, err.Error())
		return
	}

	var errs apierrors.ValidationErrors
	business := strings.TrimSpace(req.Business)
	if business == "" {
		errs.Add("business", "business is required")
	}
	email := strings.TrimSpace(req.Email)
	if email != "" && !strings.Contains(email, "@") {
		errs.Add("email", "email must be a valid address")
	}
	if errs.HasErrors() {
		writeFieldErrors(w, r, errs)
		return
	}

	rec := &models.AuditRequestRecord{
		Business: business,
		Website:  strings.TrimSpace(req.Website),
		Email:    email,
		Phone:    strings.TrimSpace(req.Phone),
		Industry: strings.TrimSpace(req.Industry),
		Status:   AuditStatusNew,
	}
	if err := h.logs.Append(r.Context(), models.LogAuditRequests, rec); err != nil {
		WriteError(w, r, h.logger, err)
		return
	}

	h.logger.Info("audit request recorded", "business", business, "id", rec.ID)
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "id": rec.ID})
}
