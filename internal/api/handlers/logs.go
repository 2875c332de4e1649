package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/buildswift/orchestrator/internal/applog"
	"github.com/buildswift/orchestrator/internal/models"
)

// LogHandler serves the append-only logs to operators.
type LogHandler struct {
	logs   applog.Store
	logger *slog.Logger
}

// NewLogHandler creates a new log handler.
func NewLogHandler(logs applog.Store, logger *slog.Logger) *LogHandler {
	return &LogHandler{logs: logs, logger: logger}
}

// List returns a handler that writes every entry of name, oldest first.
func (h *LogHandler) List(name models.LogName) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := h.logs.List(r.Context(), name)
		if err != nil {
			WriteError(w, r, h.logger, err)
			return
		}
		if entries == nil {
			entries = []json.RawMessage{}
		}
		WriteJSON(w, http.StatusOK, entries)
	}
}
