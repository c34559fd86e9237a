// Package alarms exposes the alarm lifecycle and read APIs over HTTP.
package alarms

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/good-yellow-bee/opswatch/internal/alarms"
	"github.com/good-yellow-bee/opswatch/internal/api/middleware"
	"github.com/good-yellow-bee/opswatch/internal/models"
)

// Response helpers
type errorResponse struct {
	Error errorBody `json:"error"`
}
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
type dataResponse struct {
	Data any `json:"data"`
}

func jsonError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(errorResponse{Error: errorBody{Code: code, Message: message}}); err != nil {
		log.Printf("json encode error: %v", err)
	}
}

func jsonOK(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(dataResponse{Data: data}); err != nil {
		log.Printf("json encode error: %v", err)
	}
}

// Handler handles alarm endpoints.
type Handler struct {
	manager *alarms.Manager
}

// NewHandler creates an alarm handler backed by the given manager.
func NewHandler(manager *alarms.Manager) *Handler {
	return &Handler{manager: manager}
}

// List returns the active alarm set, newest first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	items := h.manager.Active()
	jsonOK(w, map[string]any{"items": items, "count": len(items)})
}

// Get returns one active alarm.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	alarm, err := h.manager.Get(chi.URLParam(r, "id"))
	if err != nil {
		jsonError(w, http.StatusNotFound, "NOT_FOUND", "alarm not found")
		return
	}
	jsonOK(w, alarm)
}

// AckRequest carries the optional operator note for acknowledgement.
type AckRequest struct {
	Note string `json:"note,omitempty"`
}

// actor resolves who performed a lifecycle action: the authenticated token
// subject when present, otherwise "api".
func actor(r *http.Request) string {
	if s := middleware.GetSubject(r.Context()); s != "" {
		return s
	}
	return "api"
}

// Acknowledge marks an alarm acknowledged.
func (h *Handler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	var req AckRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			jsonError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body")
			return
		}
	}

	alarm, err := h.manager.Acknowledge(chi.URLParam(r, "id"), actor(r), req.Note)
	if err != nil {
		if errors.Is(err, alarms.ErrAlarmNotFound) {
			jsonError(w, http.StatusNotFound, "NOT_FOUND", "alarm not found")
			return
		}
		jsonError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	jsonOK(w, alarm)
}

// Resolve marks an alarm resolved and removes it from the active set.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	alarm, err := h.manager.Resolve(chi.URLParam(r, "id"), actor(r))
	if err != nil {
		if errors.Is(err, alarms.ErrAlarmNotFound) {
			jsonError(w, http.StatusNotFound, "NOT_FOUND", "alarm not found")
			return
		}
		jsonError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	jsonOK(w, alarm)
}

// Clear clears one alarm by ID.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	alarm, err := h.manager.ClearByID(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, alarms.ErrAlarmNotFound) {
			jsonError(w, http.StatusNotFound, "NOT_FOUND", "alarm not found")
			return
		}
		jsonError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	jsonOK(w, alarm)
}

// ClearAll clears the whole active set, or only one rule's alarms when
// rule_id is given.
func (h *Handler) ClearAll(w http.ResponseWriter, r *http.Request) {
	var cleared int
	if ruleID := r.URL.Query().Get("rule_id"); ruleID != "" {
		cleared = h.manager.ClearByRule(ruleID)
	} else {
		cleared = h.manager.ClearAll()
	}
	jsonOK(w, map[string]int{"cleared": cleared})
}

// History returns filtered, paginated alarm history, newest first.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	query := alarms.HistoryQuery{
		Status:    models.AlarmStatus(q.Get("status")),
		RuleID:    q.Get("rule_id"),
		EventType: q.Get("event_type"),
		Limit:     50,
	}
	for param, dst := range map[string]*int{"limit": &query.Limit, "offset": &query.Offset} {
		if v := q.Get(param); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				jsonError(w, http.StatusBadRequest, "VALIDATION_FAILED", param+" must be a non-negative integer")
				return
			}
			*dst = n
		}
	}

	items := h.manager.History(query)
	jsonOK(w, map[string]any{
		"items":  items,
		"count":  len(items),
		"limit":  query.Limit,
		"offset": query.Offset,
	})
}

// Stats returns active-set and history counters.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	jsonOK(w, h.manager.GetStats())
}
