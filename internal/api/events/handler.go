// Package events exposes the event bus over HTTP: inbound publish and the
// bounded history read API.
package events

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/good-yellow-bee/opswatch/internal/bus"
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

func jsonCreated(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(dataResponse{Data: data}); err != nil {
		log.Printf("json encode error: %v", err)
	}
}

// Handler handles event endpoints.
type Handler struct {
	bus *bus.Bus
}

// NewHandler creates an event handler backed by the given bus.
func NewHandler(b *bus.Bus) *Handler {
	return &Handler{bus: b}
}

// PublishRequest is the inbound event payload. ID and timestamp are
// assigned on publish when absent.
type PublishRequest struct {
	Type      string         `json:"type"`
	Source    string         `json:"source"`
	Timestamp string         `json:"timestamp,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// Publish accepts one event and returns its normalized form.
func (h *Handler) Publish(w http.ResponseWriter, r *http.Request) {
	var req PublishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body")
		return
	}
	if req.Type == "" {
		jsonError(w, http.StatusBadRequest, "VALIDATION_FAILED", "type is required")
		return
	}
	if req.Source == "" {
		jsonError(w, http.StatusBadRequest, "VALIDATION_FAILED", "source is required")
		return
	}

	evt := &models.Event{
		Type:   req.Type,
		Source: req.Source,
		Data:   req.Data,
	}
	if req.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339, req.Timestamp)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "VALIDATION_FAILED", "timestamp must be RFC3339")
			return
		}
		evt.Timestamp = ts
	}

	jsonCreated(w, h.bus.Publish(evt))
}

// List returns events from the bounded history, newest first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := bus.Filter{
		Type:   q.Get("type"),
		Source: q.Get("source"),
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			jsonError(w, http.StatusBadRequest, "VALIDATION_FAILED", "limit must be a non-negative integer")
			return
		}
		filter.Limit = limit
	}
	for param, dst := range map[string]*time.Time{"since": &filter.Since, "until": &filter.Until} {
		if v := q.Get(param); v != "" {
			ts, err := time.Parse(time.RFC3339, v)
			if err != nil {
				jsonError(w, http.StatusBadRequest, "VALIDATION_FAILED", param+" must be RFC3339")
				return
			}
			*dst = ts
		}
	}

	items := h.bus.GetEvents(filter)
	jsonOK(w, map[string]any{"items": items, "count": len(items)})
}

// Stats returns bus counters.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	jsonOK(w, h.bus.Stats())
}
