// Package aircraft exposes the aircraft tracker over HTTP: telemetry
// ingestion and the track table read API.
package aircraft

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/good-yellow-bee/opswatch/internal/models"
	"github.com/good-yellow-bee/opswatch/internal/tracker"
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

// Handler handles aircraft endpoints.
type Handler struct {
	tracker *tracker.Tracker
}

// NewHandler creates an aircraft handler backed by the given tracker.
func NewHandler(t *tracker.Tracker) *Handler {
	return &Handler{tracker: t}
}

// ReportRequest is one inbound position report.
type ReportRequest struct {
	ICAO24    string  `json:"icao24"`
	Callsign  string  `json:"callsign,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Altitude  float64 `json:"altitude"`
	Speed     float64 `json:"speed"`
	Heading   float64 `json:"heading"`
	Squawk    string  `json:"squawk,omitempty"`
	Timestamp string  `json:"timestamp,omitempty"`
}

// Report ingests one position report. Responds with the updated track, or
// an empty body when the aircraft is outside the tracking radius.
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	var req ReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body")
		return
	}
	if req.ICAO24 == "" {
		jsonError(w, http.StatusBadRequest, "VALIDATION_FAILED", "icao24 is required")
		return
	}
	if req.Latitude < -90 || req.Latitude > 90 || req.Longitude < -180 || req.Longitude > 180 {
		jsonError(w, http.StatusBadRequest, "VALIDATION_FAILED", "coordinates out of range")
		return
	}

	report := models.AircraftReport{
		ICAO24:    req.ICAO24,
		Callsign:  req.Callsign,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		Altitude:  req.Altitude,
		Speed:     req.Speed,
		Heading:   req.Heading,
		Squawk:    req.Squawk,
	}
	if req.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339, req.Timestamp)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "VALIDATION_FAILED", "timestamp must be RFC3339")
			return
		}
		report.Timestamp = ts
	}

	track := h.tracker.ProcessUpdate(report)
	if track == nil {
		jsonOK(w, map[string]any{"tracked": false})
		return
	}
	jsonOK(w, track)
}

// List returns all tracked aircraft, most recently seen first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	items := h.tracker.Tracks()
	jsonOK(w, map[string]any{"items": items, "count": len(items)})
}

// Get returns one track by ICAO24 address.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	track, ok := h.tracker.Get(chi.URLParam(r, "icao24"))
	if !ok {
		jsonError(w, http.StatusNotFound, "NOT_FOUND", "aircraft not tracked")
		return
	}
	jsonOK(w, track)
}

// History returns recent processed reports, newest first.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			jsonError(w, http.StatusBadRequest, "VALIDATION_FAILED", "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	items := h.tracker.History(limit)
	jsonOK(w, map[string]any{"items": items, "count": len(items)})
}

// Stats returns tracker counters.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	jsonOK(w, h.tracker.GetStats())
}
