// Package rules exposes rule CRUD over HTTP.
package rules

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/good-yellow-bee/opswatch/internal/models"
	"github.com/good-yellow-bee/opswatch/internal/rules"
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

// Handler handles rule endpoints.
type Handler struct {
	engine *rules.Engine
}

// NewHandler creates a rule handler backed by the given engine.
func NewHandler(engine *rules.Engine) *Handler {
	return &Handler{engine: engine}
}

// List returns all registered rules in registration order.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	items := h.engine.Rules()
	jsonOK(w, map[string]any{"items": items, "count": len(items)})
}

// Get returns one rule by ID.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rule, ok := h.engine.GetRule(id)
	if !ok {
		jsonError(w, http.StatusNotFound, "NOT_FOUND", "rule not found")
		return
	}
	jsonOK(w, rule)
}

// Create registers a new rule. The ID is assigned when absent.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var rule models.Rule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		jsonError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body")
		return
	}

	if err := h.engine.RegisterRule(&rule); err != nil {
		jsonError(w, http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
		return
	}
	jsonCreated(w, &rule)
}

// Update replaces an existing rule, keeping its creation timestamp.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var rule models.Rule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		jsonError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body")
		return
	}
	rule.ID = chi.URLParam(r, "id")

	if err := h.engine.UpdateRule(&rule); err != nil {
		if errors.Is(err, rules.ErrRuleNotFound) {
			jsonError(w, http.StatusNotFound, "NOT_FOUND", "rule not found")
			return
		}
		jsonError(w, http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
		return
	}
	jsonOK(w, &rule)
}

// Delete removes a rule.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.engine.RemoveRule(id) {
		jsonError(w, http.StatusNotFound, "NOT_FOUND", "rule not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Stats returns engine counters.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	jsonOK(w, h.engine.Stats())
}
