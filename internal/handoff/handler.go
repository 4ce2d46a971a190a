package handoff

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/agentdesk/internal/api"
	"github.com/ashureev/agentdesk/internal/domain"
	"github.com/ashureev/agentdesk/internal/identity"
)

const maxHandoffBodyBytes = 16 << 10

// RequestBody is the body of POST /api/sessions/{id}/handoff.
type RequestBody struct {
	Reason string `json:"reason"`
}

// Handler serves the handoff endpoints.
type Handler struct {
	coord *Coordinator
}

// NewHandler creates a handoff handler.
func NewHandler(coord *Coordinator) *Handler {
	return &Handler{coord: coord}
}

// RegisterRoutes registers handoff routes relative to the /api mount
// (requires authentication).
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/sessions/{id}/handoff", h.Request)
	r.Post("/sessions/{id}/handoff/{requestID}/accept", h.Accept)
	r.Get("/sessions/{id}/messages", h.History)
	r.Get("/handoffs/available", h.Available)
	r.Get("/handoffs/pending", h.Pending)
}

// Request handles POST /api/sessions/{id}/handoff. The body is optional.
func (h *Handler) Request(w http.ResponseWriter, r *http.Request) {
	var body RequestBody
	if r.ContentLength != 0 && !api.DecodeJSON(w, r, maxHandoffBodyBytes, &body) {
		return
	}

	req, err := h.coord.RequestHandoff(r.Context(), identity.OperatorIDFromContext(r.Context()), chi.URLParam(r, "id"), body.Reason)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.JSON(w, http.StatusCreated, req)
}

// Accept handles POST /api/sessions/{id}/handoff/{requestID}/accept.
func (h *Handler) Accept(w http.ResponseWriter, r *http.Request) {
	req, err := h.coord.AcceptHandoff(r.Context(), identity.OperatorIDFromContext(r.Context()),
		chi.URLParam(r, "id"), chi.URLParam(r, "requestID"))
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, req)
}

// History handles GET /api/sessions/{id}/messages.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.coord.History(r.Context(), identity.OperatorIDFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		api.WriteError(w, err)
		return
	}
	if msgs == nil {
		msgs = []*domain.Message{}
	}
	api.JSON(w, http.StatusOK, msgs)
}

// Available handles GET /api/handoffs/available.
func (h *Handler) Available(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.coord.ListAvailable(r.Context(), identity.OperatorIDFromContext(r.Context()))
	if err != nil {
		api.WriteError(w, err)
		return
	}
	if sessions == nil {
		sessions = []*domain.AvailableSession{}
	}
	api.JSON(w, http.StatusOK, sessions)
}

// Pending handles GET /api/handoffs/pending.
func (h *Handler) Pending(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.coord.ListPending(r.Context(), identity.OperatorIDFromContext(r.Context()))
	if err != nil {
		api.WriteError(w, err)
		return
	}
	if reqs == nil {
		reqs = []*domain.HandoffRequest{}
	}
	api.JSON(w, http.StatusOK, reqs)
}
