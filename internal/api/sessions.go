package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ashureev/agentdesk/internal/domain"
	"github.com/ashureev/agentdesk/internal/identity"
)

const maxSessionBodyBytes = 64 << 10

// CreateSessionRequest is the body of POST /api/sessions.
type CreateSessionRequest struct {
	AgentType string  `json:"agent_type"`
	ClientID  *string `json:"client_id"`
}

// CreateClientRequest is the body of POST /api/clients.
type CreateClientRequest struct {
	Name string `json:"name"`
}

// SessionHandler serves operator, client and chat session endpoints.
type SessionHandler struct {
	*Handler
	now func() time.Time
}

// NewSessionHandler creates a session handler.
func NewSessionHandler(base *Handler) *SessionHandler {
	return &SessionHandler{Handler: base, now: time.Now}
}

// RegisterPublicRoutes registers routes that need no identity.
func (h *SessionHandler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/health", h.Health)
}

// RegisterRoutes registers session routes relative to the /api mount
// (requires authentication).
func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Get("/me", h.GetMe)
	r.Post("/clients", h.CreateClient)
	r.Post("/sessions", h.CreateSession)
	r.Get("/sessions", h.ListSessions)
}

// Health reports database reachability.
func (h *SessionHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.repo.Ping(ctx); err != nil {
		Error(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetMe returns the calling operator.
func (h *SessionHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	op, err := h.repo.GetOperator(r.Context(), identity.OperatorIDFromContext(r.Context()))
	if err != nil {
		WriteError(w, err)
		return
	}
	JSON(w, http.StatusOK, op)
}

// CreateClient registers a CRM client owned by the caller.
func (h *SessionHandler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req CreateClientRequest
	if !DecodeJSON(w, r, maxSessionBodyBytes, &req) {
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		WriteError(w, fmt.Errorf("%w: name is required", domain.ErrValidation))
		return
	}

	client := &domain.Client{
		ID:        uuid.NewString(),
		OwnerID:   identity.OperatorIDFromContext(r.Context()),
		Name:      name,
		CreatedAt: h.now(),
	}
	if err := h.repo.CreateClient(r.Context(), client); err != nil {
		WriteError(w, err)
		return
	}
	JSON(w, http.StatusCreated, client)
}

// CreateSession opens a chat session owned by the caller.
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	operatorID := identity.OperatorIDFromContext(r.Context())

	var req CreateSessionRequest
	if !DecodeJSON(w, r, maxSessionBodyBytes, &req) {
		return
	}
	agentType, err := domain.ParseAgentType(req.AgentType)
	if err != nil {
		WriteError(w, err)
		return
	}

	var clientID *string
	if req.ClientID != nil && strings.TrimSpace(*req.ClientID) != "" {
		client, err := h.repo.GetClient(r.Context(), strings.TrimSpace(*req.ClientID))
		if err != nil {
			WriteError(w, err)
			return
		}
		if client.OwnerID != operatorID {
			WriteError(w, fmt.Errorf("client %s: %w", client.ID, domain.ErrForbidden))
			return
		}
		clientID = &client.ID
	}

	now := h.now()
	session := &domain.ChatSession{
		ID:           uuid.NewString(),
		OwnerID:      operatorID,
		AgentOwnerID: operatorID,
		AgentType:    agentType,
		ClientID:     clientID,
		Status:       domain.SessionStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := h.repo.CreateSession(r.Context(), session); err != nil {
		WriteError(w, err)
		return
	}
	JSON(w, http.StatusCreated, session)
}

// ListSessions returns sessions the caller is the operator of record for.
func (h *SessionHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.repo.ListSessionsByAgentOwner(r.Context(), identity.OperatorIDFromContext(r.Context()))
	if err != nil {
		WriteError(w, err)
		return
	}
	if sessions == nil {
		sessions = []*domain.ChatSession{}
	}
	JSON(w, http.StatusOK, sessions)
}
