package agent

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ashureev/agentdesk/internal/api"
	"github.com/ashureev/agentdesk/internal/config"
	"github.com/ashureev/agentdesk/internal/domain"
	"github.com/ashureev/agentdesk/internal/identity"
	"github.com/ashureev/agentdesk/internal/llm"
)

// defaultMaxRequestBodySize is the default maximum allowed request body size (1MB).
const defaultMaxRequestBodySize = 1 << 20

// Client-facing error messages for provider failures.
const (
	MsgRateLimited     = "Rate limit exceeded. Please try again later."
	MsgPaymentRequired = "Payment required. Please add credits."
)

// Handler serves the relay endpoints.
type Handler struct {
	svc         *Service
	rateLimiter *RateLimiter
	maxBodySize int64
}

// NewHandler creates a relay handler. cfg may be nil for defaults.
func NewHandler(svc *Service, cfg *config.Config) *Handler {
	// Use config values if available, otherwise use defaults
	rateLimitRequests := 10
	rateLimitWindow := time.Minute
	maxBodySize := int64(defaultMaxRequestBodySize)

	if cfg != nil {
		rateLimitRequests = cfg.RateLimit.RequestsPerWindow
		rateLimitWindow = cfg.RateLimit.WindowDuration
		if cfg.MaxRequestBodySize > 0 {
			maxBodySize = cfg.MaxRequestBodySize
		}
	}

	return &Handler{
		svc:         svc,
		rateLimiter: NewRateLimiter(rateLimitRequests, rateLimitWindow),
		maxBodySize: maxBodySize,
	}
}

// RegisterRoutes registers relay routes (requires authentication).
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/ai-agent-chat", h.HandleChat)
	r.Post("/coach-evaluate", h.HandleEvaluate)
}

// Close stops the rate limiter.
func (h *Handler) Close() {
	h.rateLimiter.Close()
}

// HandleChat handles POST /ai-agent-chat.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	operatorID, ok := h.admit(w, r)
	if !ok {
		return
	}

	var req ChatRequest
	if !h.decode(w, r, &req) {
		return
	}

	slog.Info("Relay chat request",
		"operator_id", operatorID,
		"session_id", req.sessionID(),
		"agent_type", req.AgentType,
		"message_length", len(req.Message),
		"context_turns", len(req.Context),
		"request_id", chiMiddleware.GetReqID(r.Context()),
	)

	content, err := h.svc.Chat(r.Context(), operatorID, req)
	if err != nil {
		writeRelayError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, ChatResponse{Content: content})
}

// HandleEvaluate handles POST /coach-evaluate.
func (h *Handler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	operatorID, ok := h.admit(w, r)
	if !ok {
		return
	}

	var req EvaluateRequest
	if !h.decode(w, r, &req) {
		return
	}

	eval, err := h.svc.Evaluate(r.Context(), operatorID, req.Messages)
	if err != nil {
		writeRelayError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, eval)
}

// admit checks identity and the per-operator rate limit.
func (h *Handler) admit(w http.ResponseWriter, r *http.Request) (string, bool) {
	operatorID := identity.OperatorIDFromContext(r.Context())
	if operatorID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return "", false
	}
	if !h.rateLimiter.Allow(operatorID) {
		api.Error(w, http.StatusTooManyRequests, MsgRateLimited)
		return "", false
	}
	return operatorID, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	return api.DecodeJSON(w, r, h.maxBodySize, v)
}

// writeRelayError maps service and provider errors to status codes.
func writeRelayError(w http.ResponseWriter, err error) {
	var llmErr *llm.Error
	switch {
	case errors.Is(err, domain.ErrValidation):
		api.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		api.Error(w, http.StatusNotFound, "chat session not found")
	case errors.Is(err, domain.ErrForbidden):
		api.Error(w, http.StatusForbidden, "chat session belongs to another operator")
	case errors.As(err, &llmErr):
		switch llmErr.Kind {
		case llm.KindRateLimited:
			api.Error(w, http.StatusTooManyRequests, MsgRateLimited)
		case llm.KindPaymentRequired:
			api.Error(w, http.StatusPaymentRequired, MsgPaymentRequired)
		default:
			slog.Error("AI gateway error", "status", llmErr.Status, "error", err)
			if llmErr.Status != 0 {
				api.Error(w, http.StatusInternalServerError, fmt.Sprintf("AI gateway error: %d", llmErr.Status))
				return
			}
			api.Error(w, http.StatusInternalServerError, "AI gateway unavailable")
		}
	default:
		slog.Error("Relay request failed", "error", err)
		api.Error(w, http.StatusInternalServerError, "internal server error")
	}
}
