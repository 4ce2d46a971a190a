package notify

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/agentdesk/internal/api"
	"github.com/ashureev/agentdesk/internal/domain"
	"github.com/ashureev/agentdesk/internal/identity"
)

const maxNotificationBodyBytes = 64 << 10

// CreateRequest is the body of POST /api/notifications.
type CreateRequest struct {
	Title    string         `json:"title"`
	Message  string         `json:"message"`
	Kind     string         `json:"type"`
	Metadata map[string]any `json:"metadata"`
}

// Handler serves the notification REST endpoints and the live stream.
type Handler struct {
	svc    *Service
	stream *StreamHandler
}

// NewHandler creates a notification handler.
func NewHandler(svc *Service, stream *StreamHandler) *Handler {
	return &Handler{svc: svc, stream: stream}
}

// RegisterRoutes registers notification routes relative to the /api mount
// (requires authentication).
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/notifications", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/unread-count", h.UnreadCount)
		r.Post("/read-all", h.MarkAllRead)
		r.Post("/{id}/read", h.MarkRead)
		r.Delete("/{id}", h.Delete)
		if h.stream != nil {
			r.Get("/stream", h.stream.ServeHTTP)
		}
	})
}

// List handles GET /api/notifications?limit=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit := DefaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			api.Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	items, err := h.svc.List(r.Context(), identity.OperatorIDFromContext(r.Context()), limit)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	if items == nil {
		items = []*domain.Notification{}
	}
	api.JSON(w, http.StatusOK, items)
}

// Create handles POST /api/notifications. The caller is always the owner.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if !api.DecodeJSON(w, r, maxNotificationBodyBytes, &req) {
		return
	}
	kind, err := domain.ParseNotificationKind(req.Kind)
	if err != nil {
		api.WriteError(w, err)
		return
	}

	n, err := h.svc.Create(r.Context(), identity.OperatorIDFromContext(r.Context()), req.Title, req.Message, kind, req.Metadata)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.JSON(w, http.StatusCreated, n)
}

// UnreadCount handles GET /api/notifications/unread-count.
func (h *Handler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.svc.UnreadCount(r.Context(), identity.OperatorIDFromContext(r.Context()))
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, map[string]int{"unread": count})
}

// MarkRead handles POST /api/notifications/{id}/read.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.MarkRead(r.Context(), identity.OperatorIDFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		api.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MarkAllRead handles POST /api/notifications/read-all.
func (h *Handler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.MarkAllRead(r.Context(), identity.OperatorIDFromContext(r.Context()))
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, map[string]int64{"updated": n})
}

// Delete handles DELETE /api/notifications/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), identity.OperatorIDFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		api.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
