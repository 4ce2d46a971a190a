package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ashureev/agentdesk/internal/agent"
	"github.com/ashureev/agentdesk/internal/domain"
	"github.com/ashureev/agentdesk/internal/llm"
)

// FallbackReply is appended when a send fails so the transcript never ends
// on an unanswered user turn.
const FallbackReply = "I'm having trouble connecting right now. Please try again in a moment."

var (
	// ErrEmptyMessage rejects whitespace-only input before any network call.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrSendInFlight rejects a send while another one awaits its reply.
	ErrSendInFlight = errors.New("a message is already being sent")
	// ErrClosed is returned once the orchestrator has been closed.
	ErrClosed = errors.New("conversation closed")
	// ErrReset is returned by a Send whose conversation was reset before
	// the reply arrived. The reply is discarded.
	ErrReset = errors.New("conversation was reset")
)

// Relay is the server side of a conversation.
type Relay interface {
	Chat(ctx context.Context, req agent.ChatRequest) (string, error)
	Evaluate(ctx context.Context, turns []domain.Turn) (domain.Evaluation, error)
}

// SessionCreator persists a new chat session and returns its id.
type SessionCreator interface {
	CreateSession(ctx context.Context, agentType domain.AgentType, clientID *string) (string, error)
}

// Notifier delivers best-effort notifications. Implementations must not block for long.
type Notifier interface {
	Notify(ctx context.Context, title, message string, kind domain.NotificationKind, metadata map[string]any)
}

// SendErrorKind classifies a failed send for display.
type SendErrorKind string

const (
	SendRateLimited     SendErrorKind = "rate_limited"
	SendPaymentRequired SendErrorKind = "payment_required"
	SendFailed          SendErrorKind = "failed"
)

// SendError is returned by Send when the relay call failed. The fallback
// reply has already been appended.
type SendError struct {
	Kind SendErrorKind
	Err  error
}

func (e *SendError) Error() string {
	switch e.Kind {
	case SendRateLimited:
		return "Rate limit exceeded. Please try again later."
	case SendPaymentRequired:
		return "Credits required. Please add credits to continue."
	default:
		return "Failed to send message. Please try again."
	}
}

func (e *SendError) Unwrap() error { return e.Err }

func classify(err error) SendErrorKind {
	var relayErr *RelayError
	if errors.As(err, &relayErr) {
		switch relayErr.Status {
		case http.StatusTooManyRequests:
			return SendRateLimited
		case http.StatusPaymentRequired:
			return SendPaymentRequired
		}
	}
	switch llm.KindOf(err) {
	case llm.KindRateLimited:
		return SendRateLimited
	case llm.KindPaymentRequired:
		return SendPaymentRequired
	}
	return SendFailed
}

// Entry is one message in the local transcript.
type Entry struct {
	ID        string
	Role      domain.Role
	Content   string
	CreatedAt time.Time
	// Pending marks a user turn still waiting for its reply.
	Pending bool
	// Fallback marks the canned reply appended after a failed send.
	Fallback bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithNotifier sets the hook used after a successful evaluation.
func WithNotifier(n Notifier) Option {
	return func(o *Orchestrator) { o.notifier = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// Orchestrator holds one conversation with one agent persona. The
// transcript is a confirmed log plus an overlay of pending user turns.
// Send must not be called concurrently; a second call fails with ErrSendInFlight.
type Orchestrator struct {
	relay     Relay
	sessions  SessionCreator
	notifier  Notifier
	agentType domain.AgentType
	logger    *slog.Logger
	now       func() time.Time

	mu        sync.Mutex
	sessionID string
	log       []Entry
	pending   []Entry
	inFlight  bool
	closed    bool

	// generation is bumped by Reset; a reply from an older generation is dropped.
	generation uint64
}

// NewOrchestrator creates an orchestrator for agentType.
func NewOrchestrator(relay Relay, sessions SessionCreator, agentType domain.AgentType, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		relay:     relay,
		sessions:  sessions,
		agentType: agentType,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Initialize creates the server-side session. On failure the orchestrator
// keeps working without persistence and the error is returned.
func (o *Orchestrator) Initialize(ctx context.Context, clientID *string) (string, error) {
	if o.sessions == nil {
		return "", fmt.Errorf("no session store configured")
	}
	id, err := o.sessions.CreateSession(ctx, o.agentType, clientID)
	if err != nil {
		o.logger.Warn("chat session not persisted, continuing without history", "agent_type", o.agentType, "error", err)
		return "", fmt.Errorf("create chat session: %w", err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return "", ErrClosed
	}
	o.sessionID = id
	return id, nil
}

// SessionID returns the persisted session id, or "" in degraded mode.
func (o *Orchestrator) SessionID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sessionID
}

// Busy reports whether a send is awaiting its reply.
func (o *Orchestrator) Busy() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.inFlight
}

// Send appends a user turn and asks the relay for a reply. prior overrides
// the history sent as context; nil uses the confirmed transcript. On relay
// failure the returned entry is the fallback reply and the error is a
// *SendError.
func (o *Orchestrator) Send(ctx context.Context, text string, prior []domain.Turn) (Entry, error) {
	if strings.TrimSpace(text) == "" {
		return Entry{}, ErrEmptyMessage
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return Entry{}, ErrClosed
	}
	if o.inFlight {
		o.mu.Unlock()
		return Entry{}, ErrSendInFlight
	}
	o.inFlight = true
	gen := o.generation

	user := Entry{ID: uuid.NewString(), Role: domain.RoleUser, Content: text, CreatedAt: o.now(), Pending: true}
	o.pending = append(o.pending, user)

	history := prior
	if history == nil {
		history = turnsOf(o.log)
	}
	req := agent.ChatRequest{
		AgentType: string(o.agentType),
		Message:   text,
		Context:   domain.ContextWindow(history, domain.MaxContextTurns),
	}
	if o.sessionID != "" {
		id := o.sessionID
		req.ChatID = &id
	}
	o.mu.Unlock()

	content, err := o.relay.Chat(ctx, req)

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.generation != gen {
		return Entry{}, ErrReset
	}
	o.inFlight = false
	if o.closed {
		return Entry{}, ErrClosed
	}
	o.confirm(user.ID)

	if err != nil {
		kind := classify(err)
		o.logger.Error("relay call failed", "agent_type", o.agentType, "session_id", o.sessionID, "kind", kind, "error", err)
		fallback := Entry{ID: uuid.NewString(), Role: domain.RoleAssistant, Content: FallbackReply, CreatedAt: o.now(), Fallback: true}
		o.log = append(o.log, fallback)
		return fallback, &SendError{Kind: kind, Err: err}
	}

	reply := Entry{ID: uuid.NewString(), Role: domain.RoleAssistant, Content: content, CreatedAt: o.now()}
	o.log = append(o.log, reply)
	return reply, nil
}

// confirm moves a pending user turn into the log. Caller holds o.mu.
func (o *Orchestrator) confirm(id string) {
	for i, e := range o.pending {
		if e.ID == id {
			e.Pending = false
			o.log = append(o.log, e)
			o.pending = append(o.pending[:i], o.pending[i+1:]...)
			return
		}
	}
}

// Transcript returns the confirmed log followed by pending turns.
func (o *Orchestrator) Transcript() []Entry {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Entry, 0, len(o.log)+len(o.pending))
	out = append(out, o.log...)
	return append(out, o.pending...)
}

// Evaluate scores the confirmed transcript. Fewer than two turns yields
// (nil, nil). Relay failures yield the neutral evaluation.
func (o *Orchestrator) Evaluate(ctx context.Context) (*domain.Evaluation, error) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil, ErrClosed
	}
	turns := turnsOf(o.log)
	sessionID := o.sessionID
	o.mu.Unlock()

	if len(turns) < 2 {
		return nil, nil
	}

	eval, err := o.relay.Evaluate(ctx, turns)
	if err != nil {
		o.logger.Warn("evaluation failed, using neutral score", "session_id", sessionID, "error", err)
		neutral := domain.NeutralEvaluation()
		return &neutral, nil
	}

	if o.notifier != nil {
		o.notifier.Notify(ctx, "Practice session evaluated",
			fmt.Sprintf("Overall score: %d/10. %s", eval.Overall, eval.Feedback),
			domain.NotificationSuccess,
			map[string]any{"chat_id": sessionID, "overall": eval.Overall},
		)
	}
	return &eval, nil
}

// Reset clears the local transcript and forgets the session id. A reply
// still in flight is discarded. Server history is untouched.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.generation++
	o.inFlight = false
	o.log = nil
	o.pending = nil
	o.sessionID = ""
}

// Close discards any reply that arrives afterwards.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	o.pending = nil
}

func turnsOf(entries []Entry) []domain.Turn {
	turns := make([]domain.Turn, 0, len(entries))
	for _, e := range entries {
		turns = append(turns, domain.Turn{Role: e.Role, Content: e.Content})
	}
	return turns
}
