package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ashureev/agentdesk/internal/domain"
	"github.com/ashureev/agentdesk/internal/llm"
)

// Service is the stateless relay between operators and the completion provider.
type Service struct {
	llm      llm.Completer
	repo     TranscriptStore
	personas *Personas
	cfg      Config
	log      ConversationLogger
	now      func() time.Time
}

// NewService creates a relay. personas and log may be nil.
func NewService(completer llm.Completer, repo TranscriptStore, personas *Personas, cfg Config, log ConversationLogger) *Service {
	if personas == nil {
		personas = DefaultPersonas()
	}
	if log == nil {
		log = noopConversationLogger{}
	}
	return &Service{
		llm:      completer,
		repo:     repo,
		personas: personas,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

// Chat produces the assistant reply for one user turn. When the request
// names a session the caller must be its current operator of record; the
// turn pair is written only after a successful completion.
func (s *Service) Chat(ctx context.Context, callerID string, req ChatRequest) (string, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return "", fmt.Errorf("%w: message is required", domain.ErrValidation)
	}
	if err := domain.ValidateTurns(req.Context); err != nil {
		return "", err
	}

	sessionID := req.sessionID()
	if sessionID != "" {
		sess, err := s.repo.GetSession(ctx, sessionID)
		if err != nil {
			return "", fmt.Errorf("load chat session: %w", err)
		}
		if !sess.IsOwnedBy(callerID) {
			return "", fmt.Errorf("chat session %s: %w", sessionID, domain.ErrForbidden)
		}
	}

	history := domain.ContextWindow(req.Context, domain.MaxContextTurns)
	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: "system", Content: s.personas.SystemPrompt(req.AgentType)})
	for _, t := range history {
		messages = append(messages, llm.Message{Role: string(t.Role), Content: t.Content})
	}
	messages = append(messages, llm.Message{Role: string(domain.RoleUser), Content: message})

	sentAt := s.now()
	s.logEvent(callerID, sessionID, req.AgentType, "outbound", "chat_user_message", message, map[string]any{
		"context_turns": len(history),
	})

	resp, err := s.llm.Complete(ctx, &llm.Request{
		Messages:    messages,
		Temperature: llm.Float(s.cfg.ChatTemperature),
		MaxTokens:   llm.Int(s.cfg.ChatMaxTokens),
	})
	if err != nil {
		s.logEvent(callerID, sessionID, req.AgentType, "inbound", "chat_error", err.Error(), map[string]any{
			"kind": string(llm.KindOf(err)),
		})
		return "", err
	}
	content := resp.Content()
	if content == "" {
		return "", &llm.Error{Kind: llm.KindUpstream, Message: "empty completion"}
	}
	s.logEvent(callerID, sessionID, req.AgentType, "inbound", "chat_assistant_message", content, nil)

	if sessionID != "" {
		user := &domain.Message{ID: uuid.NewString(), SessionID: sessionID, Role: domain.RoleUser, Content: message, CreatedAt: sentAt}
		assistant := &domain.Message{ID: uuid.NewString(), SessionID: sessionID, Role: domain.RoleAssistant, Content: content, CreatedAt: s.now()}
		if err := s.repo.AppendTurnPair(ctx, user, assistant); err != nil {
			slog.Error("failed to persist turn pair",
				"operator_id", callerID,
				"session_id", sessionID,
				"error", err,
			)
		}
	}

	return content, nil
}

// Evaluate scores a practice transcript. Upstream failures are returned so
// the caller can decide on a fallback; an unparseable reply yields the
// neutral evaluation.
func (s *Service) Evaluate(ctx context.Context, callerID string, turns []domain.Turn) (domain.Evaluation, error) {
	if len(turns) < 2 {
		return domain.Evaluation{}, fmt.Errorf("%w: at least 2 messages are required", domain.ErrValidation)
	}
	if err := domain.ValidateTurns(turns); err != nil {
		return domain.Evaluation{}, err
	}

	resp, err := s.llm.Complete(ctx, &llm.Request{
		Messages:    []llm.Message{{Role: string(domain.RoleUser), Content: evaluationPrompt(turns)}},
		Temperature: llm.Float(s.cfg.EvalTemperature),
	})
	if err != nil {
		return domain.Evaluation{}, err
	}

	eval := decodeEvaluation(resp.Content())
	s.logEvent(callerID, "", string(domain.AgentTypeCoach), "inbound", "coach_evaluation", eval.Feedback, map[string]any{
		"overall": eval.Overall,
		"turns":   len(turns),
	})
	return eval, nil
}

func (s *Service) logEvent(operatorID, sessionID, agentType, direction, eventType, content string, meta map[string]any) {
	s.log.Log(ConversationLogEvent{
		Timestamp:  s.now().UTC().Format(time.RFC3339Nano),
		OperatorID: operatorID,
		SessionID:  sessionID,
		AgentType:  agentType,
		Channel:    "relay_http",
		Direction:  direction,
		EventType:  eventType,
		ContentRaw: content,
		Meta:       meta,
	})
}

func evaluationPrompt(turns []domain.Turn) string {
	var convo strings.Builder
	for i, t := range turns {
		if i > 0 {
			convo.WriteByte('\n')
		}
		speaker := "CFO"
		if t.Role == domain.RoleUser {
			speaker = "Sales Rep"
		}
		convo.WriteString(speaker)
		convo.WriteString(": ")
		convo.WriteString(t.Content)
	}

	return `You are an expert sales trainer evaluating a negotiation practice session. Analyze the following conversation between a sales representative (pitching commercial real estate) and a CFO (skeptical but fair).

Conversation:
` + convo.String() + `

Provide a JSON evaluation with the following structure:
{
  "tone": <score 1-10>,
  "objectionHandling": <score 1-10>,
  "factUsage": <score 1-10>,
  "overall": <score 1-10>,
  "feedback": "<detailed feedback string - 2-3 sentences highlighting strengths and areas for improvement>"
}

Scoring criteria:
- Tone (1-10): Professionalism, warmth, confidence
- Objection Handling (1-10): How well they addressed concerns, used reframing
- Fact Usage (1-10): Use of data, market knowledge, specific examples
- Overall (1-10): Overall effectiveness of the pitch

Be encouraging but honest. Focus on actionable improvements.`
}

// decodeEvaluation reads the first JSON object in content. Each field that
// is missing or out of range takes its neutral value; an unreadable reply
// is entirely neutral.
func decodeEvaluation(content string) domain.Evaluation {
	eval := domain.NeutralEvaluation()

	start := strings.IndexByte(content, '{')
	if start < 0 {
		return eval
	}
	dec := json.NewDecoder(strings.NewReader(content[start:]))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return eval
	}

	eval.Tone = scoreField(raw, "tone")
	eval.ObjectionHandling = scoreField(raw, "objectionHandling")
	eval.FactUsage = scoreField(raw, "factUsage")
	eval.Overall = scoreField(raw, "overall")
	if fb, ok := raw["feedback"].(string); ok && strings.TrimSpace(fb) != "" {
		eval.Feedback = strings.TrimSpace(fb)
	}
	return eval
}

func scoreField(raw map[string]any, key string) int {
	var f float64
	switch v := raw[key].(type) {
	case json.Number:
		n, err := v.Float64()
		if err != nil {
			return domain.NeutralScore
		}
		f = n
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return domain.NeutralScore
		}
		f = n
	default:
		return domain.NeutralScore
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return domain.NeutralScore
	}
	score := int(math.Round(f))
	if !domain.ValidScore(score) {
		return domain.NeutralScore
	}
	return score
}
