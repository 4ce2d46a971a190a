package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/agentdesk/internal/agent"
	"github.com/ashureev/agentdesk/internal/domain"
	"github.com/ashureev/agentdesk/internal/llm"
)

type fakeRelay struct {
	mu       sync.Mutex
	requests []agent.ChatRequest
	reply    string
	err      error
	block    chan struct{}
	started  chan struct{}

	eval    domain.Evaluation
	evalErr error
	evals   int
}

func (f *fakeRelay) Chat(_ context.Context, req agent.ChatRequest) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	return f.reply, f.err
}

func (f *fakeRelay) Evaluate(_ context.Context, _ []domain.Turn) (domain.Evaluation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evals++
	return f.eval, f.evalErr
}

func (f *fakeRelay) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type fakeSessions struct {
	id  string
	err error
}

func (f fakeSessions) CreateSession(context.Context, domain.AgentType, *string) (string, error) {
	return f.id, f.err
}

type recordingNotifier struct {
	titles []string
}

func (n *recordingNotifier) Notify(_ context.Context, title, _ string, _ domain.NotificationKind, _ map[string]any) {
	n.titles = append(n.titles, title)
}

func TestSendAppendsUserAndReply(t *testing.T) {
	relay := &fakeRelay{reply: "Cap rate is 6.2%."}
	o := NewOrchestrator(relay, fakeSessions{id: "s1"}, domain.AgentTypeMarketPulse)
	_, err := o.Initialize(context.Background(), nil)
	require.NoError(t, err)

	reply, err := o.Send(context.Background(), "What's the cap rate?", nil)
	require.NoError(t, err)
	assert.Equal(t, "Cap rate is 6.2%.", reply.Content)

	tr := o.Transcript()
	require.Len(t, tr, 2)
	assert.Equal(t, domain.RoleUser, tr[0].Role)
	assert.False(t, tr[0].Pending)
	assert.Equal(t, domain.RoleAssistant, tr[1].Role)

	require.Equal(t, 1, relay.calls())
	req := relay.requests[0]
	require.NotNil(t, req.ChatID)
	assert.Equal(t, "s1", *req.ChatID)
	assert.Equal(t, string(domain.AgentTypeMarketPulse), req.AgentType)
	assert.Empty(t, req.Context)
}

func TestSendEmptyMessageMakesNoCall(t *testing.T) {
	relay := &fakeRelay{reply: "x"}
	o := NewOrchestrator(relay, nil, domain.AgentTypeMarketPulse)

	_, err := o.Send(context.Background(), "   \n", nil)
	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Zero(t, relay.calls())
	assert.Empty(t, o.Transcript())
}

func TestSendRateLimitedAppendsFallback(t *testing.T) {
	relay := &fakeRelay{err: &RelayError{Status: 429, Message: "Rate limit exceeded. Please try again later."}}
	o := NewOrchestrator(relay, nil, domain.AgentTypeCoach)

	reply, err := o.Send(context.Background(), "hello", nil)
	var sendErr *SendError
	require.ErrorAs(t, err, &sendErr)
	assert.Equal(t, SendRateLimited, sendErr.Kind)
	assert.Equal(t, "Rate limit exceeded. Please try again later.", sendErr.Error())

	assert.True(t, reply.Fallback)
	assert.Equal(t, FallbackReply, reply.Content)

	tr := o.Transcript()
	require.Len(t, tr, 2)
	assert.Equal(t, "hello", tr[0].Content)
	assert.Equal(t, FallbackReply, tr[1].Content)
	assert.False(t, o.Busy())
}

func TestSendErrorClassification(t *testing.T) {
	cases := []struct {
		name string
		err  error
		kind SendErrorKind
		msg  string
	}{
		{"payment", &RelayError{Status: 402}, SendPaymentRequired, "Credits required. Please add credits to continue."},
		{"server", &RelayError{Status: 500}, SendFailed, "Failed to send message. Please try again."},
		{"network", errors.New("connection refused"), SendFailed, "Failed to send message. Please try again."},
		{"llm rate limit", &llm.Error{Kind: llm.KindRateLimited, Status: 429}, SendRateLimited, "Rate limit exceeded. Please try again later."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o := NewOrchestrator(&fakeRelay{err: tc.err}, nil, domain.AgentTypeCoach)
			_, err := o.Send(context.Background(), "hi", nil)
			var sendErr *SendError
			require.ErrorAs(t, err, &sendErr)
			assert.Equal(t, tc.kind, sendErr.Kind)
			assert.Equal(t, tc.msg, sendErr.Error())
		})
	}
}

func TestSendContextIsLastTenTurns(t *testing.T) {
	relay := &fakeRelay{reply: "ok"}
	o := NewOrchestrator(relay, nil, domain.AgentTypeCoordinator)

	for i := 0; i < 6; i++ {
		_, err := o.Send(context.Background(), fmt.Sprintf("msg %d", i), nil)
		require.NoError(t, err)
	}
	_, err := o.Send(context.Background(), "latest", nil)
	require.NoError(t, err)

	last := relay.requests[len(relay.requests)-1]
	require.Len(t, last.Context, domain.MaxContextTurns)
	assert.Equal(t, "msg 1", last.Context[0].Content)
	assert.Equal(t, "ok", last.Context[len(last.Context)-1].Content)
	assert.Equal(t, "latest", last.Message)
}

func TestSendExplicitPriorOverridesLog(t *testing.T) {
	relay := &fakeRelay{reply: "ok"}
	o := NewOrchestrator(relay, nil, domain.AgentTypeCoordinator)
	_, err := o.Send(context.Background(), "first", nil)
	require.NoError(t, err)

	prior := []domain.Turn{{Role: domain.RoleUser, Content: "seeded"}}
	_, err = o.Send(context.Background(), "second", prior)
	require.NoError(t, err)
	assert.Equal(t, prior, relay.requests[1].Context)
}

func TestSendWhileInFlight(t *testing.T) {
	relay := &fakeRelay{reply: "ok", block: make(chan struct{}), started: make(chan struct{}, 1)}
	o := NewOrchestrator(relay, nil, domain.AgentTypeCoach)

	done := make(chan error, 1)
	go func() {
		_, err := o.Send(context.Background(), "one", nil)
		done <- err
	}()
	<-relay.started

	assert.True(t, o.Busy())
	tr := o.Transcript()
	require.Len(t, tr, 1)
	assert.True(t, tr[0].Pending)

	_, err := o.Send(context.Background(), "two", nil)
	assert.ErrorIs(t, err, ErrSendInFlight)

	close(relay.block)
	require.NoError(t, <-done)
	assert.Len(t, o.Transcript(), 2)
}

func TestCloseDiscardsLateReply(t *testing.T) {
	relay := &fakeRelay{reply: "late", block: make(chan struct{}), started: make(chan struct{}, 1)}
	o := NewOrchestrator(relay, nil, domain.AgentTypeCoach)

	done := make(chan error, 1)
	go func() {
		_, err := o.Send(context.Background(), "one", nil)
		done <- err
	}()
	<-relay.started
	o.Close()
	close(relay.block)

	assert.ErrorIs(t, <-done, ErrClosed)
	assert.Empty(t, o.Transcript())

	_, err := o.Send(context.Background(), "again", nil)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestResetDiscardsLateReply(t *testing.T) {
	relay := &fakeRelay{reply: "late", block: make(chan struct{}), started: make(chan struct{}, 1)}
	o := NewOrchestrator(relay, fakeSessions{id: "s1"}, domain.AgentTypeCoach)
	_, err := o.Initialize(context.Background(), nil)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := o.Send(context.Background(), "one", nil)
		done <- err
	}()
	<-relay.started
	o.Reset()
	assert.False(t, o.Busy())
	close(relay.block)

	assert.ErrorIs(t, <-done, ErrReset)
	assert.Empty(t, o.Transcript())
	assert.Empty(t, o.SessionID())

	_, err = o.Send(context.Background(), "fresh start", nil)
	require.NoError(t, err)
	tr := o.Transcript()
	require.Len(t, tr, 2)
	assert.Equal(t, "fresh start", tr[0].Content)
	assert.Empty(t, relay.requests[1].Context)
	assert.Nil(t, relay.requests[1].ChatID)
}

func TestInitializeFailureDegrades(t *testing.T) {
	relay := &fakeRelay{reply: "ok"}
	o := NewOrchestrator(relay, fakeSessions{err: errors.New("db down")}, domain.AgentTypeCoach)

	_, err := o.Initialize(context.Background(), nil)
	require.Error(t, err)
	assert.Empty(t, o.SessionID())

	_, err = o.Send(context.Background(), "still works", nil)
	require.NoError(t, err)
	assert.Nil(t, relay.requests[0].ChatID)
}

func TestEvaluate(t *testing.T) {
	t.Run("needs two turns", func(t *testing.T) {
		relay := &fakeRelay{}
		o := NewOrchestrator(relay, nil, domain.AgentTypeCoach)
		eval, err := o.Evaluate(context.Background())
		require.NoError(t, err)
		assert.Nil(t, eval)
		assert.Zero(t, relay.evals)
	})

	t.Run("failure is neutral", func(t *testing.T) {
		relay := &fakeRelay{reply: "hi", evalErr: errors.New("boom")}
		o := NewOrchestrator(relay, nil, domain.AgentTypeCoach)
		_, err := o.Send(context.Background(), "hello", nil)
		require.NoError(t, err)

		eval, err := o.Evaluate(context.Background())
		require.NoError(t, err)
		require.NotNil(t, eval)
		assert.Equal(t, domain.NeutralEvaluation(), *eval)
	})

	t.Run("success notifies", func(t *testing.T) {
		want := domain.Evaluation{Tone: 8, ObjectionHandling: 6, FactUsage: 9, Overall: 8, Feedback: "Solid."}
		relay := &fakeRelay{reply: "hi", eval: want}
		n := &recordingNotifier{}
		o := NewOrchestrator(relay, nil, domain.AgentTypeCoach, WithNotifier(n))
		_, err := o.Send(context.Background(), "hello", nil)
		require.NoError(t, err)

		eval, err := o.Evaluate(context.Background())
		require.NoError(t, err)
		assert.Equal(t, want, *eval)
		assert.Len(t, n.titles, 1)
	})
}

func TestReset(t *testing.T) {
	o := NewOrchestrator(&fakeRelay{reply: "ok"}, fakeSessions{id: "s1"}, domain.AgentTypeCoach)
	_, err := o.Initialize(context.Background(), nil)
	require.NoError(t, err)
	_, err = o.Send(context.Background(), "hello", nil)
	require.NoError(t, err)

	o.Reset()
	assert.Empty(t, o.Transcript())
	assert.Empty(t, o.SessionID())
}
