package agent

import (
	"context"
	"sync"

	"github.com/ashureev/agentdesk/internal/domain"
	"github.com/ashureev/agentdesk/internal/llm"
)

type fakeCompleter struct {
	mu       sync.Mutex
	requests []*llm.Request
	reply    string
	err      error
}

func (f *fakeCompleter) Complete(_ context.Context, req *llm.Request) (*llm.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Response{Choices: []llm.Choice{{Message: llm.Message{Role: "assistant", Content: f.reply}}}}, nil
}

func (f *fakeCompleter) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeCompleter) last() *llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return nil
	}
	return f.requests[len(f.requests)-1]
}

type fakeTranscripts struct {
	mu        sync.Mutex
	sessions  map[string]*domain.ChatSession
	pairs     [][2]*domain.Message
	appendErr error
}

func newFakeTranscripts(sessions ...*domain.ChatSession) *fakeTranscripts {
	f := &fakeTranscripts{sessions: make(map[string]*domain.ChatSession)}
	for _, s := range sessions {
		f.sessions[s.ID] = s
	}
	return f
}

func (f *fakeTranscripts) GetSession(_ context.Context, id string) (*domain.ChatSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s, nil
}

func (f *fakeTranscripts) AppendTurnPair(_ context.Context, user, assistant *domain.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	f.pairs = append(f.pairs, [2]*domain.Message{user, assistant})
	return nil
}
