package identity

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ashureev/agentdesk/internal/domain"
)

type fakeLookup struct {
	ops map[string]*domain.Operator
	err error
}

func (f *fakeLookup) GetOperatorByTokenHash(_ context.Context, hash string) (*domain.Operator, error) {
	if f.err != nil {
		return nil, f.err
	}
	if op, ok := f.ops[hash]; ok {
		return op, nil
	}
	return nil, domain.ErrNotFound
}

func TestGenerateToken(t *testing.T) {
	token, err := GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	if !strings.HasPrefix(token, TokenPrefix) {
		t.Errorf("token %q missing prefix", token)
	}
	if HashToken(token) == token || len(HashToken(token)) != 64 {
		t.Errorf("unexpected hash %q", HashToken(token))
	}
}

func TestMiddleware(t *testing.T) {
	token := "adk_test"
	lookup := &fakeLookup{ops: map[string]*domain.Operator{
		HashToken(token): {ID: "op-1", Name: "Priya"},
	}}

	var gotID, gotName string
	h := Middleware(lookup)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = OperatorIDFromContext(r.Context())
		gotName = OperatorNameFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := []struct {
		name   string
		build  func(r *http.Request)
		status int
	}{
		{"bearer header", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, http.StatusNoContent},
		{"query param", func(r *http.Request) { r.URL.RawQuery = TokenQueryParam + "=" + token }, http.StatusNoContent},
		{"missing", func(r *http.Request) {}, http.StatusUnauthorized},
		{"wrong scheme", func(r *http.Request) { r.Header.Set("Authorization", "Basic "+token) }, http.StatusUnauthorized},
		{"unknown token", func(r *http.Request) { r.Header.Set("Authorization", "Bearer adk_nope") }, http.StatusUnauthorized},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			gotID, gotName = "", ""
			req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
			c.build(req)
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			if w.Code != c.status {
				t.Fatalf("status = %d, want %d", w.Code, c.status)
			}
			if c.status == http.StatusNoContent && (gotID != "op-1" || gotName != "Priya") {
				t.Errorf("identity = %q/%q", gotID, gotName)
			}
		})
	}
}

func TestMiddlewareLookupFailure(t *testing.T) {
	h := Middleware(&fakeLookup{err: errors.New("disk on fire")})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer adk_x")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
}
