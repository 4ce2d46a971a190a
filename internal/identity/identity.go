// Package identity resolves the calling operator from a bearer token.
package identity

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/ashureev/agentdesk/internal/domain"
)

const (
	// TokenPrefix marks agentdesk API tokens.
	TokenPrefix = "adk_"
	// TokenQueryParam carries the token where headers cannot be set (websocket upgrades from browsers).
	TokenQueryParam = "access_token"
)

type contextKey int

const (
	operatorIDKey contextKey = iota
	operatorNameKey
)

// OperatorLookup resolves an operator by the SHA-256 of their token.
type OperatorLookup interface {
	GetOperatorByTokenHash(ctx context.Context, tokenHash string) (*domain.Operator, error)
}

// OperatorIDFromContext extracts the operator ID from the request context.
func OperatorIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(operatorIDKey).(string); ok {
		return v
	}
	return ""
}

// OperatorNameFromContext extracts the operator display name from the request context.
func OperatorNameFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(operatorNameKey).(string); ok {
		return v
	}
	return ""
}

// WithOperator returns a context carrying the operator identity.
func WithOperator(ctx context.Context, id, name string) context.Context {
	ctx = context.WithValue(ctx, operatorIDKey, id)
	return context.WithValue(ctx, operatorNameKey, name)
}

// GenerateToken returns a new random API token. Only its hash is stored.
func GenerateToken() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return TokenPrefix + hex.EncodeToString(buf), nil
}

// HashToken returns the hex SHA-256 of token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func tokenFromRequest(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		scheme, token, ok := strings.Cut(auth, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get(TokenQueryParam)
}

// Middleware rejects requests without a valid operator token and injects
// the operator identity into the request context.
func Middleware(lookup OperatorLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := tokenFromRequest(r)
			if token == "" {
				unauthorized(w)
				return
			}

			op, err := lookup.GetOperatorByTokenHash(r.Context(), HashToken(token))
			if errors.Is(err, domain.ErrNotFound) {
				unauthorized(w)
				return
			}
			if err != nil {
				slog.Error("failed to resolve operator", "error", err, "remote_ip", IPFromRequest(r))
				http.Error(w, `{"error":"failed to resolve identity"}`, http.StatusInternalServerError)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithOperator(r.Context(), op.ID, op.Name)))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="agentdesk"`)
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
}

// IPFromRequest returns a normalized remote IP for optional request tracing.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
