package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	cases := []struct {
		name       string
		allowed    []string
		origin     string
		method     string
		wantOrigin string
		wantCreds  string
		wantStatus int
	}{
		{"explicit", []string{"https://crm.example.com"}, "https://crm.example.com", http.MethodGet, "https://crm.example.com", "true", http.StatusOK},
		{"wildcard", []string{"*"}, "https://other.example.com", http.MethodGet, "https://other.example.com", "", http.StatusOK},
		{"denied", []string{"https://crm.example.com"}, "https://evil.example.com", http.MethodGet, "", "", http.StatusOK},
		{"preflight", []string{"https://crm.example.com"}, "https://crm.example.com", http.MethodOptions, "https://crm.example.com", "true", http.StatusNoContent},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := httptest.NewRequest(c.method, "/api/notifications", nil)
			req.Header.Set("Origin", c.origin)
			w := httptest.NewRecorder()
			CORS(c.allowed)(next).ServeHTTP(w, req)

			if w.Code != c.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, c.wantStatus)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != c.wantOrigin {
				t.Errorf("Allow-Origin = %q, want %q", got, c.wantOrigin)
			}
			if got := w.Header().Get("Access-Control-Allow-Credentials"); got != c.wantCreds {
				t.Errorf("Allow-Credentials = %q, want %q", got, c.wantCreds)
			}
		})
	}
}
