package trace

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"luxstock/internal/log"
)

func newTestLogger(buf *bytes.Buffer) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Output = buf
	return log.New(cfg)
}

func TestMiddleware_AssignsRequestID(t *testing.T) {
	var buf bytes.Buffer
	var seen string
	h := NewMiddleware(nil, newTestLogger(&buf)).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		w.WriteHeader(http.StatusNotFound)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))

	if !strings.HasPrefix(seen, "req_") {
		t.Fatalf("expected generated request id, got %q", seen)
	}
	if rec.Header().Get(HeaderRequestID) != seen {
		t.Errorf("response header %q does not match context id %q", rec.Header().Get(HeaderRequestID), seen)
	}
	out := buf.String()
	if !strings.Contains(out, "HTTP request completed") || !strings.Contains(out, "status_code=404") || !strings.Contains(out, "level=WARN") {
		t.Errorf("expected warn completion log with status, got: %s", out)
	}
}

func TestMiddleware_HonoursIncomingRequestID(t *testing.T) {
	var buf bytes.Buffer
	var seen string
	h := NewMiddleware(func(*http.Request) string { return "10.0.0.1" }, newTestLogger(&buf)).
		Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = GetRequestID(r.Context())
			log.FromContext(r.Context()).InfoContext(r.Context(), "inside handler")
		}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if seen != "abc-123" {
		t.Fatalf("expected incoming id, got %q", seen)
	}
	if !strings.Contains(buf.String(), "request_id=abc-123") {
		t.Errorf("expected context logger to carry the request id: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "client_ip=10.0.0.1") {
		t.Errorf("expected client ip in completion log: %s", buf.String())
	}
}

func TestValidRequestID(t *testing.T) {
	tests := map[string]bool{
		"":                        false,
		"req_0123abcd":            true,
		"has space":               false,
		"<script>":                false,
		strings.Repeat("a", 65):   false,
		strings.Repeat("a", 64):   true,
	}
	for id, want := range tests {
		if got := validRequestID(id); got != want {
			t.Errorf("validRequestID(%q) = %v, want %v", id, got, want)
		}
	}
}
