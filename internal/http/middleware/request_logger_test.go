package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/wolfman30/clinic-booking-engine/internal/events"
	"github.com/wolfman30/clinic-booking-engine/pkg/logging"
)

func TestRequestLoggerPropagatesRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter("info", &buf)

	var correlation string
	h := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		correlation = events.CorrelationID(r.Context())
		w.WriteHeader(http.StatusCreated)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/queue/doc-1/join", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if correlation != "req-123" {
		t.Fatalf("expected correlation id req-123, got %q", correlation)
	}
	if got := rec.Header().Get(RequestIDHeader); got != "req-123" {
		t.Fatalf("expected response request id, got %q", got)
	}
	out := buf.String()
	if !strings.Contains(out, "request completed") || !strings.Contains(out, "201") {
		t.Fatalf("expected completion log with status, got %q", out)
	}
}

func TestRequestLoggerGeneratesRequestID(t *testing.T) {
	h := RequestLogger(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Fatalf("expected generated request id")
	}
}

func TestRequestLoggerWarnsOnServerError(t *testing.T) {
	var buf bytes.Buffer
	h := RequestLogger(logging.NewWithWriter("info", &buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/appointments", nil))

	out := buf.String()
	if !strings.Contains(out, "request failed") || !strings.Contains(out, "WARN") {
		t.Fatalf("expected warn log for 500, got %q", out)
	}
}
