package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/R3E-Network/storefront/pkg/logger"
)

func TestLoggingMiddlewareTraceID(t *testing.T) {
	var traceInCtx string
	handler := LoggingMiddleware(logger.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceInCtx = logger.GetTraceID(r.Context())
		w.WriteHeader(http.StatusCreated)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(TraceHeader, "abc-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	if traceInCtx != "abc-123" || rec.Header().Get(TraceHeader) != "abc-123" {
		t.Fatalf("trace id not propagated: ctx=%q header=%q", traceInCtx, rec.Header().Get(TraceHeader))
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Header().Get(TraceHeader) == "" {
		t.Fatal("expected generated trace id")
	}
}
