package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func serveLogged(t *testing.T, h http.Handler, req *http.Request) (map[string]any, *httptest.ResponseRecorder) {
	t.Helper()
	zc, logs := observer.New(zap.InfoLevel)
	w := httptest.NewRecorder()
	LoggingMiddleware(zap.New(zc))(h).ServeHTTP(w, req)

	entries := logs.FilterMessage("http request").All()
	require.Len(t, entries, 1)
	return entries[0].ContextMap(), w
}

func TestLoggingMiddleware_Fields(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/reports/{asset}/latest", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/bitcoin/latest", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	fields, _ := serveLogged(t, mux, req)

	assert.Equal(t, "GET", fields["method"])
	assert.Equal(t, "/api/v1/reports/bitcoin/latest", fields["path"])
	assert.Equal(t, "GET /api/v1/reports/{asset}/latest", fields["route"])
	assert.EqualValues(t, http.StatusServiceUnavailable, fields["status"])
	assert.Contains(t, fields, "duration_ms")
}

func TestLoggingMiddleware_NoRouteWithoutMux(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	fields, _ := serveLogged(t, handler, httptest.NewRequest(http.MethodGet, "/plain", nil))
	assert.NotContains(t, fields, "route")
}

func TestLoggingMiddleware_RequestID(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	t.Run("generated", func(t *testing.T) {
		fields, w := serveLogged(t, handler, httptest.NewRequest(http.MethodGet, "/", nil))
		id := w.Header().Get(RequestIDHeader)
		require.NotEmpty(t, id)
		assert.Equal(t, id, fields["request_id"])
	})

	t.Run("reused", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "run-42")
		fields, w := serveLogged(t, handler, req)
		assert.Equal(t, "run-42", w.Header().Get(RequestIDHeader))
		assert.Equal(t, "run-42", fields["request_id"])
	})
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name      string
		forwarded string
		want      string
	}{
		{"peer address", "", "10.0.0.1:54321"},
		{"single hop", "203.0.113.50", "203.0.113.50"},
		{"first of many", " 203.0.113.50 , 70.41.3.18", "203.0.113.50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = "10.0.0.1:54321"
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			assert.Equal(t, tt.want, clientIP(req))
		})
	}
}
