package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRequestID(t *testing.T) {
	ts := newTestServer(nil)

	w := ts.do(http.MethodGet, "/health", "")
	assert.Len(t, w.Header().Get(RequestIDHeader), 36)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "caller-123")
	w = httptest.NewRecorder()
	ts.server.Router().ServeHTTP(w, req)
	assert.Equal(t, "caller-123", w.Header().Get(RequestIDHeader))
}

func TestCORSPreflight(t *testing.T) {
	w := newTestServer(nil).do(http.MethodOptions, "/api/studies/1/exports", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_StartAndStop(t *testing.T) {
	logger := NewZapLogger(zap.NewNop())
	handlers := NewHandlers(&MockExporter{}, &MockReadiness{}, &MockCatalog{}, nil, logger)
	server := NewServer(ServerConfig{Host: "127.0.0.1", Port: 0, ReadTimeout: time.Second, WriteTimeout: time.Second}, handlers, logger)
	require.NoError(t, server.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Start(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + server.Address() + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("server did not stop")
	}
}
