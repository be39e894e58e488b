package logging

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	logger := New("debug", "json")
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	_, isJSON := logger.Formatter.(*logrus.JSONFormatter)
	assert.True(t, isJSON)

	logger = New("loud", "text")
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
}

func TestMiddlewareLogsAndPropagatesRequestID(t *testing.T) {
	logger, hook := test.NewNullLogger()
	var seen string
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("missing"))
	}), logger)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/statements/OKA-1", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	assert.Equal(t, "req-42", seen)
	assert.Equal(t, "req-42", resp.Header().Get(RequestIDHeader))
	require.NotNil(t, hook.LastEntry())
	entry := hook.LastEntry()
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, http.StatusNotFound, entry.Data["status"])
	assert.Equal(t, 7, entry.Data["bytes"])
	assert.Equal(t, "/api/v1/statements/OKA-1", entry.Data["path"])
}

func TestMiddlewareGeneratesRequestID(t *testing.T) {
	logger, hook := test.NewNullLogger()
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}), logger)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.NotEmpty(t, resp.Header().Get(RequestIDHeader))
	assert.Equal(t, logrus.InfoLevel, hook.LastEntry().Level)
	assert.Equal(t, http.StatusOK, hook.LastEntry().Data["status"])
}
