// internal/middleware/logging_test.go
package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogMiddlewareRecordsStatus(t *testing.T) {
	logger, hook := test.NewNullLogger()
	h := chimw.RequestID(LogMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	})))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/rooms/ABC123", nil))

	require.Len(t, hook.Entries, 1)
	entry := hook.LastEntry()
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, "/rooms/ABC123", entry.Data["path"])
	assert.Equal(t, http.StatusTeapot, entry.Data["status"])
	assert.Equal(t, 15, entry.Data["bytes"])
	assert.NotEmpty(t, entry.Data["request_id"])
}

func TestLogMiddlewareWarnsOnServerError(t *testing.T) {
	logger, hook := test.NewNullLogger()
	h := LogMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/rooms", nil))

	require.Len(t, hook.Entries, 1)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.NotContains(t, hook.LastEntry().Data, "request_id")
}

func TestLogWebSocketDisconnectError(t *testing.T) {
	logger, hook := test.NewNullLogger()
	LogWebSocketConnect(logger, "1.2.3.4:5", "ABC123", "p1")
	LogWebSocketDisconnect(logger, "1.2.3.4:5", "ABC123", "p1", assert.AnError)

	require.Len(t, hook.Entries, 2)
	assert.Equal(t, "ABC123", hook.Entries[0].Data["room"])
	assert.Equal(t, assert.AnError, hook.Entries[1].Data["error"])
}
