// internal/middleware/logging.go

package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// LogMiddleware logs every request with its status, size and duration.
// The request id set by chi's RequestID middleware is included when present.
func LogMiddleware(logger *logrus.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			fields := logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   ww.Status(),
				"bytes":    ww.BytesWritten(),
				"duration": time.Since(start),
				"remote":   r.RemoteAddr,
			}
			if id := chimw.GetReqID(r.Context()); id != "" {
				fields["request_id"] = id
			}
			entry := logger.WithFields(fields)
			switch {
			case ww.Status() >= http.StatusInternalServerError:
				entry.Warn("HTTP Request")
			default:
				entry.Info("HTTP Request")
			}
		})
	}
}

// LogWebSocketConnect logs a room WebSocket that was accepted.
func LogWebSocketConnect(logger *logrus.Logger, remoteAddr, roomCode, playerID string) {
	logger.WithFields(logrus.Fields{
		"remote": remoteAddr,
		"room":   roomCode,
		"player": playerID,
	}).Info("WebSocket connected")
}

// LogWebSocketDisconnect logs the end of a room WebSocket.
func LogWebSocketDisconnect(logger *logrus.Logger, remoteAddr, roomCode, playerID string, err error) {
	fields := logrus.Fields{
		"remote": remoteAddr,
		"room":   roomCode,
		"player": playerID,
	}
	if err != nil {
		fields["error"] = err
	}
	logger.WithFields(fields).Info("WebSocket disconnected")
}
