package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jason-s-yu/forca/internal/catalog"
	"github.com/jason-s-yu/forca/internal/game"
	"github.com/jason-s-yu/forca/internal/lobby"
	"github.com/jason-s-yu/forca/internal/store"
	"github.com/sirupsen/logrus"
)

// errBadRequest marks request validation failures.
var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// decodeBody reads a JSON body into v. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return badRequest("invalid JSON payload")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, lobby.ErrNoTerms),
		errors.Is(err, catalog.ErrInvalidModule):
		return http.StatusBadRequest
	case errors.Is(err, lobby.ErrRoomNotFound),
		errors.Is(err, lobby.ErrPlayerNotFound),
		errors.Is(err, catalog.ErrModuleNotFound):
		return http.StatusNotFound
	case errors.Is(err, lobby.ErrGameAlreadyStarted),
		errors.Is(err, lobby.ErrRoomFull),
		errors.Is(err, lobby.ErrNoPlayers),
		errors.Is(err, catalog.ErrModuleExists),
		errors.Is(err, game.ErrPlayersStillPlaying):
		return http.StatusConflict
	case errors.Is(err, store.ErrUnavailable),
		errors.Is(err, lobby.ErrRoomCodeExhausted):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError answers with the status mapped from err. Internal errors are
// logged and their details kept from the client.
func writeError(w http.ResponseWriter, logger *logrus.Logger, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logger.WithError(err).WithField("path", r.URL.Path).Error("request failed")
		msg = "internal error"
	}
	http.Error(w, msg, status)
}

// clean trims a user-supplied display name.
func clean(s string) string {
	return strings.TrimSpace(s)
}

// roomCodeCtx rejects a malformed {code} before any handler reads the store.
func (s *RoomServer) roomCodeCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")
		if !lobby.ValidRoomCode(code) {
			writeError(w, s.logger, r, badRequest("malformed room code %q", code))
			return
		}
		next.ServeHTTP(w, r)
	})
}
