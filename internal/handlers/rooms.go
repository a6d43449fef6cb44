// internal/handlers/rooms.go
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jason-s-yu/forca/internal/game"
	"github.com/jason-s-yu/forca/internal/lobby"
	"github.com/jason-s-yu/forca/internal/models"
)

type createRoomRequest struct {
	ModuleID string `json:"moduleId"`
	HostName string `json:"hostName"`
}

type joinRoomRequest struct {
	PlayerName string `json:"playerName"`
}

type guessRequest struct {
	Guess string `json:"guess"`
}

type roomTicket struct {
	RoomCode string `json:"roomCode"`
	PlayerID string `json:"playerId"`
}

// CreateRoomHandler opens a room for a module with the caller as host.
func (s *RoomServer) CreateRoomHandler(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, s.logger, r, err)
		return
	}
	if req.ModuleID == "" || clean(req.HostName) == "" {
		writeError(w, s.logger, r, badRequest("moduleId and hostName are required"))
		return
	}

	mod, err := s.Catalog.Get(r.Context(), req.ModuleID)
	if err != nil {
		writeError(w, s.logger, r, err)
		return
	}
	code, hostID, err := s.Rooms.CreateRoom(r.Context(), mod.ID, mod.Name, mod.RoomTerms(), clean(req.HostName))
	if err != nil {
		writeError(w, s.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, roomTicket{RoomCode: code, PlayerID: hostID})
}

// GetRoomHandler returns the full room document.
func (s *RoomServer) GetRoomHandler(w http.ResponseWriter, r *http.Request) {
	room, err := s.Rooms.GetRoom(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, s.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// DeleteRoomHandler removes the room and every player in it.
func (s *RoomServer) DeleteRoomHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.Rooms.DeleteRoom(r.Context(), chi.URLParam(r, "code")); err != nil {
		writeError(w, s.logger, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// JoinRoomHandler admits a new player to a waiting room.
func (s *RoomServer) JoinRoomHandler(w http.ResponseWriter, r *http.Request) {
	var req joinRoomRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, s.logger, r, err)
		return
	}
	if clean(req.PlayerName) == "" {
		writeError(w, s.logger, r, badRequest("playerName is required"))
		return
	}
	code := chi.URLParam(r, "code")
	id, err := s.Rooms.JoinRoom(r.Context(), code, clean(req.PlayerName))
	if err != nil {
		writeError(w, s.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, roomTicket{RoomCode: code, PlayerID: id})
}

// ReadyHandler marks a player ready.
func (s *RoomServer) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	err := s.Rooms.SetPlayerReady(r.Context(), chi.URLParam(r, "code"), chi.URLParam(r, "playerID"))
	if err != nil {
		writeError(w, s.logger, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StartGameHandler moves the room to playing and starts its completion watcher.
func (s *RoomServer) StartGameHandler(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if err := s.Rooms.StartGame(r.Context(), code); err != nil {
		writeError(w, s.logger, r, err)
		return
	}
	s.startWatching(code)
	w.WriteHeader(http.StatusNoContent)
}

// FinishRoomHandler ends a room whose only player is still playing.
func (s *RoomServer) FinishRoomHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.Watcher.ForceFinish(r.Context(), chi.URLParam(r, "code")); err != nil {
		writeError(w, s.logger, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LeaveRoomHandler removes a player from the room.
func (s *RoomServer) LeaveRoomHandler(w http.ResponseWriter, r *http.Request) {
	err := s.Rooms.LeaveRoom(r.Context(), chi.URLParam(r, "code"), chi.URLParam(r, "playerID"))
	if err != nil {
		writeError(w, s.logger, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GuessHandler submits a guess. A guess that changed nothing answers 204.
func (s *RoomServer) GuessHandler(w http.ResponseWriter, r *http.Request) {
	var req guessRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, s.logger, r, err)
		return
	}
	p, err := s.Engine.SubmitGuess(r.Context(), chi.URLParam(r, "code"), chi.URLParam(r, "playerID"), req.Guess)
	if err != nil {
		writeError(w, s.logger, r, err)
		return
	}
	if p == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// BoardHandler renders the player's current term.
func (s *RoomServer) BoardHandler(w http.ResponseWriter, r *http.Request) {
	room, p, err := s.roomPlayer(r)
	if err != nil {
		writeError(w, s.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, game.Board(room, p))
}

// ReportHandler ranks the players of the room.
func (s *RoomServer) ReportHandler(w http.ResponseWriter, r *http.Request) {
	room, err := s.Rooms.GetRoom(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, s.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, game.Report(room))
}

func (s *RoomServer) roomPlayer(r *http.Request) (*models.Room, *models.Player, error) {
	code := chi.URLParam(r, "code")
	room, err := s.Rooms.GetRoom(r.Context(), code)
	if err != nil {
		return nil, nil, err
	}
	id := chi.URLParam(r, "playerID")
	p, ok := room.Players[id]
	if !ok {
		return nil, nil, lobby.ErrPlayerNotFound
	}
	return room, p, nil
}
