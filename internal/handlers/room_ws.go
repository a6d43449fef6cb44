// internal/handlers/room_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/jason-s-yu/forca/internal/game"
	"github.com/jason-s-yu/forca/internal/lobby"
	"github.com/jason-s-yu/forca/internal/metrics"
	"github.com/jason-s-yu/forca/internal/middleware"
	"github.com/jason-s-yu/forca/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// RoomSubprotocol is the WebSocket subprotocol clients must request.
const RoomSubprotocol = "room"

// RoomConnection is one player's live socket on a room.
type RoomConnection struct {
	RoomCode string
	PlayerID string
	OutChan  chan map[string]interface{}

	limiter *rate.Limiter
	logger  *logrus.Entry
}

// Write queues msg without blocking. A full queue drops the message.
func (conn *RoomConnection) Write(msg map[string]interface{}) {
	select {
	case conn.OutChan <- msg:
	default:
		conn.logger.WithField("type", msg["type"]).Warn("outgoing queue full, dropping message")
	}
}

// WriteError sends an error object to the client.
func (conn *RoomConnection) WriteError(msg string) {
	conn.Write(map[string]interface{}{
		"type":    "error",
		"message": msg,
	})
}

type roomPacket struct {
	Type  string `json:"type"`
	Guess string `json:"guess"`
}

// RoomWSHandler streams the room to a player and accepts their actions.
// The room is pushed on connect and after every change.
func (s *RoomServer) RoomWSHandler(w http.ResponseWriter, r *http.Request) {
	remoteAddr := r.RemoteAddr
	code := chi.URLParam(r, "code")
	playerID := r.URL.Query().Get("playerId")

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{RoomSubprotocol},
		OriginPatterns: s.OriginPatterns,
	})
	if err != nil {
		s.logger.Warnf("websocket accept error: %v", err)
		return
	}
	defer c.Close(websocket.StatusInternalError, "handler finished")

	if c.Subprotocol() != RoomSubprotocol {
		c.Close(BadSubprotocolError, "client must speak the room subprotocol")
		return
	}

	if !lobby.ValidRoomCode(code) {
		c.Close(InvalidRoomCodeError, "room does not exist")
		return
	}
	room, err := s.Rooms.GetRoom(r.Context(), code)
	if errors.Is(err, lobby.ErrRoomNotFound) {
		c.Close(InvalidRoomCodeError, "room does not exist")
		return
	}
	if err != nil {
		s.logger.WithError(err).WithField("room", code).Warn("could not load room for websocket")
		c.Close(websocket.StatusTryAgainLater, "room unavailable")
		return
	}
	if playerID == "" || room.Players[playerID] == nil {
		c.Close(InvalidPlayerIDError, "player is not in this room")
		return
	}
	if room.Status == models.StatusPlaying {
		s.startWatching(code)
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	conn := &RoomConnection{
		RoomCode: code,
		PlayerID: playerID,
		OutChan:  make(chan map[string]interface{}, 16),
		limiter:  s.newLimiter(),
		logger:   s.logger.WithFields(logrus.Fields{"room": code, "player": playerID}),
	}

	unsubscribe, err := s.Rooms.ListenToRoom(ctx, code, func(room *models.Room) {
		switch {
		case room == nil:
			conn.Write(map[string]interface{}{"type": "room_deleted"})
		case room.Players[playerID] == nil:
			conn.Write(map[string]interface{}{"type": "player_removed"})
		default:
			conn.Write(map[string]interface{}{"type": "room", "room": room})
		}
	})
	if err != nil {
		conn.logger.WithError(err).Warn("could not subscribe to room")
		c.Close(websocket.StatusTryAgainLater, "room unavailable")
		return
	}
	defer unsubscribe()

	metrics.WebSocketConnections.Inc()
	defer metrics.WebSocketConnections.Dec()
	middleware.LogWebSocketConnect(s.logger, remoteAddr, code, playerID)

	go writePump(ctx, c, conn, cancel)
	err = s.readPump(ctx, c, conn)
	middleware.LogWebSocketDisconnect(s.logger, remoteAddr, code, playerID, err)
}

// readPump handles incoming messages until the socket closes. A clean close
// returns nil.
func (s *RoomServer) readPump(ctx context.Context, c *websocket.Conn, conn *RoomConnection) error {
	for {
		typ, msg, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || ctx.Err() != nil {
				return nil
			}
			return err
		}
		if typ != websocket.MessageText {
			conn.logger.Warnf("ignoring non-text message type %d", typ)
			continue
		}

		var packet roomPacket
		if err := json.Unmarshal(msg, &packet); err != nil {
			conn.WriteError("Invalid JSON format")
			continue
		}
		if done := s.handleRoomMessage(ctx, c, conn, packet); done {
			return nil
		}
	}
}

// handleRoomMessage runs one client action. It returns true when the
// connection should end.
func (s *RoomServer) handleRoomMessage(ctx context.Context, c *websocket.Conn, conn *RoomConnection, packet roomPacket) bool {
	code, playerID := conn.RoomCode, conn.PlayerID

	switch packet.Type {
	case "guess":
		if !conn.limiter.Allow() {
			conn.WriteError("too many guesses, slow down")
			return false
		}
		p, err := s.Engine.SubmitGuess(ctx, code, playerID, packet.Guess)
		if err != nil {
			s.writeSocketError(conn, err)
			return false
		}
		if p == nil {
			conn.Write(map[string]interface{}{"type": "guess_ignored"})
			return false
		}
		conn.Write(map[string]interface{}{"type": "guess_result", "player": p})

	case "ready":
		if err := s.Rooms.SetPlayerReady(ctx, code, playerID); err != nil {
			s.writeSocketError(conn, err)
		}

	case "start":
		room, err := s.Rooms.GetRoom(ctx, code)
		if err != nil {
			s.writeSocketError(conn, err)
			return false
		}
		if room.HostID != playerID {
			conn.WriteError("Only the host can start the game")
			return false
		}
		if !lobby.AllReady(room) {
			conn.WriteError("Not all players are ready")
			return false
		}
		if err := s.Rooms.StartGame(ctx, code); err != nil {
			s.writeSocketError(conn, err)
			return false
		}
		s.startWatching(code)

	case "finish":
		room, err := s.Rooms.GetRoom(ctx, code)
		if err != nil {
			s.writeSocketError(conn, err)
			return false
		}
		if room.HostID != playerID {
			conn.WriteError("Only the host can finish the game")
			return false
		}
		if err := s.Watcher.ForceFinish(ctx, code); err != nil {
			s.writeSocketError(conn, err)
		}

	case "board":
		room, err := s.Rooms.GetRoom(ctx, code)
		if err != nil {
			s.writeSocketError(conn, err)
			return false
		}
		p := room.Players[playerID]
		if p == nil {
			s.writeSocketError(conn, lobby.ErrPlayerNotFound)
			return false
		}
		conn.Write(map[string]interface{}{"type": "board", "board": game.Board(room, p)})

	case "leave":
		if err := s.Rooms.LeaveRoom(ctx, code, playerID); err != nil {
			s.writeSocketError(conn, err)
			return false
		}
		c.Close(PlayerLeftError, "player left the room")
		return true

	default:
		conn.WriteError(fmt.Sprintf("Unknown action type: %s", packet.Type))
	}
	return false
}

// writeSocketError reports a failed action to the client, hiding internals.
func (s *RoomServer) writeSocketError(conn *RoomConnection, err error) {
	if statusFor(err) == http.StatusInternalServerError {
		conn.logger.WithError(err).Error("room action failed")
		conn.WriteError("internal error")
		return
	}
	conn.WriteError(err.Error())
}

// writePump sends queued messages and keeps the socket alive with pings.
// Deletion of the room or removal of the player ends the connection.
func writePump(ctx context.Context, c *websocket.Conn, conn *RoomConnection, cancel context.CancelFunc) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
			err := c.Ping(pingCtx)
			pingCancel()
			if err != nil {
				conn.logger.WithError(err).Debug("ping failed")
				cancel()
				return
			}
		case msg := <-conn.OutChan:
			data, err := json.Marshal(msg)
			if err != nil {
				conn.logger.Warnf("failed to marshal outgoing msg: %v", err)
				continue
			}
			writeCtx, writeCancel := context.WithTimeout(ctx, 5*time.Second)
			err = c.Write(writeCtx, websocket.MessageText, data)
			writeCancel()
			if err != nil {
				conn.logger.WithError(err).Debug("write failed")
				cancel()
				return
			}

			switch msg["type"] {
			case "room_deleted":
				c.Close(RoomDeletedError, "room deleted")
				cancel()
				return
			case "player_removed":
				c.Close(PlayerLeftError, "player left the room")
				cancel()
				return
			}
		}
	}
}
