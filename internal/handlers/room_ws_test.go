// internal/handlers/room_ws_test.go
package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialRoom(t *testing.T, ctx context.Context, srv *httptest.Server, code, playerID string, subprotocols ...string) *websocket.Conn {
	t.Helper()
	if subprotocols == nil {
		subprotocols = []string{RoomSubprotocol}
	}
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/rooms/ws/" + code + "?playerId=" + playerID
	c, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{Subprotocols: subprotocols})
	require.NoError(t, err)
	t.Cleanup(func() { c.CloseNow() })
	return c
}

// readUntil reads messages until one of the given type arrives.
func readUntil(t *testing.T, ctx context.Context, c *websocket.Conn, typ string) map[string]interface{} {
	t.Helper()
	for {
		var msg map[string]interface{}
		require.NoError(t, wsjson.Read(ctx, c, &msg), "waiting for %s", typ)
		if msg["type"] == typ {
			return msg
		}
	}
}

func closeStatus(ctx context.Context, c *websocket.Conn) websocket.StatusCode {
	for {
		if _, _, err := c.Read(ctx); err != nil {
			return websocket.CloseStatus(err)
		}
	}
}

func TestRoomSocketRejects(t *testing.T) {
	ts := newTestServer(t)
	srv := httptest.NewServer(ts.handler)
	defer srv.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c := dialRoom(t, ctx, srv, "ZZZZZZ", "p1")
	assert.Equal(t, websocket.StatusCode(InvalidRoomCodeError), closeStatus(ctx, c))

	c = dialRoom(t, ctx, srv, "bad", "p1")
	assert.Equal(t, websocket.StatusCode(InvalidRoomCodeError), closeStatus(ctx, c))

	host := ts.createRoom(t, "Ana")
	c = dialRoom(t, ctx, srv, host.RoomCode, "ghost")
	assert.Equal(t, websocket.StatusCode(InvalidPlayerIDError), closeStatus(ctx, c))

	c = dialRoom(t, ctx, srv, host.RoomCode, host.PlayerID, "lobby")
	assert.Equal(t, websocket.StatusCode(BadSubprotocolError), closeStatus(ctx, c))
}

func TestRoomSocketPlay(t *testing.T) {
	ts := newTestServer(t)
	srv := httptest.NewServer(ts.handler)
	defer srv.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	host := ts.createRoom(t, "Ana")
	c := dialRoom(t, ctx, srv, host.RoomCode, host.PlayerID)

	msg := readUntil(t, ctx, c, "room")
	room := msg["room"].(map[string]interface{})
	assert.Equal(t, "waiting", room["status"])

	require.NoError(t, wsjson.Write(ctx, c, map[string]string{"type": "guess", "guess": "a"}))
	readUntil(t, ctx, c, "guess_ignored")

	require.NoError(t, wsjson.Write(ctx, c, map[string]string{"type": "start"}))
	msg = readUntil(t, ctx, c, "error")
	assert.Equal(t, "Not all players are ready", msg["message"])

	require.NoError(t, wsjson.Write(ctx, c, map[string]string{"type": "ready"}))
	require.NoError(t, wsjson.Write(ctx, c, map[string]string{"type": "start"}))
	for {
		msg = readUntil(t, ctx, c, "room")
		if msg["room"].(map[string]interface{})["status"] == "playing" {
			break
		}
	}

	require.NoError(t, wsjson.Write(ctx, c, map[string]string{"type": "guess", "guess": "o"}))
	msg = readUntil(t, ctx, c, "guess_result")
	player := msg["player"].(map[string]interface{})
	assert.Equal(t, []interface{}{"O"}, player["guessedLetters"])

	require.NoError(t, wsjson.Write(ctx, c, map[string]string{"type": "board"}))
	msg = readUntil(t, ctx, c, "board")
	assert.Equal(t, "_ _ _ O", msg["board"].(map[string]interface{})["masked"])

	require.NoError(t, wsjson.Write(ctx, c, map[string]string{"type": "dance"}))
	msg = readUntil(t, ctx, c, "error")
	assert.Equal(t, "Unknown action type: dance", msg["message"])

	w := ts.do(t, http.MethodDelete, "/rooms/"+host.RoomCode, "")
	require.Equal(t, http.StatusNoContent, w.Code)
	readUntil(t, ctx, c, "room_deleted")
	assert.Equal(t, websocket.StatusCode(RoomDeletedError), closeStatus(ctx, c))
}

func TestRoomSocketOnlyHostStarts(t *testing.T) {
	ts := newTestServer(t)
	srv := httptest.NewServer(ts.handler)
	defer srv.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	host := ts.createRoom(t, "Ana")
	guest := ts.join(t, host.RoomCode, "Bia")
	c := dialRoom(t, ctx, srv, host.RoomCode, guest.PlayerID)
	readUntil(t, ctx, c, "room")

	require.NoError(t, wsjson.Write(ctx, c, map[string]string{"type": "start"}))
	msg := readUntil(t, ctx, c, "error")
	assert.Equal(t, "Only the host can start the game", msg["message"])

	require.NoError(t, wsjson.Write(ctx, c, map[string]string{"type": "finish"}))
	msg = readUntil(t, ctx, c, "error")
	assert.Equal(t, "Only the host can finish the game", msg["message"])

	require.NoError(t, wsjson.Write(ctx, c, map[string]string{"type": "leave"}))
	assert.Equal(t, websocket.StatusCode(PlayerLeftError), closeStatus(ctx, c))
	assert.Len(t, ts.room(t, host.RoomCode).Players, 1)
}

func TestOriginPatterns(t *testing.T) {
	got := OriginPatterns([]string{"https://forca.example", "http://*", "localhost:3000"})
	assert.Equal(t, []string{"forca.example", "*", "localhost:3000"}, got)
}
