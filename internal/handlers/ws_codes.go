// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the room socket.
const (
	BadSubprotocolError  = 3000 // Client connected with an unsupported subprotocol.
	InvalidPlayerIDError = 3002 // playerId missing or not in the room.
	InvalidRoomCodeError = 3003 // Room in the WS URL does not exist.
	RoomDeletedError     = 3004 // Room was deleted while connected.
	PlayerLeftError      = 3005 // Player left the room or was removed from it.
)
