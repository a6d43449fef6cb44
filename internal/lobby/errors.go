// internal/lobby/errors.go
package lobby

import "errors"

var (
	ErrRoomNotFound       = errors.New("room not found")
	ErrGameAlreadyStarted = errors.New("game already started")
	ErrPlayerNotFound     = errors.New("player not found")
	ErrRoomFull           = errors.New("room is full")
	ErrNoPlayers          = errors.New("room has no players")
	ErrNoTerms            = errors.New("module has no terms")
	ErrRoomCodeExhausted  = errors.New("could not allocate a free room code")
)
