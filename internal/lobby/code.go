// internal/lobby/code.go
package lobby

import (
	"crypto/rand"
	"fmt"
	"strings"
)

const (
	// RoomCodeLength is the number of characters in a room code.
	RoomCodeLength   = 6
	roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// NewRoomCode draws a code uniformly from A-Z0-9.
func NewRoomCode() (string, error) {
	// 252 is the largest multiple of 36 below 256
	const limit = 256 - 256%len(roomCodeAlphabet)
	var sb strings.Builder
	buf := make([]byte, RoomCodeLength*2)
	for sb.Len() < RoomCodeLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("room code: %w", err)
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			sb.WriteByte(roomCodeAlphabet[int(b)%len(roomCodeAlphabet)])
			if sb.Len() == RoomCodeLength {
				break
			}
		}
	}
	return sb.String(), nil
}

// ValidRoomCode reports whether code has the shape NewRoomCode produces.
func ValidRoomCode(code string) bool {
	if len(code) != RoomCodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if strings.IndexByte(roomCodeAlphabet, code[i]) < 0 {
			return false
		}
	}
	return true
}
