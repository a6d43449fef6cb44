// internal/handlers/room_server.go
package handlers

import (
	"context"
	"errors"
	"sync"

	"github.com/jason-s-yu/forca/internal/catalog"
	"github.com/jason-s-yu/forca/internal/game"
	"github.com/jason-s-yu/forca/internal/lobby"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Default per-connection guess limits for the room WebSocket.
const (
	DefaultGuessRate  = rate.Limit(5)
	DefaultGuessBurst = 10
)

// RoomServer ties the room manager, the guess engine, the completion watcher
// and the module catalog to the HTTP and WebSocket handlers. It also owns the
// watcher goroutines it starts, one per room in play.
type RoomServer struct {
	Rooms   *lobby.Manager
	Engine  *game.Engine
	Watcher *game.Watcher
	Catalog *catalog.Catalog

	GuessRate  rate.Limit
	GuessBurst int

	// OriginPatterns are the hosts allowed to open the room socket.
	OriginPatterns []string

	logger   *logrus.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	mu       sync.Mutex
	watching map[string]bool
	wg       sync.WaitGroup
}

// NewRoomServer builds a RoomServer. Close stops every watcher it started.
func NewRoomServer(logger *logrus.Logger, rooms *lobby.Manager, engine *game.Engine, watcher *game.Watcher, cat *catalog.Catalog) *RoomServer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &RoomServer{
		Rooms:          rooms,
		Engine:         engine,
		Watcher:        watcher,
		Catalog:        cat,
		GuessRate:      DefaultGuessRate,
		GuessBurst:     DefaultGuessBurst,
		OriginPatterns: []string{"*"},
		logger:         logger,
		ctx:            ctx,
		cancel:         cancel,
		watching:       make(map[string]bool),
	}
}

// startWatching runs the periodic completion check for the room unless one is
// already running in this process.
func (s *RoomServer) startWatching(roomCode string) {
	if s.Watcher == nil {
		return
	}
	s.mu.Lock()
	if s.watching[roomCode] || s.ctx.Err() != nil {
		s.mu.Unlock()
		return
	}
	s.watching[roomCode] = true
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.watching, roomCode)
			s.mu.Unlock()
		}()
		err := s.Watcher.Watch(s.ctx, roomCode)
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.WithError(err).WithField("room", roomCode).Warn("completion watcher stopped")
		}
	}()
}

// isWatching reports whether a watcher goroutine runs for the room.
func (s *RoomServer) isWatching(roomCode string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watching[roomCode]
}

func (s *RoomServer) newLimiter() *rate.Limiter {
	return rate.NewLimiter(s.GuessRate, s.GuessBurst)
}

// Close stops the watchers and waits for them to exit.
func (s *RoomServer) Close() {
	s.mu.Lock()
	s.cancel()
	s.mu.Unlock()
	s.wg.Wait()
}
