// internal/lobby/manager.go
package lobby

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/forca/internal/metrics"
	"github.com/jason-s-yu/forca/internal/models"
	"github.com/jason-s-yu/forca/internal/store"
	"github.com/sirupsen/logrus"
)

// maxCodeAttempts bounds how many fresh codes CreateRoom tries before giving up.
const maxCodeAttempts = 5

// RoomPath is the store path of a room document.
func RoomPath(roomCode string) string {
	return "rooms/" + roomCode
}

// PlayerPath is the store path of a player subtree.
func PlayerPath(roomCode, playerID string) string {
	return "rooms/" + roomCode + "/players/" + playerID
}

// Manager drives the room lifecycle: creation, admission, readiness, start
// and removal. All state lives in the store tree.
type Manager struct {
	tree       store.Tree
	logger     *logrus.Logger
	maxPlayers int
	maxTerms   int
	newID      func() string
	newCode    func() (string, error)
	now        func() time.Time
	shuffle    func(n int, swap func(i, j int))
}

// Option configures a Manager.
type Option func(*Manager)

// WithMaxPlayers sets the roster cap written into new rooms.
func WithMaxPlayers(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxPlayers = n
		}
	}
}

// WithMaxTerms sets how many terms a room draws from its module.
func WithMaxTerms(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxTerms = n
		}
	}
}

// WithIDGenerator replaces the UUID player id generator.
func WithIDGenerator(fn func() string) Option {
	return func(m *Manager) { m.newID = fn }
}

// WithCodeGenerator replaces NewRoomCode.
func WithCodeGenerator(fn func() (string, error)) Option {
	return func(m *Manager) { m.newCode = fn }
}

// WithClock replaces time.Now.
func WithClock(fn func() time.Time) Option {
	return func(m *Manager) { m.now = fn }
}

// WithShuffle replaces the term shuffler.
func WithShuffle(fn func(n int, swap func(i, j int))) Option {
	return func(m *Manager) { m.shuffle = fn }
}

// NewManager builds a Manager over tree. A nil tree is allowed; every
// operation then fails with store.ErrUnavailable.
func NewManager(tree store.Tree, logger *logrus.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	m := &Manager{
		tree:       tree,
		logger:     logger,
		maxPlayers: models.DefaultMaxPlayers,
		maxTerms:   models.MaxRoomTerms,
		newID:      uuid.NewString,
		newCode:    NewRoomCode,
		now:        time.Now,
		shuffle:    rand.Shuffle,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) ready() error {
	if m == nil || m.tree == nil {
		return store.ErrUnavailable
	}
	return nil
}

// CreateRoom opens a waiting room for the module with the host as its only
// player. The room is written through a transaction that refuses to overwrite
// an existing room, drawing a new code on collision.
func (m *Manager) CreateRoom(ctx context.Context, moduleID, moduleName string, terms []models.Term, hostName string) (string, string, error) {
	if err := m.ready(); err != nil {
		return "", "", err
	}
	if len(terms) == 0 {
		return "", "", ErrNoTerms
	}

	now := m.now().UnixMilli()
	hostID := m.newID()
	room := &models.Room{
		ModuleID:   moduleID,
		ModuleName: moduleName,
		HostID:     hostID,
		HostName:   hostName,
		Status:     models.StatusWaiting,
		CreatedAt:  now,
		Terms:      m.pickTerms(terms),
		MaxPlayers: m.maxPlayers,
		Players: map[string]*models.Player{
			hostID: models.NewPlayer(hostID, hostName, true, now),
		},
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := m.newCode()
		if err != nil {
			return "", "", err
		}
		room.RoomCode = code
		res, err := m.tree.Transact(ctx, RoomPath(code), func(current json.RawMessage) (any, error) {
			if len(current) > 0 {
				return nil, nil
			}
			return room, nil
		})
		if err != nil {
			return "", "", fmt.Errorf("create room %s: %w", code, err)
		}
		if res.Committed {
			metrics.RoomsCreated.Inc()
			m.logger.WithFields(logrus.Fields{
				"room":   code,
				"module": moduleID,
				"player": hostID,
				"terms":  len(room.Terms),
			}).Info("room created")
			return code, hostID, nil
		}
		m.logger.WithField("room", code).Warn("room code already in use, drawing another")
	}
	return "", "", ErrRoomCodeExhausted
}

// pickTerms shuffles a copy of terms once and keeps at most maxTerms.
func (m *Manager) pickTerms(terms []models.Term) []models.Term {
	picked := append([]models.Term(nil), terms...)
	m.shuffle(len(picked), func(i, j int) { picked[i], picked[j] = picked[j], picked[i] })
	if len(picked) > m.maxTerms {
		picked = picked[:m.maxTerms]
	}
	return picked
}

// JoinRoom admits a new player to a waiting room. The status, roster cap and
// id uniqueness checks commit atomically with the new player entry.
func (m *Manager) JoinRoom(ctx context.Context, roomCode, playerName string) (string, error) {
	if err := m.ready(); err != nil {
		return "", err
	}

	var playerID string
	_, err := m.tree.Transact(ctx, RoomPath(roomCode), func(current json.RawMessage) (any, error) {
		room, err := decodeRoom(current)
		if err != nil {
			return nil, err
		}
		if room.Status != models.StatusWaiting {
			return nil, ErrGameAlreadyStarted
		}
		if len(room.Players) >= room.MaxPlayers {
			return nil, ErrRoomFull
		}
		playerID = ""
		for i := 0; i < maxCodeAttempts; i++ {
			if id := m.newID(); room.Players[id] == nil {
				playerID = id
				break
			}
		}
		if playerID == "" {
			return nil, fmt.Errorf("could not allocate a unique player id")
		}
		room.Players[playerID] = models.NewPlayer(playerID, playerName, false, m.now().UnixMilli())
		return room, nil
	})
	if err != nil {
		return "", fmt.Errorf("join room %s: %w", roomCode, err)
	}

	metrics.PlayersJoined.Inc()
	m.logger.WithFields(logrus.Fields{"room": roomCode, "player": playerID}).Info("player joined")
	return playerID, nil
}

// SetPlayerReady marks the player ready. Marking a ready player again is a no-op.
func (m *Manager) SetPlayerReady(ctx context.Context, roomCode, playerID string) error {
	if err := m.ready(); err != nil {
		return err
	}
	res, err := m.tree.Transact(ctx, PlayerPath(roomCode, playerID), func(current json.RawMessage) (any, error) {
		if len(current) == 0 {
			return nil, ErrPlayerNotFound
		}
		var p models.Player
		if err := json.Unmarshal(current, &p); err != nil {
			return nil, err
		}
		if p.IsReady {
			return nil, nil
		}
		p.Normalize()
		p.IsReady = true
		p.LastUpdate = m.now().UnixMilli()
		return &p, nil
	})
	if errors.Is(err, ErrPlayerNotFound) {
		return m.playerOrRoomMissing(ctx, roomCode, playerID)
	}
	if err != nil {
		return fmt.Errorf("set ready %s/%s: %w", roomCode, playerID, err)
	}
	if res.Committed {
		m.logger.WithFields(logrus.Fields{"room": roomCode, "player": playerID}).Debug("player ready")
	}
	return nil
}

// playerOrRoomMissing tells a missing room apart from a missing player.
func (m *Manager) playerOrRoomMissing(ctx context.Context, roomCode, playerID string) error {
	snap, err := m.tree.Read(ctx, RoomPath(roomCode)+"/status")
	if err != nil {
		return err
	}
	if !snap.Exists() {
		return fmt.Errorf("%w: %s", ErrRoomNotFound, roomCode)
	}
	return fmt.Errorf("%w: %s in room %s", ErrPlayerNotFound, playerID, roomCode)
}

// StartGame moves a waiting room to playing and puts every player back at
// the first term, all in one commit.
func (m *Manager) StartGame(ctx context.Context, roomCode string) error {
	if err := m.ready(); err != nil {
		return err
	}
	_, err := m.tree.Transact(ctx, RoomPath(roomCode), func(current json.RawMessage) (any, error) {
		room, err := decodeRoom(current)
		if err != nil {
			return nil, err
		}
		if room.Status != models.StatusWaiting {
			return nil, ErrGameAlreadyStarted
		}
		if len(room.Players) == 0 {
			return nil, ErrNoPlayers
		}
		now := m.now().UnixMilli()
		for _, p := range room.Players {
			p.CompletedTerms = []models.CompletedTerm{}
			p.GuessedLetters = []string{}
			p.WordGuesses = []string{}
			p.WrongGuesses = 0
			p.CurrentTermIndex = 0
			p.LastUpdate = now
		}
		room.Status = models.StatusPlaying
		room.StartedAt = now
		return room, nil
	})
	if err != nil {
		return fmt.Errorf("start game %s: %w", roomCode, err)
	}
	metrics.GamesStarted.Inc()
	m.logger.WithField("room", roomCode).Info("game started")
	return nil
}

// LeaveRoom removes the player from the room.
func (m *Manager) LeaveRoom(ctx context.Context, roomCode, playerID string) error {
	if err := m.ready(); err != nil {
		return err
	}
	if err := m.tree.Remove(ctx, PlayerPath(roomCode, playerID)); err != nil {
		return fmt.Errorf("leave room %s: %w", roomCode, err)
	}
	m.logger.WithFields(logrus.Fields{"room": roomCode, "player": playerID}).Info("player left")
	return nil
}

// DeleteRoom removes the room and everything under it.
func (m *Manager) DeleteRoom(ctx context.Context, roomCode string) error {
	if err := m.ready(); err != nil {
		return err
	}
	if err := m.tree.Remove(ctx, RoomPath(roomCode)); err != nil {
		return fmt.Errorf("delete room %s: %w", roomCode, err)
	}
	m.logger.WithField("room", roomCode).Info("room deleted")
	return nil
}

// GetRoom reads the whole room.
func (m *Manager) GetRoom(ctx context.Context, roomCode string) (*models.Room, error) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	snap, err := m.tree.Read(ctx, RoomPath(roomCode))
	if err != nil {
		return nil, fmt.Errorf("get room %s: %w", roomCode, err)
	}
	room, err := decodeRoom(snap.Raw())
	if err != nil {
		return nil, fmt.Errorf("get room %s: %w", roomCode, err)
	}
	return room, nil
}

// ListenToRoom calls fn with the room now and after every change. fn
// receives nil once the room is deleted.
func (m *Manager) ListenToRoom(ctx context.Context, roomCode string, fn func(*models.Room)) (func(), error) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	return m.tree.Subscribe(ctx, RoomPath(roomCode), func(s store.Snapshot) {
		if !s.Exists() {
			fn(nil)
			return
		}
		room, err := decodeRoom(s.Raw())
		if err != nil {
			m.logger.WithError(err).WithField("room", roomCode).Warn("undecodable room update")
			return
		}
		fn(room)
	})
}

// AllReady reports whether the room has players and all of them are ready.
func AllReady(room *models.Room) bool {
	if room == nil || len(room.Players) == 0 {
		return false
	}
	for _, p := range room.Players {
		if !p.IsReady {
			return false
		}
	}
	return true
}

func decodeRoom(raw json.RawMessage) (*models.Room, error) {
	if len(raw) == 0 {
		return nil, ErrRoomNotFound
	}
	var room models.Room
	if err := json.Unmarshal(raw, &room); err != nil {
		return nil, fmt.Errorf("decode room: %w", err)
	}
	room.Normalize()
	return &room, nil
}
