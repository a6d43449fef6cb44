// internal/game/engine.go
package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jason-s-yu/forca/internal/lobby"
	"github.com/jason-s-yu/forca/internal/metrics"
	"github.com/jason-s-yu/forca/internal/models"
	"github.com/jason-s-yu/forca/internal/store"
	"github.com/jason-s-yu/forca/internal/textnorm"
	"github.com/sirupsen/logrus"
)

// GuessEvent is emitted after a guess commits.
type GuessEvent struct {
	RoomCode string         `json:"roomCode"`
	PlayerID string         `json:"playerId"`
	Outcome  Outcome        `json:"outcome"`
	Player   *models.Player `json:"player"`
}

// Engine resolves guesses. Each guess is one transaction on the guessing
// player's subtree, so players never contend with each other.
type Engine struct {
	tree    store.Tree
	watcher *Watcher
	logger  *logrus.Logger
	now     func() time.Time

	// OnGuess, when set, receives every committed guess.
	OnGuess func(GuessEvent)
}

// NewEngine builds an Engine. watcher may be nil, in which case completion is
// left to the periodic check.
func NewEngine(tree store.Tree, watcher *Watcher, logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Engine{
		tree:    tree,
		watcher: watcher,
		logger:  logger,
		now:     time.Now,
	}
}

// SubmitGuess applies rawGuess for the player. It returns the committed
// player, or (nil, nil) when the guess changed nothing: a duplicate, a player
// already past the last term, a room not in play, or a transaction that kept
// losing to concurrent writers. Only structural problems are errors.
func (e *Engine) SubmitGuess(ctx context.Context, roomCode, playerID, rawGuess string) (*models.Player, error) {
	if e == nil || e.tree == nil {
		return nil, store.ErrUnavailable
	}
	start := time.Now()
	defer func() { metrics.GuessDuration.Observe(time.Since(start).Seconds()) }()

	log := e.logger.WithFields(logrus.Fields{"room": roomCode, "player": playerID})
	if textnorm.Normalize(rawGuess) == "" {
		e.ignored(log, ReasonEmpty, rawGuess)
		return nil, nil
	}

	status, terms, err := e.roomState(ctx, roomCode)
	if err != nil {
		return nil, err
	}
	if status != models.StatusPlaying {
		e.ignored(log, ReasonNotPlaying, rawGuess)
		return nil, nil
	}

	var outcome Outcome
	res, err := e.tree.Transact(ctx, lobby.PlayerPath(roomCode, playerID), func(current json.RawMessage) (any, error) {
		if len(current) == 0 {
			return nil, lobby.ErrPlayerNotFound
		}
		var p models.Player
		if err := json.Unmarshal(current, &p); err != nil {
			return nil, fmt.Errorf("decode player: %w", err)
		}
		var ok bool
		outcome, ok = Resolve(&p, terms, rawGuess, e.now().UnixMilli())
		if !ok {
			return nil, nil
		}
		return outcome.Player, nil
	})
	switch {
	case errors.Is(err, store.ErrMaxRetries):
		e.ignored(log, ReasonContention, rawGuess)
		return nil, nil
	case errors.Is(err, lobby.ErrPlayerNotFound):
		return nil, fmt.Errorf("%w: %s in room %s", lobby.ErrPlayerNotFound, playerID, roomCode)
	case err != nil:
		return nil, fmt.Errorf("submit guess %s/%s: %w", roomCode, playerID, err)
	}
	if !res.Committed {
		e.ignored(log, outcome.Reason, rawGuess)
		return nil, nil
	}

	player := outcome.Player
	metrics.GuessOutcomes.WithLabelValues(string(outcome.Kind)).Inc()
	log.WithFields(logrus.Fields{
		"guess":   outcome.Guess,
		"outcome": outcome.Kind,
		"index":   player.CurrentTermIndex,
		"score":   player.Score,
	}).Debug("guess resolved")

	if e.OnGuess != nil {
		e.OnGuess(GuessEvent{RoomCode: roomCode, PlayerID: playerID, Outcome: outcome, Player: player})
	}
	if e.watcher != nil {
		if _, err := e.watcher.CheckAllPlayersComplete(ctx, roomCode); err != nil {
			log.WithError(err).Warn("completion check after guess failed")
		}
	}
	return player, nil
}

// roomState reads the room status and terms without touching player
// documents. Terms never change after creation, so this read needs no
// transaction.
func (e *Engine) roomState(ctx context.Context, roomCode string) (models.RoomStatus, []models.Term, error) {
	path := lobby.RoomPath(roomCode)
	snap, err := e.tree.Read(ctx, path+"/status")
	if err != nil {
		return "", nil, fmt.Errorf("read room %s: %w", roomCode, err)
	}
	if !snap.Exists() {
		return "", nil, fmt.Errorf("%w: %s", lobby.ErrRoomNotFound, roomCode)
	}
	var status models.RoomStatus
	if err := snap.Decode(&status); err != nil {
		return "", nil, fmt.Errorf("decode status: %w", err)
	}
	if status != models.StatusPlaying {
		return status, nil, nil
	}

	snap, err = e.tree.Read(ctx, path+"/terms")
	if err != nil {
		return "", nil, fmt.Errorf("read room %s: %w", roomCode, err)
	}
	var terms []models.Term
	if err := snap.Decode(&terms); err != nil {
		return "", nil, fmt.Errorf("decode terms: %w", err)
	}
	return status, terms, nil
}

func (e *Engine) ignored(log *logrus.Entry, reason, raw string) {
	metrics.GuessesIgnored.WithLabelValues(reason).Inc()
	log.WithFields(logrus.Fields{"guess": raw, "reason": reason}).Debug("guess ignored")
}
