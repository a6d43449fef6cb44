// internal/game/watcher.go
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
	"github.com/sirupsen/logrus"
)

// DefaultWatchInterval is the period of the safety-net completion check.
const DefaultWatchInterval = 3 * time.Second

const finishHookTimeout = 10 * time.Second

// ErrPlayersStillPlaying is returned by ForceFinish when more than one player
// is in the room.
var ErrPlayersStillPlaying = errors.New("other players are still playing")

// Watcher finishes rooms once every player has consumed every term.
type Watcher struct {
	tree     store.Tree
	logger   *logrus.Logger
	interval time.Duration
	now      func() time.Time

	// OnFinished, when set, receives the room right after it moved to finished.
	OnFinished func(ctx context.Context, room *models.Room)
}

// NewWatcher builds a Watcher polling every interval; a non-positive interval
// means DefaultWatchInterval.
func NewWatcher(tree store.Tree, logger *logrus.Logger, interval time.Duration) *Watcher {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if interval <= 0 {
		interval = DefaultWatchInterval
	}
	return &Watcher{
		tree:     tree,
		logger:   logger,
		interval: interval,
		now:      time.Now,
	}
}

// CheckAllPlayersComplete reports whether every player has reached the end of
// the term list; a room everyone left is complete too. When that holds for a
// room in play, the room is moved to finished. The transition re-checks the roster
// inside its transaction and is a no-op if another caller got there first.
func (w *Watcher) CheckAllPlayersComplete(ctx context.Context, roomCode string) (bool, error) {
	if w == nil || w.tree == nil {
		return false, store.ErrUnavailable
	}
	room, err := w.readRoom(ctx, roomCode)
	if err != nil {
		return false, err
	}
	if !room.AllFinished() {
		return false, nil
	}
	if room.Status == models.StatusPlaying {
		err := w.finish(ctx, roomCode, func(r *models.Room) error {
			if !r.AllFinished() {
				return errNotDone
			}
			return nil
		})
		if errors.Is(err, errNotDone) {
			return false, nil
		}
		if err != nil {
			return true, err
		}
	}
	return true, nil
}

// ForceFinish ends a room in play whose roster has at most one player,
// without waiting for that player to finish.
func (w *Watcher) ForceFinish(ctx context.Context, roomCode string) error {
	if w == nil || w.tree == nil {
		return store.ErrUnavailable
	}
	return w.finish(ctx, roomCode, func(r *models.Room) error {
		if len(r.Players) > 1 {
			return ErrPlayersStillPlaying
		}
		return nil
	})
}

var errNotDone = errors.New("players still playing")

// finish moves the room from playing to finished if allow accepts it.
func (w *Watcher) finish(ctx context.Context, roomCode string, allow func(*models.Room) error) error {
	var final *models.Room
	res, err := w.tree.Transact(ctx, lobby.RoomPath(roomCode), func(current json.RawMessage) (any, error) {
		final = nil
		if len(current) == 0 {
			return nil, lobby.ErrRoomNotFound
		}
		var r models.Room
		if err := json.Unmarshal(current, &r); err != nil {
			return nil, fmt.Errorf("decode room: %w", err)
		}
		r.Normalize()
		if r.Status != models.StatusPlaying {
			return nil, nil
		}
		if err := allow(&r); err != nil {
			return nil, err
		}
		r.Status = models.StatusFinished
		r.FinishedAt = w.now().UnixMilli()
		final = &r
		return &r, nil
	})
	if err != nil {
		return fmt.Errorf("finish room %s: %w", roomCode, err)
	}
	if !res.Committed || final == nil {
		return nil
	}

	metrics.RoomsFinished.Inc()
	w.logger.WithFields(logrus.Fields{"room": roomCode, "players": len(final.Players)}).Info("room finished")
	if w.OnFinished != nil {
		// the room is already finished, so a cancelled caller must not lose the hook
		hookCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finishHookTimeout)
		defer cancel()
		w.OnFinished(hookCtx, final)
	}
	return nil
}

// Watch runs the completion check every interval while the room is in play.
// It returns nil once the room is finished or deleted, or ctx's error when
// cancelled.
func (w *Watcher) Watch(ctx context.Context, roomCode string) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	log := w.logger.WithField("room", roomCode)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		room, err := w.readRoom(ctx, roomCode)
		if errors.Is(err, lobby.ErrRoomNotFound) {
			log.Debug("room gone, watcher exiting")
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.WithError(err).Warn("completion poll failed")
			continue
		}
		switch room.Status {
		case models.StatusFinished:
			return nil
		case models.StatusWaiting:
			continue
		}
		done, err := w.CheckAllPlayersComplete(ctx, roomCode)
		if err != nil {
			log.WithError(err).Warn("completion check failed")
			continue
		}
		if done {
			return nil
		}
	}
}

func (w *Watcher) readRoom(ctx context.Context, roomCode string) (*models.Room, error) {
	snap, err := w.tree.Read(ctx, lobby.RoomPath(roomCode))
	if err != nil {
		return nil, fmt.Errorf("read room %s: %w", roomCode, err)
	}
	if !snap.Exists() {
		return nil, fmt.Errorf("%w: %s", lobby.ErrRoomNotFound, roomCode)
	}
	var room models.Room
	if err := snap.Decode(&room); err != nil {
		return nil, fmt.Errorf("decode room %s: %w", roomCode, err)
	}
	room.Normalize()
	return &room, nil
}
