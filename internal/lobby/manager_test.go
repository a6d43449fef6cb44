// internal/lobby/manager_test.go
package lobby

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jason-s-yu/forca/internal/models"
	"github.com/jason-s-yu/forca/internal/store"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTerms(n int) []models.Term {
	terms := make([]models.Term, n)
	for i := range terms {
		terms[i] = models.Term{
			ID:       fmt.Sprintf("bio_term_%d", i+1),
			Word:     fmt.Sprintf("WORD%d", i+1),
			Hint:     "hint",
			Category: "biologia",
		}
	}
	return terms
}

func sequence(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s%d", prefix, n)
	}
}

func newTestManager(t *testing.T, opts ...Option) (*Manager, *store.KVTree) {
	t.Helper()
	tree := store.NewKVTree(store.NewMemoryBackend())
	t.Cleanup(func() { _ = tree.Close() })
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	base := []Option{
		WithIDGenerator(sequence("p")),
		WithClock(func() time.Time { return time.UnixMilli(1_700_000_000_000) }),
	}
	return NewManager(tree, logger, append(base, opts...)...), tree
}

func TestCreateRoom(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	code, hostID, err := m.CreateRoom(ctx, "biologia", "Biologia", testTerms(15), "Ana")
	require.NoError(t, err)
	assert.True(t, ValidRoomCode(code), "code %q", code)
	assert.Equal(t, "p1", hostID)

	room, err := m.GetRoom(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, models.StatusWaiting, room.Status)
	assert.Equal(t, hostID, room.HostID)
	assert.Equal(t, "Ana", room.HostName)
	assert.Len(t, room.Terms, models.MaxRoomTerms)
	assert.Equal(t, models.DefaultMaxPlayers, room.MaxPlayers)
	assert.EqualValues(t, 1_700_000_000_000, room.CreatedAt)
	assert.Zero(t, room.StartedAt)

	seen := map[string]bool{}
	for _, term := range room.Terms {
		assert.False(t, seen[term.ID], "term %s drawn twice", term.ID)
		seen[term.ID] = true
	}

	host := room.Players[hostID]
	require.NotNil(t, host)
	assert.True(t, host.IsHost)
	assert.False(t, host.IsReady)
	assert.NotNil(t, host.GuessedLetters)
	assert.NotNil(t, host.WordGuesses)
	assert.NotNil(t, host.CompletedTerms)
}

func TestCreateRoomKeepsShortTermListWhole(t *testing.T) {
	m, _ := newTestManager(t)
	code, _, err := m.CreateRoom(context.Background(), "m", "M", testTerms(3), "Ana")
	require.NoError(t, err)
	room, err := m.GetRoom(context.Background(), code)
	require.NoError(t, err)
	assert.Len(t, room.Terms, 3)
}

func TestCreateRoomRejectsEmptyTerms(t *testing.T) {
	m, _ := newTestManager(t)
	_, _, err := m.CreateRoom(context.Background(), "m", "M", nil, "Ana")
	assert.ErrorIs(t, err, ErrNoTerms)
}

func TestCreateRoomRetriesOnCodeCollision(t *testing.T) {
	codes := []string{"AAAAAA", "AAAAAA", "BBBBBB"}
	i := 0
	m, _ := newTestManager(t, WithCodeGenerator(func() (string, error) {
		c := codes[i]
		i++
		return c, nil
	}))
	ctx := context.Background()

	first, _, err := m.CreateRoom(ctx, "m", "M", testTerms(2), "Ana")
	require.NoError(t, err)
	assert.Equal(t, "AAAAAA", first)

	second, _, err := m.CreateRoom(ctx, "m", "M", testTerms(2), "Bia")
	require.NoError(t, err)
	assert.Equal(t, "BBBBBB", second)

	room, err := m.GetRoom(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, "Ana", room.HostName, "collision must not overwrite the first room")
}

func TestCreateRoomCodeExhausted(t *testing.T) {
	m, _ := newTestManager(t, WithCodeGenerator(func() (string, error) { return "ZZZZZZ", nil }))
	ctx := context.Background()
	_, _, err := m.CreateRoom(ctx, "m", "M", testTerms(2), "Ana")
	require.NoError(t, err)
	_, _, err = m.CreateRoom(ctx, "m", "M", testTerms(2), "Bia")
	assert.ErrorIs(t, err, ErrRoomCodeExhausted)
}

func TestJoinRoom(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	code, _, err := m.CreateRoom(ctx, "m", "M", testTerms(2), "Ana")
	require.NoError(t, err)

	id, err := m.JoinRoom(ctx, code, "Bruno")
	require.NoError(t, err)
	assert.Equal(t, "p2", id)

	room, err := m.GetRoom(ctx, code)
	require.NoError(t, err)
	require.Contains(t, room.Players, id)
	assert.Equal(t, "Bruno", room.Players[id].Name)
	assert.False(t, room.Players[id].IsHost)

	_, err = m.JoinRoom(ctx, "NOPE00", "Carla")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestJoinRoomRejectsDuplicateGeneratedID(t *testing.T) {
	ids := []string{"host", "host", "guest"}
	i := 0
	m, _ := newTestManager(t, WithIDGenerator(func() string {
		id := ids[i]
		i++
		return id
	}))
	ctx := context.Background()
	code, _, err := m.CreateRoom(ctx, "m", "M", testTerms(2), "Ana")
	require.NoError(t, err)

	id, err := m.JoinRoom(ctx, code, "Bruno")
	require.NoError(t, err)
	assert.Equal(t, "guest", id)
}

func TestJoinRoomEnforcesCap(t *testing.T) {
	m, _ := newTestManager(t, WithMaxPlayers(3))
	ctx := context.Background()
	code, _, err := m.CreateRoom(ctx, "m", "M", testTerms(2), "Ana")
	require.NoError(t, err)

	_, err = m.JoinRoom(ctx, code, "B")
	require.NoError(t, err)
	_, err = m.JoinRoom(ctx, code, "C")
	require.NoError(t, err)
	_, err = m.JoinRoom(ctx, code, "D")
	assert.ErrorIs(t, err, ErrRoomFull)
}

func TestJoinRoomConcurrentNeverExceedsCap(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	code, _, err := m.CreateRoom(ctx, "m", "M", testTerms(2), "Ana")
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var full int
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := m.JoinRoom(ctx, code, fmt.Sprintf("J%d", i))
			if err != nil {
				mu.Lock()
				defer mu.Unlock()
				assert.ErrorIs(t, err, ErrRoomFull)
				full++
			}
		}(i)
	}
	wg.Wait()

	room, err := m.GetRoom(ctx, code)
	require.NoError(t, err)
	assert.Len(t, room.Players, models.DefaultMaxPlayers)
	assert.Equal(t, 5, full)
}

func TestJoinRoomAfterStart(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	code, _, err := m.CreateRoom(ctx, "m", "M", testTerms(2), "Ana")
	require.NoError(t, err)
	require.NoError(t, m.StartGame(ctx, code))

	_, err = m.JoinRoom(ctx, code, "Late")
	assert.ErrorIs(t, err, ErrGameAlreadyStarted)
}

func TestSetPlayerReady(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	code, host, err := m.CreateRoom(ctx, "m", "M", testTerms(2), "Ana")
	require.NoError(t, err)
	guest, err := m.JoinRoom(ctx, code, "Bruno")
	require.NoError(t, err)

	require.NoError(t, m.SetPlayerReady(ctx, code, host))
	require.NoError(t, m.SetPlayerReady(ctx, code, host), "second call is a no-op")

	room, err := m.GetRoom(ctx, code)
	require.NoError(t, err)
	assert.True(t, room.Players[host].IsReady)
	assert.False(t, AllReady(room))

	require.NoError(t, m.SetPlayerReady(ctx, code, guest))
	room, err = m.GetRoom(ctx, code)
	require.NoError(t, err)
	assert.True(t, AllReady(room))

	assert.ErrorIs(t, m.SetPlayerReady(ctx, code, "ghost"), ErrPlayerNotFound)
	assert.ErrorIs(t, m.SetPlayerReady(ctx, "NOPE00", host), ErrRoomNotFound)

	room, err = m.GetRoom(ctx, code)
	require.NoError(t, err)
	assert.NotContains(t, room.Players, "ghost")
}

func TestStartGameResetsProgress(t *testing.T) {
	m, tree := newTestManager(t)
	ctx := context.Background()
	code, host, err := m.CreateRoom(ctx, "m", "M", testTerms(2), "Ana")
	require.NoError(t, err)

	// leftovers from an earlier session
	require.NoError(t, tree.Update(ctx, RoomPath(code), map[string]any{
		"players/" + host + "/currentTermIndex": 2,
		"players/" + host + "/wrongGuesses":     3,
		"players/" + host + "/guessedLetters":   []string{"A"},
		"players/" + host + "/score":            300,
	}))

	require.NoError(t, m.StartGame(ctx, code))
	room, err := m.GetRoom(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPlaying, room.Status)
	assert.EqualValues(t, 1_700_000_000_000, room.StartedAt)

	p := room.Players[host]
	assert.Zero(t, p.CurrentTermIndex)
	assert.Zero(t, p.WrongGuesses)
	assert.Empty(t, p.GuessedLetters)
	assert.Empty(t, p.CompletedTerms)
	assert.Equal(t, 300, p.Score, "score is not part of the progress reset")

	assert.ErrorIs(t, m.StartGame(ctx, code), ErrGameAlreadyStarted)
	assert.ErrorIs(t, m.StartGame(ctx, "NOPE00"), ErrRoomNotFound)
}

func TestStartGameWithoutPlayers(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	code, host, err := m.CreateRoom(ctx, "m", "M", testTerms(2), "Ana")
	require.NoError(t, err)
	require.NoError(t, m.LeaveRoom(ctx, code, host))

	assert.ErrorIs(t, m.StartGame(ctx, code), ErrNoPlayers)
}

func TestLeaveAndDeleteRoom(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	code, host, err := m.CreateRoom(ctx, "m", "M", testTerms(2), "Ana")
	require.NoError(t, err)
	guest, err := m.JoinRoom(ctx, code, "Bruno")
	require.NoError(t, err)

	require.NoError(t, m.LeaveRoom(ctx, code, guest))
	room, err := m.GetRoom(ctx, code)
	require.NoError(t, err)
	assert.NotContains(t, room.Players, guest)
	assert.Contains(t, room.Players, host)

	require.NoError(t, m.DeleteRoom(ctx, code))
	_, err = m.GetRoom(ctx, code)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestListenToRoom(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	code, _, err := m.CreateRoom(ctx, "m", "M", testTerms(2), "Ana")
	require.NoError(t, err)

	updates := make(chan *models.Room, 8)
	unsubscribe, err := m.ListenToRoom(ctx, code, func(r *models.Room) { updates <- r })
	require.NoError(t, err)
	defer unsubscribe()

	next := func() *models.Room {
		t.Helper()
		select {
		case r := <-updates:
			return r
		case <-time.After(2 * time.Second):
			t.Fatal("no room update")
			return nil
		}
	}

	first := next()
	require.NotNil(t, first)
	assert.Len(t, first.Players, 1)

	_, err = m.JoinRoom(ctx, code, "Bruno")
	require.NoError(t, err)
	assert.Len(t, next().Players, 2)

	require.NoError(t, m.DeleteRoom(ctx, code))
	assert.Nil(t, next())
}

func TestUnavailableStore(t *testing.T) {
	m := NewManager(nil, nil)
	ctx := context.Background()

	_, _, err := m.CreateRoom(ctx, "m", "M", testTerms(1), "Ana")
	assert.ErrorIs(t, err, store.ErrUnavailable)
	_, err = m.JoinRoom(ctx, "ABC123", "B")
	assert.ErrorIs(t, err, store.ErrUnavailable)
	assert.ErrorIs(t, m.SetPlayerReady(ctx, "ABC123", "p"), store.ErrUnavailable)
	assert.ErrorIs(t, m.StartGame(ctx, "ABC123"), store.ErrUnavailable)
	assert.ErrorIs(t, m.LeaveRoom(ctx, "ABC123", "p"), store.ErrUnavailable)
	assert.ErrorIs(t, m.DeleteRoom(ctx, "ABC123"), store.ErrUnavailable)
	_, err = m.GetRoom(ctx, "ABC123")
	assert.ErrorIs(t, err, store.ErrUnavailable)
}

func TestNewRoomCode(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := NewRoomCode()
		require.NoError(t, err)
		assert.True(t, ValidRoomCode(code), "code %q", code)
	}
	assert.False(t, ValidRoomCode("abc123"))
	assert.False(t, ValidRoomCode("ABC12"))
	assert.False(t, ValidRoomCode("ABC12/"))
}
