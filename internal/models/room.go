// internal/models/room.go
package models

// RoomStatus is the lifecycle state of a room. It only moves forward:
// waiting -> playing -> finished.
type RoomStatus string

const (
	StatusWaiting  RoomStatus = "waiting"
	StatusPlaying  RoomStatus = "playing"
	StatusFinished RoomStatus = "finished"
)

// DefaultMaxPlayers caps the roster of a room.
const DefaultMaxPlayers = 6

// MaxRoomTerms is how many terms a room draws from its module.
const MaxRoomTerms = 10

// Term is the snapshot of a module term copied into a room at creation.
type Term struct {
	ID       string `json:"id"`
	Word     string `json:"word"`
	Hint     string `json:"hint"`
	Category string `json:"category"`
}

// Room is the shared document stored at rooms/{roomCode}.
// Timestamps are unix milliseconds; zero means the transition has not happened.
type Room struct {
	RoomCode   string             `json:"roomCode"`
	ModuleID   string             `json:"moduleId"`
	ModuleName string             `json:"moduleName"`
	HostID     string             `json:"hostId"`
	HostName   string             `json:"hostName"`
	Status     RoomStatus         `json:"status"`
	CreatedAt  int64              `json:"createdAt"`
	StartedAt  int64              `json:"startedAt"`
	FinishedAt int64              `json:"finishedAt"`
	Terms      []Term             `json:"terms"`
	MaxPlayers int                `json:"maxPlayers"`
	Players    map[string]*Player `json:"players"`
}

// Normalize fills the collections a decoded room may lack so callers never
// see nil maps or slices.
func (r *Room) Normalize() {
	if r.Terms == nil {
		r.Terms = []Term{}
	}
	if r.Players == nil {
		r.Players = make(map[string]*Player)
	}
	if r.MaxPlayers <= 0 {
		r.MaxPlayers = DefaultMaxPlayers
	}
	for id, p := range r.Players {
		if p == nil {
			delete(r.Players, id)
			continue
		}
		p.Normalize()
	}
}

// AllFinished reports whether every player has consumed every term. An
// empty roster counts as finished.
func (r *Room) AllFinished() bool {
	for _, p := range r.Players {
		if !p.Finished(len(r.Terms)) {
			return false
		}
	}
	return true
}

// CurrentTerm returns the term the player is working on, or false when the
// player has finished.
func (r *Room) CurrentTerm(p *Player) (Term, bool) {
	if p == nil || p.CurrentTermIndex < 0 || p.CurrentTermIndex >= len(r.Terms) {
		return Term{}, false
	}
	return r.Terms[p.CurrentTermIndex], true
}
