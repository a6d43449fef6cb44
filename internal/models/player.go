// internal/models/player.go
package models

// MaxWrongGuesses ends a round as lost.
const MaxWrongGuesses = 6

// PointsPerWin is awarded once per won term.
const PointsPerWin = 100

// TermResult is how a round ended.
type TermResult string

const (
	ResultWon  TermResult = "won"
	ResultLost TermResult = "lost"
)

// ResolutionMethod is what ended a round.
type ResolutionMethod string

const (
	MethodWordGuess        ResolutionMethod = "word_guess"
	MethodLetterCollection ResolutionMethod = "letter_collection"
	MethodTooManyErrors    ResolutionMethod = "too_many_errors"
)

// CompletedTerm is one entry of a player's append-only history.
type CompletedTerm struct {
	TermID    string           `json:"termId"`
	Result    TermResult       `json:"result"`
	Method    ResolutionMethod `json:"method"`
	Timestamp int64            `json:"timestamp"`
}

// Player is the per-participant document stored at rooms/{roomCode}/players/{id}.
// GuessedLetters, WrongGuesses and WordGuesses describe only the term at
// CurrentTermIndex and are cleared whenever the index moves.
type Player struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	IsHost           bool            `json:"isHost"`
	IsReady          bool            `json:"isReady"`
	JoinedAt         int64           `json:"joinedAt"`
	Score            int             `json:"score"`
	CurrentTermIndex int             `json:"currentTermIndex"`
	GuessedLetters   []string        `json:"guessedLetters"`
	WrongGuesses     int             `json:"wrongGuesses"`
	WordGuesses      []string        `json:"wordGuesses"`
	CompletedTerms   []CompletedTerm `json:"completedTerms"`
	LastUpdate       int64           `json:"lastUpdate"`
}

// NewPlayer returns a player with every progress field at its zero value.
func NewPlayer(id, name string, isHost bool, now int64) *Player {
	p := &Player{
		ID:         id,
		Name:       name,
		IsHost:     isHost,
		JoinedAt:   now,
		LastUpdate: now,
	}
	p.Normalize()
	return p
}

// Normalize replaces nil collections with empty ones so they serialize as [].
func (p *Player) Normalize() {
	if p.GuessedLetters == nil {
		p.GuessedLetters = []string{}
	}
	if p.WordGuesses == nil {
		p.WordGuesses = []string{}
	}
	if p.CompletedTerms == nil {
		p.CompletedTerms = []CompletedTerm{}
	}
}

// Finished reports whether the player has consumed all n terms.
func (p *Player) Finished(n int) bool {
	return p.CurrentTermIndex >= n
}

// RemainingAttempts is how many wrong guesses the player can still afford.
func (p *Player) RemainingAttempts() int {
	if r := MaxWrongGuesses - p.WrongGuesses; r > 0 {
		return r
	}
	return 0
}

// Clone returns a deep copy.
func (p *Player) Clone() *Player {
	c := *p
	c.GuessedLetters = append([]string{}, p.GuessedLetters...)
	c.WordGuesses = append([]string{}, p.WordGuesses...)
	c.CompletedTerms = append([]CompletedTerm{}, p.CompletedTerms...)
	return &c
}
