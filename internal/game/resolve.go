// internal/game/resolve.go
package game

import (
	"slices"

	"github.com/jason-s-yu/forca/internal/models"
	"github.com/jason-s-yu/forca/internal/textnorm"
)

// OutcomeKind classifies a committed guess.
type OutcomeKind string

const (
	OutcomeHit  OutcomeKind = "hit"
	OutcomeMiss OutcomeKind = "miss"
	OutcomeWon  OutcomeKind = "won"
	OutcomeLost OutcomeKind = "lost"
)

// Reasons a guess leaves the player untouched.
const (
	ReasonEmpty      = "empty"
	ReasonFinished   = "finished"
	ReasonDuplicate  = "duplicate"
	ReasonNotPlaying = "not_playing"
	ReasonContention = "contention"
)

// Outcome describes what a guess did to a player.
type Outcome struct {
	Kind     OutcomeKind             `json:"kind,omitempty"`
	Method   models.ResolutionMethod `json:"method,omitempty"`
	Guess    string                  `json:"guess"`
	WordMode bool                    `json:"wordGuess"`
	TermID   string                  `json:"termId,omitempty"`
	Advanced bool                    `json:"advanced"`
	Reason   string                  `json:"reason,omitempty"`

	// Player is the state to commit. It is nil when the guess is ignored.
	Player *models.Player `json:"-"`
}

// Resolve applies guess to a copy of p. The second result is false when the
// guess changes nothing: empty after normalization, player already past the
// last term, or a repeat of a letter or word tried on the current term.
// p itself is never modified.
func Resolve(p *models.Player, terms []models.Term, guess string, now int64) (Outcome, bool) {
	g := textnorm.Normalize(guess)
	out := Outcome{Guess: g, WordMode: len(g) > 1}
	if g == "" {
		out.Reason = ReasonEmpty
		return out, false
	}
	if p.CurrentTermIndex >= len(terms) {
		out.Reason = ReasonFinished
		return out, false
	}

	term := terms[p.CurrentTermIndex]
	target := textnorm.Normalize(term.Word)
	out.TermID = term.ID

	next := p.Clone()
	next.Normalize()
	next.LastUpdate = now

	if out.WordMode {
		if slices.Contains(next.WordGuesses, g) {
			out.Reason = ReasonDuplicate
			return out, false
		}
		next.WordGuesses = append(next.WordGuesses, g)
		switch {
		case g == target:
			out.Kind, out.Method = OutcomeWon, models.MethodWordGuess
		case next.WrongGuesses+1 >= models.MaxWrongGuesses:
			out.Kind, out.Method = OutcomeLost, models.MethodWordGuess
		default:
			out.Kind = OutcomeMiss
			next.WrongGuesses++
		}
	} else {
		if slices.Contains(next.GuessedLetters, g) {
			out.Reason = ReasonDuplicate
			return out, false
		}
		next.GuessedLetters = append(next.GuessedLetters, g)
		switch {
		case containsLetter(target, g) && coversWord(target, next.GuessedLetters):
			out.Kind, out.Method = OutcomeWon, models.MethodLetterCollection
		case containsLetter(target, g):
			out.Kind = OutcomeHit
		case next.WrongGuesses+1 >= models.MaxWrongGuesses:
			out.Kind, out.Method = OutcomeLost, models.MethodTooManyErrors
		default:
			out.Kind = OutcomeMiss
			next.WrongGuesses++
		}
	}

	if out.Kind == OutcomeWon || out.Kind == OutcomeLost {
		result := models.ResultLost
		if out.Kind == OutcomeWon {
			result = models.ResultWon
			next.Score += models.PointsPerWin
		}
		next.CompletedTerms = append(next.CompletedTerms, models.CompletedTerm{
			TermID:    term.ID,
			Result:    result,
			Method:    out.Method,
			Timestamp: now,
		})
		advance(next)
		out.Advanced = true
	}

	out.Player = next
	return out, true
}

// advance moves to the next term, clearing the per-term state in the same step.
func advance(p *models.Player) {
	p.CurrentTermIndex++
	p.GuessedLetters = []string{}
	p.WordGuesses = []string{}
	p.WrongGuesses = 0
}

func containsLetter(word, letter string) bool {
	for _, l := range textnorm.UniqueLetters(word) {
		if l == letter {
			return true
		}
	}
	return false
}

func coversWord(word string, guessed []string) bool {
	for _, l := range textnorm.UniqueLetters(word) {
		if !slices.Contains(guessed, l) {
			return false
		}
	}
	return true
}
