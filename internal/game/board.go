// internal/game/board.go
package game

import (
	"fmt"
	"slices"
	"strings"

	"github.com/jason-s-yu/forca/internal/models"
	"github.com/jason-s-yu/forca/internal/textnorm"
)

// BoardView is what a player sees for the current term.
type BoardView struct {
	TermIndex         int      `json:"termIndex"`
	TermCount         int      `json:"termCount"`
	TermID            string   `json:"termId"`
	Category          string   `json:"category"`
	Masked            string   `json:"masked"`
	Length            int      `json:"length"`
	Hint              string   `json:"hint"`
	LetterHint        string   `json:"letterHint"`
	GuessedLetters    []string `json:"guessedLetters"`
	WrongGuesses      int      `json:"wrongGuesses"`
	RemainingAttempts int      `json:"remainingAttempts"`
	Finished          bool     `json:"finished"`
}

// Board renders the player's current term without giving the word away.
// Unguessed letters show as "_", and spaces in multi-word terms are kept.
func Board(room *models.Room, p *models.Player) BoardView {
	view := BoardView{
		TermIndex:         p.CurrentTermIndex,
		TermCount:         len(room.Terms),
		GuessedLetters:    append([]string{}, p.GuessedLetters...),
		WrongGuesses:      p.WrongGuesses,
		RemainingAttempts: p.RemainingAttempts(),
	}
	term, ok := room.CurrentTerm(p)
	if !ok {
		view.Finished = true
		return view
	}
	word := textnorm.NormalizeWithSpaces(term.Word)
	view.TermID = term.ID
	view.Category = term.Category
	view.Hint = term.Hint
	view.Masked = MaskWord(word, p.GuessedLetters)
	view.Length = len([]rune(word))
	view.LetterHint = LetterHint(word, p.GuessedLetters)
	return view
}

// MaskWord spells word one slot per character, revealing guessed letters.
func MaskWord(word string, guessed []string) string {
	slots := make([]string, 0, len(word))
	for _, r := range word {
		l := string(r)
		switch {
		case r == ' ':
			slots = append(slots, " ")
		case slices.Contains(guessed, l):
			slots = append(slots, l)
		default:
			slots = append(slots, "_")
		}
	}
	return strings.Join(slots, " ")
}

// LetterHint describes the word by length until a letter is found, then by
// the positions of the revealed letters.
func LetterHint(word string, guessed []string) string {
	runes := []rune(word)
	var positions []string
	for i, r := range runes {
		if r != ' ' && slices.Contains(guessed, string(r)) {
			positions = append(positions, fmt.Sprintf("%dª letra: %c", i+1, r))
		}
	}
	if len(positions) == 0 {
		return fmt.Sprintf("Palavra com %d letras", len(runes))
	}
	return "Contém: " + strings.Join(positions, ", ")
}
