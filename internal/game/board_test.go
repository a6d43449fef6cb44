// internal/game/board_test.go
package game

import (
	"testing"

	"github.com/jason-s-yu/forca/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestBoard(t *testing.T) {
	room := &models.Room{Terms: []models.Term{
		{ID: "t1", Word: "Pão de Ló", Hint: "doce", Category: "culinária"},
	}}
	p := models.NewPlayer("p1", "Ana", false, 0)

	view := Board(room, p)
	assert.Equal(t, "_ _ _   _ _   _ _", view.Masked)
	assert.Equal(t, "Palavra com 9 letras", view.LetterHint)
	assert.Equal(t, "doce", view.Hint)
	assert.Equal(t, 6, view.RemainingAttempts)
	assert.False(t, view.Finished)

	p.GuessedLetters = []string{"O", "X"}
	p.WrongGuesses = 1
	view = Board(room, p)
	assert.Equal(t, "_ _ O   _ _   _ O", view.Masked)
	assert.Equal(t, "Contém: 3ª letra: O, 9ª letra: O", view.LetterHint)
	assert.Equal(t, 5, view.RemainingAttempts)

	p.CurrentTermIndex = 1
	view = Board(room, p)
	assert.True(t, view.Finished)
	assert.Empty(t, view.Masked)
}
