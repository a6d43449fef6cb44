package textnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"gato", "GATO"},
		{"Mitocôndria", "MITOCONDRIA"},
		{"ação", "ACAO"},
		{"pão-de-ló", "PAODELO"},
		{"  Célula Tronco ", "CELULATRONCO"},
		{"DNA 2.0", "DNA20"},
		{"ç", "C"},
		{"", ""},
		{"!?", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalizeWithSpaces(t *testing.T) {
	assert.Equal(t, "CELULA TRONCO", NormalizeWithSpaces("  célula   tronco! "))
	assert.Equal(t, "ACIDO DESOXIRRIBONUCLEICO", NormalizeWithSpaces("Ácido desoxirribonucleico"))
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal("Ribossomo", "RIBOSSOMO"))
	assert.True(t, Equal("mitocôndria", "MITOCONDRIA"))
	assert.False(t, Equal("gato", "gata"))
}

func TestUniqueLetters(t *testing.T) {
	assert.Equal(t, []string{"B", "A", "N"}, UniqueLetters("banana"))
	assert.Equal(t, []string{"A", "C", "O"}, UniqueLetters("ação"))
	assert.Empty(t, UniqueLetters(""))
}

func TestSlug(t *testing.T) {
	cases := map[string]string{
		"Biologia Celular":     "biologia-celular",
		"Pão-de-Ló & Cia.":     "pao-de-lo-cia",
		"  Física: Óptica!  ":  "fisica-optica",
		"História do Brasil 2": "historia-do-brasil-2",
		"---":                  "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Slug(in), in)
	}
}
