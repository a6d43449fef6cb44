// internal/models/module.go
package models

import "time"

// Module is a themed study set that rooms draw their terms from.
type Module struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Icon        string       `json:"icon"`
	Color       string       `json:"color"`
	Difficulty  string       `json:"difficulty"`
	WordCount   int          `json:"wordCount"`
	Categories  []string     `json:"categories"`
	Author      string       `json:"author"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
	Rating      float64      `json:"rating"`
	ReviewCount int          `json:"reviewCount"`
	Terms       []ModuleTerm `json:"terms"`
}

// ModuleTerm is a single word of a module with its teaching material.
type ModuleTerm struct {
	ID              string   `json:"id"`
	Word            string   `json:"word"`
	Hint            string   `json:"hint"`
	FullExplanation string   `json:"fullExplanation"`
	FunFact         string   `json:"funFact"`
	Difficulty      string   `json:"difficulty"`
	Category        string   `json:"category"`
	Tags            []string `json:"tags"`
	ImageURL        string   `json:"imageUrl"`
	RelatedTerms    []string `json:"relatedTerms"`
}

// RoomTerms converts the module terms into room snapshots.
func (m *Module) RoomTerms() []Term {
	out := make([]Term, 0, len(m.Terms))
	for _, t := range m.Terms {
		out = append(out, Term{ID: t.ID, Word: t.Word, Hint: t.Hint, Category: t.Category})
	}
	return out
}

// ModuleStats summarizes a filtered module listing.
type ModuleStats struct {
	Total        int            `json:"total"`
	Categories   map[string]int `json:"categories"`
	Difficulties map[string]int `json:"difficulties"`
	WordCount    int            `json:"wordCount"`
}
