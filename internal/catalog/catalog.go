// internal/catalog/catalog.go
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jason-s-yu/forca/internal/models"
	"github.com/jason-s-yu/forca/internal/textnorm"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

var (
	ErrModuleNotFound = errors.New("module not found")
	ErrModuleExists   = errors.New("a module with a similar name already exists")
	ErrInvalidModule  = errors.New("invalid module")
)

// Source persists modules. Implementations map their own missing and
// duplicate conditions to ErrModuleNotFound and ErrModuleExists.
type Source interface {
	All(ctx context.Context) ([]models.Module, error)
	Get(ctx context.Context, id string) (*models.Module, error)
	Save(ctx context.Context, m *models.Module) error
}

// Filter narrows a listing. Empty fields and "all" match everything.
type Filter struct {
	Category   string
	Difficulty string
	Search     string
}

// Catalog lists, fetches and creates study modules.
type Catalog struct {
	src Source
	now func() time.Time
}

// New wraps src.
func New(src Source) *Catalog {
	return &Catalog{src: src, now: time.Now}
}

// List returns the modules matching f sorted by name, with stats over them.
func (c *Catalog) List(ctx context.Context, f Filter) ([]models.Module, models.ModuleStats, error) {
	all, err := c.src.All(ctx)
	if err != nil {
		return nil, models.ModuleStats{}, err
	}

	out := make([]models.Module, 0, len(all))
	for _, m := range all {
		if f.matches(&m) {
			out = append(out, m)
		}
	}
	col := collate.New(language.BrazilianPortuguese, collate.IgnoreCase)
	sort.SliceStable(out, func(i, j int) bool {
		return col.CompareString(out[i].Name, out[j].Name) < 0
	})

	stats := models.ModuleStats{
		Total:        len(out),
		Categories:   make(map[string]int),
		Difficulties: make(map[string]int),
	}
	for _, m := range out {
		for _, cat := range m.Categories {
			stats.Categories[cat]++
		}
		stats.Difficulties[m.Difficulty]++
		stats.WordCount += m.WordCount
	}
	return out, stats, nil
}

func (f Filter) matches(m *models.Module) bool {
	if f.Category != "" && f.Category != "all" && !contains(m.Categories, f.Category) {
		return false
	}
	if f.Difficulty != "" && f.Difficulty != "all" && m.Difficulty != f.Difficulty {
		return false
	}
	if f.Search == "" {
		return true
	}
	q := strings.ToLower(f.Search)
	if strings.Contains(strings.ToLower(m.Name), q) ||
		strings.Contains(strings.ToLower(m.Description), q) ||
		strings.Contains(strings.ToLower(m.Author), q) {
		return true
	}
	for _, cat := range m.Categories {
		if strings.Contains(strings.ToLower(cat), q) {
			return true
		}
	}
	return false
}

// Get returns one module.
func (c *Catalog) Get(ctx context.Context, id string) (*models.Module, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return nil, fmt.Errorf("%w: %q", ErrModuleNotFound, id)
	}
	return c.src.Get(ctx, id)
}

// NewModule is the payload accepted by Create.
type NewModule struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Icon        string              `json:"icon"`
	Color       string              `json:"color"`
	Difficulty  string              `json:"difficulty"`
	Categories  []string            `json:"categories"`
	Author      string              `json:"author"`
	Terms       []models.ModuleTerm `json:"terms"`
}

// Create validates the payload, derives the module id from its name, fills
// defaults and stores the module.
func (c *Catalog) Create(ctx context.Context, in NewModule) (*models.Module, error) {
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Description) == "" || in.Terms == nil {
		return nil, fmt.Errorf("%w: name, description and terms are required", ErrInvalidModule)
	}
	if len(in.Terms) == 0 {
		return nil, fmt.Errorf("%w: a module needs at least one term", ErrInvalidModule)
	}
	id := textnorm.Slug(in.Name)
	if id == "" {
		return nil, fmt.Errorf("%w: name must contain letters or digits", ErrInvalidModule)
	}

	now := c.now().UTC()
	m := &models.Module{
		ID:          id,
		Name:        in.Name,
		Description: in.Description,
		Icon:        or(in.Icon, "📚"),
		Color:       or(in.Color, "blue"),
		Difficulty:  or(in.Difficulty, "intermediate"),
		WordCount:   len(in.Terms),
		Categories:  in.Categories,
		Author:      or(in.Author, "Usuário"),
		CreatedAt:   now,
		UpdatedAt:   now,
		Terms:       make([]models.ModuleTerm, 0, len(in.Terms)),
	}
	if len(m.Categories) == 0 {
		m.Categories = []string{"geral"}
	}
	for i, t := range in.Terms {
		if textnorm.Normalize(t.Word) == "" {
			return nil, fmt.Errorf("%w: term %d has no word", ErrInvalidModule, i+1)
		}
		m.Terms = append(m.Terms, models.ModuleTerm{
			ID:              fmt.Sprintf("%s_term_%d", id, i+1),
			Word:            strings.ToUpper(t.Word),
			Hint:            t.Hint,
			FullExplanation: or(t.FullExplanation, t.Hint),
			FunFact:         t.FunFact,
			Difficulty:      or(t.Difficulty, "medium"),
			Category:        or(t.Category, in.Name),
			Tags:            nonNil(t.Tags),
			ImageURL:        t.ImageURL,
			RelatedTerms:    nonNil(t.RelatedTerms),
		})
	}

	if err := c.src.Save(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func or(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func contains(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
