// internal/database/modules.go
package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/forca/internal/models"
)

const moduleColumns = `id, name, description, icon, color, difficulty, categories, author, rating, review_count, created_at, updated_at`

// ListModules returns every module with its terms.
func ListModules(ctx context.Context, pool *pgxpool.Pool) ([]models.Module, error) {
	rows, err := pool.Query(ctx, `SELECT `+moduleColumns+` FROM modules ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list modules: %w", err)
	}
	mods, err := pgx.CollectRows(rows, scanModule)
	if err != nil {
		return nil, fmt.Errorf("list modules: %w", err)
	}

	byID := make(map[string]*models.Module, len(mods))
	for i := range mods {
		byID[mods[i].ID] = &mods[i]
	}
	termRows, err := pool.Query(ctx, `SELECT module_id, `+termColumns+` FROM module_terms ORDER BY module_id, position`)
	if err != nil {
		return nil, fmt.Errorf("list module terms: %w", err)
	}
	defer termRows.Close()
	for termRows.Next() {
		var moduleID string
		var t models.ModuleTerm
		if err := termRows.Scan(append([]any{&moduleID}, termDest(&t)...)...); err != nil {
			return nil, fmt.Errorf("scan module term: %w", err)
		}
		if m := byID[moduleID]; m != nil {
			m.Terms = append(m.Terms, t)
		}
	}
	if err := termRows.Err(); err != nil {
		return nil, err
	}
	for i := range mods {
		mods[i].WordCount = len(mods[i].Terms)
	}
	return mods, nil
}

// GetModule fetches one module and its terms, or ErrNotFound.
func GetModule(ctx context.Context, pool *pgxpool.Pool, id string) (*models.Module, error) {
	rows, err := pool.Query(ctx, `SELECT `+moduleColumns+` FROM modules WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("get module %s: %w", id, err)
	}
	m, err := pgx.CollectExactlyOneRow(rows, scanModule)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("module %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get module %s: %w", id, err)
	}

	termRows, err := pool.Query(ctx, `SELECT `+termColumns+` FROM module_terms WHERE module_id = $1 ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("get module terms %s: %w", id, err)
	}
	m.Terms, err = pgx.CollectRows(termRows, func(row pgx.CollectableRow) (models.ModuleTerm, error) {
		var t models.ModuleTerm
		err := row.Scan(termDest(&t)...)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("get module terms %s: %w", id, err)
	}
	m.WordCount = len(m.Terms)
	return &m, nil
}

// InsertModule stores a module and its terms in one transaction. An existing
// id yields ErrDuplicate.
func InsertModule(ctx context.Context, pool *pgxpool.Pool, m *models.Module) error {
	err := pgx.BeginTxFunc(ctx, pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO modules (`+moduleColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			m.ID, m.Name, m.Description, m.Icon, m.Color, m.Difficulty, m.Categories,
			m.Author, m.Rating, m.ReviewCount, m.CreatedAt, m.UpdatedAt,
		)
		if err != nil {
			return err
		}
		for i, t := range m.Terms {
			_, err := tx.Exec(ctx, `
				INSERT INTO module_terms (module_id, position, `+termColumns+`)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
				m.ID, i, t.ID, t.Word, t.Hint, t.FullExplanation, t.FunFact,
				t.Difficulty, t.Category, t.Tags, t.ImageURL, t.RelatedTerms,
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if isUniqueViolation(err) {
		return fmt.Errorf("module %s: %w", m.ID, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("insert module %s: %w", m.ID, err)
	}
	return nil
}

const termColumns = `id, word, hint, full_explanation, fun_fact, difficulty, category, tags, image_url, related_terms`

func termDest(t *models.ModuleTerm) []any {
	return []any{
		&t.ID, &t.Word, &t.Hint, &t.FullExplanation, &t.FunFact,
		&t.Difficulty, &t.Category, &t.Tags, &t.ImageURL, &t.RelatedTerms,
	}
}

func scanModule(row pgx.CollectableRow) (models.Module, error) {
	var m models.Module
	err := row.Scan(
		&m.ID, &m.Name, &m.Description, &m.Icon, &m.Color, &m.Difficulty,
		&m.Categories, &m.Author, &m.Rating, &m.ReviewCount, &m.CreatedAt, &m.UpdatedAt,
	)
	return m, err
}
