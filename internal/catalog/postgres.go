// internal/catalog/postgres.go
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/forca/internal/database"
	"github.com/jason-s-yu/forca/internal/models"
)

// PGSource keeps modules in Postgres.
type PGSource struct {
	pool *pgxpool.Pool
}

// NewPGSource wraps an open pool. The tables come from database.EnsureSchema.
func NewPGSource(pool *pgxpool.Pool) *PGSource {
	return &PGSource{pool: pool}
}

func (s *PGSource) All(ctx context.Context) ([]models.Module, error) {
	return database.ListModules(ctx, s.pool)
}

func (s *PGSource) Get(ctx context.Context, id string) (*models.Module, error) {
	m, err := database.GetModule(ctx, s.pool, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrModuleNotFound, id)
	}
	return m, err
}

func (s *PGSource) Save(ctx context.Context, m *models.Module) error {
	err := database.InsertModule(ctx, s.pool, m)
	if errors.Is(err, database.ErrDuplicate) {
		return fmt.Errorf("%w: %s", ErrModuleExists, m.ID)
	}
	return err
}
