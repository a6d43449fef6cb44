// internal/catalog/dir.go
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jason-s-yu/forca/internal/models"
)

// DirSource keeps one {id}.json file per module in a directory.
type DirSource struct {
	dir string
	mu  sync.RWMutex
}

// NewDirSource reads and writes modules under dir, creating it if needed.
func NewDirSource(dir string) (*DirSource, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("modules dir %s: %w", dir, err)
	}
	return &DirSource{dir: dir}, nil
}

func (d *DirSource) All(ctx context.Context) ([]models.Module, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, fmt.Errorf("read modules dir: %w", err)
	}
	var out []models.Module
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		m, err := d.load(filepath.Join(d.dir, e.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, nil
}

func (d *DirSource) Get(ctx context.Context, id string) (*models.Module, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	m, err := d.load(filepath.Join(d.dir, id+".json"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrModuleNotFound, id)
	}
	return m, err
}

// Save writes a new module file and refuses to replace an existing one.
func (d *DirSource) Save(ctx context.Context, m *models.Module) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	f, err := os.OpenFile(filepath.Join(d.dir, m.ID+".json"), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("%w: %s", ErrModuleExists, m.ID)
	}
	if err != nil {
		return fmt.Errorf("save module %s: %w", m.ID, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("save module %s: %w", m.ID, err)
	}
	return f.Close()
}

func (d *DirSource) load(path string) (*models.Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m models.Module
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	if m.WordCount == 0 {
		m.WordCount = len(m.Terms)
	}
	if m.Categories == nil {
		m.Categories = []string{}
	}
	return &m, nil
}
