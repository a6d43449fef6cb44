// internal/handlers/modules.go
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jason-s-yu/forca/internal/catalog"
	"github.com/jason-s-yu/forca/internal/models"
)

type moduleListResponse struct {
	Modules []models.Module    `json:"modules"`
	Stats   models.ModuleStats `json:"stats"`
}

// ListModulesHandler lists modules, filtered by the category, difficulty and
// search query parameters.
func (s *RoomServer) ListModulesHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mods, stats, err := s.Catalog.List(r.Context(), catalog.Filter{
		Category:   q.Get("category"),
		Difficulty: q.Get("difficulty"),
		Search:     q.Get("search"),
	})
	if err != nil {
		writeError(w, s.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, moduleListResponse{Modules: mods, Stats: stats})
}

// GetModuleHandler returns one module with its terms.
func (s *RoomServer) GetModuleHandler(w http.ResponseWriter, r *http.Request) {
	mod, err := s.Catalog.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, s.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mod)
}

// CreateModuleHandler stores a user-authored module.
func (s *RoomServer) CreateModuleHandler(w http.ResponseWriter, r *http.Request) {
	var in catalog.NewModule
	if err := decodeBody(r, &in); err != nil {
		writeError(w, s.logger, r, err)
		return
	}
	mod, err := s.Catalog.Create(r.Context(), in)
	if err != nil {
		writeError(w, s.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, mod)
}
