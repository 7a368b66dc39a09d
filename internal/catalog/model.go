package catalog

import (
	"strings"
	"time"
)

const (
	QueueCreateCategory    = "categorias.crear"
	QueueUpdateCategory    = "categorias.actualizar"
	QueueDeleteCategory    = "categorias.eliminar"
	QueueCreateSubcategory = "subcategorias.crear"
	QueueUpdateSubcategory = "subcategorias.actualizar"
	QueueDeleteSubcategory = "subcategorias.eliminar"
)

// Name bounds, counted in runes after trimming. MaxNameLength matches the
// nombre column width.
const (
	MinNameLength = 2
	MaxNameLength = 100
)

type Category struct {
	ID        int64     `json:"id"`
	Nombre    string    `json:"nombre"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Subcategory struct {
	ID          int64     `json:"id"`
	CategoriaID int64     `json:"categoria_id"`
	Nombre      string    `json:"nombre"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NormalizeName trims surrounding whitespace. Uniqueness comparisons are
// additionally case-insensitive and happen in the store.
func NormalizeName(name string) string {
	return strings.TrimSpace(name)
}

// Deletion is the snapshot returned by a successful delete.
type Deletion struct {
	ID           int64 `json:"id"`
	RowsAffected int64 `json:"rows_affected"`
}
