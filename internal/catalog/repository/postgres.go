package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"catalog-worker/internal/catalog"
	"catalog-worker/internal/catalog/service"
)

const healthCheckTimeout = 2 * time.Second

var _ service.TxRunner = (*Gateway)(nil)

// Gateway owns transaction lifecycle against the catalog schema.
type Gateway struct {
	db           *sql.DB
	logger       *slog.Logger
	readyTimeout time.Duration
}

func NewGateway(db *sql.DB, logger *slog.Logger, readyTimeout time.Duration) *Gateway {
	if readyTimeout <= 0 {
		readyTimeout = healthCheckTimeout
	}
	return &Gateway{db: db, logger: logger, readyTimeout: readyTimeout}
}

// WithTransaction runs fn inside one transaction. It commits only when fn
// returns nil; any error or panic rolls back. A store that does not answer a
// ping within the ready timeout fails fast with catalog.ErrStoreUnavailable.
func (g *Gateway) WithTransaction(ctx context.Context, fn func(tx service.Tx) error) (err error) {
	if err := g.ready(ctx); err != nil {
		return err
	}

	sqlTx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", translate(err))
	}

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic in transaction: %v", p)
		}
		if err == nil {
			return
		}
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			g.logger.Error("rollback failed", "error", rbErr, "cause", err)
		}
	}()

	if err = fn(&Tx{tx: sqlTx}); err != nil {
		return err
	}
	if err = sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", translate(err))
	}
	return nil
}

func (g *Gateway) ready(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, g.readyTimeout)
	defer cancel()
	if err := g.db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("%w: %w", catalog.ErrStoreUnavailable, err)
	}
	return nil
}

func (g *Gateway) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
	defer cancel()
	return g.db.PingContext(ctx)
}

// Tx implements service.Tx on an open *sql.Tx.
type Tx struct {
	tx *sql.Tx
}

func (t *Tx) CategoryExists(ctx context.Context, id int64) (bool, error) {
	return t.exists(ctx, `SELECT EXISTS (SELECT 1 FROM categorias WHERE id = $1)`, id)
}

func (t *Tx) CategoryNameTaken(ctx context.Context, nombre string, excludeID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM categorias
			WHERE lower(btrim(nombre)) = lower(btrim($1)) AND id <> $2
		)
	`
	return t.exists(ctx, query, nombre, excludeID)
}

func (t *Tx) FindSubcategory(ctx context.Context, id int64) (catalog.Subcategory, error) {
	query := `
		SELECT id, categoria_id, nombre, created_at, updated_at
		FROM subcategorias
		WHERE id = $1
	`
	var s catalog.Subcategory
	err := t.tx.QueryRowContext(ctx, query, id).Scan(&s.ID, &s.CategoriaID, &s.Nombre, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Subcategory{}, catalog.ErrNotFound
	}
	if err != nil {
		return catalog.Subcategory{}, fmt.Errorf("select subcategoria %d: %w", id, translate(err))
	}
	return s, nil
}

func (t *Tx) SubcategoryNameTaken(ctx context.Context, categoriaID int64, nombre string, excludeID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM subcategorias
			WHERE categoria_id = $1
			  AND lower(btrim(nombre)) = lower(btrim($2))
			  AND id <> $3
		)
	`
	return t.exists(ctx, query, categoriaID, nombre, excludeID)
}

func (t *Tx) CountCategoryProducts(ctx context.Context, categoriaID int64) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM productos p
		WHERE p.categoria_id = $1
		   OR p.subcategoria_id IN (SELECT s.id FROM subcategorias s WHERE s.categoria_id = $1)
	`
	return t.count(ctx, query, categoriaID)
}

func (t *Tx) CountSubcategoryProducts(ctx context.Context, subcategoriaID int64) (int64, error) {
	return t.count(ctx, `SELECT COUNT(*) FROM productos WHERE subcategoria_id = $1`, subcategoriaID)
}

func (t *Tx) InsertCategory(ctx context.Context, nombre string) (catalog.Category, error) {
	query := `
		INSERT INTO categorias (nombre)
		VALUES ($1)
		RETURNING id, nombre, created_at, updated_at
	`
	var c catalog.Category
	if err := t.tx.QueryRowContext(ctx, query, nombre).Scan(&c.ID, &c.Nombre, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return catalog.Category{}, fmt.Errorf("insert categoria: %w", translate(err))
	}
	return c, nil
}

func (t *Tx) UpdateCategory(ctx context.Context, id int64, nombre string) (catalog.Category, error) {
	query := `
		UPDATE categorias
		SET nombre = $1, updated_at = now()
		WHERE id = $2
		RETURNING id, nombre, created_at, updated_at
	`
	var c catalog.Category
	err := t.tx.QueryRowContext(ctx, query, nombre, id).Scan(&c.ID, &c.Nombre, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Category{}, catalog.ErrNotFound
	}
	if err != nil {
		return catalog.Category{}, fmt.Errorf("update categoria %d: %w", id, translate(err))
	}
	return c, nil
}

func (t *Tx) DeleteCategory(ctx context.Context, id int64) (int64, error) {
	return t.delete(ctx, `DELETE FROM categorias WHERE id = $1`, id)
}

func (t *Tx) InsertSubcategory(ctx context.Context, categoriaID int64, nombre string) (catalog.Subcategory, error) {
	query := `
		INSERT INTO subcategorias (categoria_id, nombre)
		VALUES ($1, $2)
		RETURNING id, categoria_id, nombre, created_at, updated_at
	`
	var s catalog.Subcategory
	err := t.tx.QueryRowContext(ctx, query, categoriaID, nombre).Scan(&s.ID, &s.CategoriaID, &s.Nombre, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		err = translate(err)
		// The parent vanished between the existence check and the insert.
		if errors.Is(err, catalog.ErrReferenced) {
			return catalog.Subcategory{}, fmt.Errorf("insert subcategoria: %w", catalog.ErrNotFound)
		}
		return catalog.Subcategory{}, fmt.Errorf("insert subcategoria: %w", err)
	}
	return s, nil
}

func (t *Tx) UpdateSubcategory(ctx context.Context, id int64, nombre string) (catalog.Subcategory, error) {
	query := `
		UPDATE subcategorias
		SET nombre = $1, updated_at = now()
		WHERE id = $2
		RETURNING id, categoria_id, nombre, created_at, updated_at
	`
	var s catalog.Subcategory
	err := t.tx.QueryRowContext(ctx, query, nombre, id).Scan(&s.ID, &s.CategoriaID, &s.Nombre, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Subcategory{}, catalog.ErrNotFound
	}
	if err != nil {
		return catalog.Subcategory{}, fmt.Errorf("update subcategoria %d: %w", id, translate(err))
	}
	return s, nil
}

func (t *Tx) DeleteSubcategory(ctx context.Context, id int64) (int64, error) {
	return t.delete(ctx, `DELETE FROM subcategorias WHERE id = $1`, id)
}

func (t *Tx) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var ok bool
	if err := t.tx.QueryRowContext(ctx, query, args...).Scan(&ok); err != nil {
		return false, translate(err)
	}
	return ok, nil
}

func (t *Tx) count(ctx context.Context, query string, args ...any) (int64, error) {
	var n int64
	if err := t.tx.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, translate(err)
	}
	return n, nil
}

func (t *Tx) delete(ctx context.Context, query string, id int64) (int64, error) {
	result, err := t.tx.ExecContext(ctx, query, id)
	if err != nil {
		return 0, fmt.Errorf("delete %d: %w", id, translate(err))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return affected, nil
}
