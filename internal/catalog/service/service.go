package service

import (
	"context"
	"errors"
	"log/slog"

	"catalog-worker/internal/catalog"
	"catalog-worker/internal/catalog/validation"

	"github.com/prometheus/client_golang/prometheus"
)

// Tx is a transactional handle onto the catalog tables.
type Tx interface {
	validation.Lookup
	InsertCategory(ctx context.Context, nombre string) (catalog.Category, error)
	UpdateCategory(ctx context.Context, id int64, nombre string) (catalog.Category, error)
	DeleteCategory(ctx context.Context, id int64) (int64, error)
	InsertSubcategory(ctx context.Context, categoriaID int64, nombre string) (catalog.Subcategory, error)
	UpdateSubcategory(ctx context.Context, id int64, nombre string) (catalog.Subcategory, error)
	DeleteSubcategory(ctx context.Context, id int64) (int64, error)
}

// TxRunner commits when fn returns nil and rolls back otherwise.
type TxRunner interface {
	WithTransaction(ctx context.Context, fn func(tx Tx) error) error
}

type operation struct {
	name      string
	succeeded string
	duplicate string
	notFound  string
	failed    string
}

var (
	opCreateCategory = operation{
		name:      "create_category",
		succeeded: catalog.MsgCategoryCreated,
		duplicate: catalog.MsgDuplicateCategory,
		notFound:  catalog.MsgCategoryNotFound,
		failed:    "Error al crear la categoría. Por favor, intente nuevamente.",
	}
	opUpdateCategory = operation{
		name:      "update_category",
		succeeded: catalog.MsgUpdated,
		duplicate: catalog.MsgDuplicateCategory,
		notFound:  catalog.MsgCategoryNotFound,
		failed:    "Error al actualizar la categoría. Por favor, intente nuevamente.",
	}
	opDeleteCategory = operation{
		name:      "delete_category",
		succeeded: catalog.MsgCategoryDeleted,
		duplicate: catalog.MsgDuplicateCategory,
		notFound:  catalog.MsgCategoryNotFound,
		failed:    "Error al eliminar la categoría. Por favor, intente nuevamente.",
	}
	opCreateSubcategory = operation{
		name:      "create_subcategory",
		succeeded: catalog.MsgSubcategoryCreated,
		duplicate: catalog.MsgDuplicateSubcategory,
		notFound:  catalog.MsgSelectedCategoryAbsent,
		failed:    "Error al crear la subcategoría. Por favor, intente nuevamente.",
	}
	opUpdateSubcategory = operation{
		name:      "update_subcategory",
		succeeded: catalog.MsgUpdated,
		duplicate: catalog.MsgDuplicateSubcategory,
		notFound:  catalog.MsgSubcategoryNotFound,
		failed:    "Error al actualizar la subcategoría. Por favor, intente nuevamente.",
	}
	opDeleteSubcategory = operation{
		name:      "delete_subcategory",
		succeeded: catalog.MsgSubcategoryDeleted,
		duplicate: catalog.MsgDuplicateSubcategory,
		notFound:  catalog.MsgSubcategoryNotFound,
		failed:    "Error al eliminar la subcategoría. Por favor, intente nuevamente.",
	}
)

type Service struct {
	store    TxRunner
	logger   *slog.Logger
	outcomes *prometheus.CounterVec
}

// New expects outcomes to carry the labels "operation" and "outcome".
func New(store TxRunner, logger *slog.Logger, outcomes *prometheus.CounterVec) *Service {
	return &Service{
		store:    store,
		logger:   logger,
		outcomes: outcomes,
	}
}

func (s *Service) CreateCategory(ctx context.Context, cmd catalog.CreateCategory) catalog.Outcome {
	cmd.Nombre = catalog.NormalizeName(cmd.Nombre)

	var created catalog.Category
	err := s.store.WithTransaction(ctx, func(tx Tx) error {
		if err := validation.Check(ctx,
			validation.RequiredFields(cmd),
			validation.MinLength(cmd.Nombre, catalog.MinNameLength),
			validation.MaxLength(cmd.Nombre, catalog.MaxNameLength),
			validation.UniqueCategoryName(tx, cmd.Nombre, 0),
		); err != nil {
			return err
		}

		var err error
		created, err = tx.InsertCategory(ctx, cmd.Nombre)
		return err
	})

	return s.finish(opCreateCategory, err, created, "nombre", cmd.Nombre)
}

func (s *Service) UpdateCategory(ctx context.Context, cmd catalog.UpdateCategory) catalog.Outcome {
	cmd.Nombre = catalog.NormalizeName(cmd.Nombre)
	id := cmd.ID.Int64()

	var updated catalog.Category
	err := s.store.WithTransaction(ctx, func(tx Tx) error {
		if err := validation.Check(ctx,
			validation.RequiredFields(cmd),
			validation.MinLength(cmd.Nombre, catalog.MinNameLength),
			validation.MaxLength(cmd.Nombre, catalog.MaxNameLength),
			validation.CategoryExists(tx, id, catalog.MsgCategoryNotFound),
			validation.UniqueCategoryName(tx, cmd.Nombre, id),
		); err != nil {
			return err
		}

		var err error
		updated, err = tx.UpdateCategory(ctx, id, cmd.Nombre)
		return err
	})

	return s.finish(opUpdateCategory, err, updated, "id", id, "nombre", cmd.Nombre)
}

func (s *Service) DeleteCategory(ctx context.Context, cmd catalog.DeleteCategory) catalog.Outcome {
	id := cmd.ID.Int64()

	var deleted catalog.Deletion
	err := s.store.WithTransaction(ctx, func(tx Tx) error {
		if err := validation.Check(ctx,
			validation.RequiredFields(cmd),
			validation.CategoryExists(tx, id, catalog.MsgCategoryNotFound),
			validation.NoCategoryProducts(tx, id),
		); err != nil {
			return err
		}

		affected, err := tx.DeleteCategory(ctx, id)
		if err != nil {
			return err
		}
		if affected == 0 {
			return catalog.Reject(catalog.ReasonNotAffected, catalog.MsgCategoryNotDeleted)
		}
		deleted = catalog.Deletion{ID: id, RowsAffected: affected}
		return nil
	})

	return s.finish(opDeleteCategory, err, deleted, "id", id)
}

func (s *Service) CreateSubcategory(ctx context.Context, cmd catalog.CreateSubcategory) catalog.Outcome {
	cmd.Nombre = catalog.NormalizeName(cmd.Nombre)
	categoriaID := cmd.CategoriaID.Int64()

	var created catalog.Subcategory
	err := s.store.WithTransaction(ctx, func(tx Tx) error {
		if err := validation.Check(ctx,
			validation.RequiredFields(cmd),
			validation.MinLength(cmd.Nombre, catalog.MinNameLength),
			validation.MaxLength(cmd.Nombre, catalog.MaxNameLength),
			validation.CategoryExists(tx, categoriaID, catalog.MsgSelectedCategoryAbsent),
			validation.UniqueSubcategoryName(tx, cmd.Nombre, categoriaID, 0),
		); err != nil {
			return err
		}

		var err error
		created, err = tx.InsertSubcategory(ctx, categoriaID, cmd.Nombre)
		return err
	})

	return s.finish(opCreateSubcategory, err, created, "categoria_id", categoriaID, "nombre", cmd.Nombre)
}

func (s *Service) UpdateSubcategory(ctx context.Context, cmd catalog.UpdateSubcategory) catalog.Outcome {
	cmd.Nombre = catalog.NormalizeName(cmd.Nombre)
	id := cmd.ID.Int64()

	var updated catalog.Subcategory
	err := s.store.WithTransaction(ctx, func(tx Tx) error {
		var current catalog.Subcategory
		if err := validation.Check(ctx,
			validation.RequiredFields(cmd),
			validation.MinLength(cmd.Nombre, catalog.MinNameLength),
			validation.MaxLength(cmd.Nombre, catalog.MaxNameLength),
			validation.SubcategoryExists(tx, id, &current),
		); err != nil {
			return err
		}
		if err := validation.Check(ctx,
			validation.UniqueSubcategoryName(tx, cmd.Nombre, current.CategoriaID, id),
		); err != nil {
			return err
		}

		var err error
		updated, err = tx.UpdateSubcategory(ctx, id, cmd.Nombre)
		return err
	})

	return s.finish(opUpdateSubcategory, err, updated, "id", id, "nombre", cmd.Nombre)
}

func (s *Service) DeleteSubcategory(ctx context.Context, cmd catalog.DeleteSubcategory) catalog.Outcome {
	id := cmd.ID.Int64()

	var deleted catalog.Deletion
	err := s.store.WithTransaction(ctx, func(tx Tx) error {
		if err := validation.Check(ctx,
			validation.RequiredFields(cmd),
			validation.SubcategoryExists(tx, id, nil),
			validation.NoSubcategoryProducts(tx, id),
		); err != nil {
			return err
		}

		affected, err := tx.DeleteSubcategory(ctx, id)
		if err != nil {
			return err
		}
		if affected == 0 {
			return catalog.Reject(catalog.ReasonNotAffected, catalog.MsgSubcategoryNotDeleted)
		}
		deleted = catalog.Deletion{ID: id, RowsAffected: affected}
		return nil
	})

	return s.finish(opDeleteSubcategory, err, deleted, "id", id)
}

// finish converts the transaction result into an Outcome. Store-level
// constraint violations converge on the same rejections as the pre-checks.
func (s *Service) finish(op operation, err error, data any, attrs ...any) catalog.Outcome {
	var out catalog.Outcome
	var rej *catalog.Rejection

	switch {
	case err == nil:
		out = catalog.Outcome{Status: catalog.StatusSuccess, Message: op.succeeded, Data: data}
	case errors.As(err, &rej):
		out = rejected(rej.Reason, rej.Message, err)
	case errors.Is(err, catalog.ErrUniqueViolation):
		out = rejected(catalog.ReasonDuplicateName, op.duplicate, err)
	case errors.Is(err, catalog.ErrReferenced):
		out = rejected(catalog.ReasonHasProducts, catalog.MsgHasProducts, err)
	case errors.Is(err, catalog.ErrNotFound):
		out = rejected(catalog.ReasonNotFound, op.notFound, err)
	case errors.Is(err, catalog.ErrInvalidData):
		out = rejected(catalog.ReasonInvalidData, catalog.MsgInvalidData, err)
	case errors.Is(err, catalog.ErrStoreUnavailable):
		out = catalog.Outcome{Status: catalog.StatusUnavailable, Message: catalog.MsgStoreUnavailable, Err: err}
	default:
		out = catalog.Outcome{Status: catalog.StatusFailed, Message: op.failed, Err: err}
	}

	s.outcomes.WithLabelValues(op.name, string(out.Status)).Inc()

	attrs = append([]any{"operation", op.name, "status", out.Status}, attrs...)
	switch out.Status {
	case catalog.StatusSuccess:
		s.logger.Info("mutation committed", attrs...)
	case catalog.StatusRejected:
		s.logger.Warn("mutation rejected", append(attrs, "reason", out.Reason, "message", out.Message)...)
	case catalog.StatusUnavailable:
		s.logger.Warn("store unavailable", append(attrs, "error", err)...)
	default:
		s.logger.Error("mutation failed", append(attrs, "error", err)...)
	}

	return out
}

func rejected(reason catalog.Reason, message string, err error) catalog.Outcome {
	return catalog.Outcome{
		Status:  catalog.StatusRejected,
		Reason:  reason,
		Message: message,
		Err:     err,
	}
}
