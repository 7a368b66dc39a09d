// Package validation holds the admission rules applied to catalog mutations.
// Every rule runs against the caller's open transaction and yields either nil
// or a *catalog.Rejection; any other error is an infrastructure failure.
package validation

import (
	"context"
	"errors"
	"fmt"

	"catalog-worker/internal/catalog"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Lookup is the read side of the store that rules consult.
type Lookup interface {
	CategoryExists(ctx context.Context, id int64) (bool, error)
	CategoryNameTaken(ctx context.Context, nombre string, excludeID int64) (bool, error)
	FindSubcategory(ctx context.Context, id int64) (catalog.Subcategory, error)
	SubcategoryNameTaken(ctx context.Context, categoriaID int64, nombre string, excludeID int64) (bool, error)
	CountCategoryProducts(ctx context.Context, categoriaID int64) (int64, error)
	CountSubcategoryProducts(ctx context.Context, subcategoriaID int64) (int64, error)
}

type Rule func(ctx context.Context) error

// Check runs rules in order and stops at the first failure.
func Check(ctx context.Context, rules ...Rule) error {
	for _, rule := range rules {
		if err := rule(ctx); err != nil {
			return err
		}
	}
	return nil
}

// RequiredFields rejects commands whose `validate:"required"` fields are zero.
// String fields must already be trimmed.
func RequiredFields(cmd any) Rule {
	return func(context.Context) error {
		err := validate.Struct(cmd)
		if err == nil {
			return nil
		}
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return catalog.Reject(catalog.ReasonMissingFields, catalog.MsgRequiredFields)
		}
		return fmt.Errorf("validate command: %w", err)
	}
}

func MinLength(nombre string, n int) Rule {
	return func(context.Context) error {
		if err := validate.Var(nombre, fmt.Sprintf("min=%d", n)); err != nil {
			return catalog.Reject(catalog.ReasonNameTooShort, catalog.MsgNameTooShort)
		}
		return nil
	}
}

func MaxLength(nombre string, n int) Rule {
	return func(context.Context) error {
		if err := validate.Var(nombre, fmt.Sprintf("max=%d", n)); err != nil {
			return catalog.Reject(catalog.ReasonNameTooLong, catalog.MsgNameTooLong)
		}
		return nil
	}
}

// CategoryExists rejects with message when the category row is absent.
func CategoryExists(l Lookup, id int64, message string) Rule {
	return func(ctx context.Context) error {
		ok, err := l.CategoryExists(ctx, id)
		if err != nil {
			return fmt.Errorf("lookup category %d: %w", id, err)
		}
		if !ok {
			return catalog.Reject(catalog.ReasonNotFound, message)
		}
		return nil
	}
}

// SubcategoryExists loads the subcategory into dst so later rules can use its
// owning category.
func SubcategoryExists(l Lookup, id int64, dst *catalog.Subcategory) Rule {
	return func(ctx context.Context) error {
		sub, err := l.FindSubcategory(ctx, id)
		if errors.Is(err, catalog.ErrNotFound) {
			return catalog.Reject(catalog.ReasonNotFound, catalog.MsgSubcategoryNotFound)
		}
		if err != nil {
			return fmt.Errorf("lookup subcategory %d: %w", id, err)
		}
		if dst != nil {
			*dst = sub
		}
		return nil
	}
}

// UniqueCategoryName compares case-insensitively after trimming. excludeID is
// zero on create and the category's own id on update.
func UniqueCategoryName(l Lookup, nombre string, excludeID int64) Rule {
	return func(ctx context.Context) error {
		taken, err := l.CategoryNameTaken(ctx, nombre, excludeID)
		if err != nil {
			return fmt.Errorf("check category name: %w", err)
		}
		if taken {
			return catalog.Reject(catalog.ReasonDuplicateName, catalog.MsgDuplicateCategory)
		}
		return nil
	}
}

func UniqueSubcategoryName(l Lookup, nombre string, categoriaID, excludeID int64) Rule {
	return func(ctx context.Context) error {
		taken, err := l.SubcategoryNameTaken(ctx, categoriaID, nombre, excludeID)
		if err != nil {
			return fmt.Errorf("check subcategory name: %w", err)
		}
		if taken {
			return catalog.Reject(catalog.ReasonDuplicateName, catalog.MsgDuplicateSubcategory)
		}
		return nil
	}
}

// NoCategoryProducts counts products pointing at the category directly or
// through any of its subcategories.
func NoCategoryProducts(l Lookup, categoriaID int64) Rule {
	return func(ctx context.Context) error {
		n, err := l.CountCategoryProducts(ctx, categoriaID)
		if err != nil {
			return fmt.Errorf("count category products: %w", err)
		}
		if n > 0 {
			return catalog.Reject(catalog.ReasonHasProducts, catalog.MsgHasProducts)
		}
		return nil
	}
}

func NoSubcategoryProducts(l Lookup, subcategoriaID int64) Rule {
	return func(ctx context.Context) error {
		n, err := l.CountSubcategoryProducts(ctx, subcategoriaID)
		if err != nil {
			return fmt.Errorf("count subcategory products: %w", err)
		}
		if n > 0 {
			return catalog.Reject(catalog.ReasonHasProducts, catalog.MsgHasProducts)
		}
		return nil
	}
}
