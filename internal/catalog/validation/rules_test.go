package validation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"catalog-worker/internal/catalog"
)

type stubLookup struct {
	categoryExists       map[int64]bool
	categoryNames        map[string]int64
	subcategories        map[int64]catalog.Subcategory
	subcategoryNameTaken bool
	categoryProducts     int64
	subcategoryProducts  int64
	err                  error
}

func (s *stubLookup) CategoryExists(_ context.Context, id int64) (bool, error) {
	return s.categoryExists[id], s.err
}
func (s *stubLookup) CategoryNameTaken(_ context.Context, nombre string, excludeID int64) (bool, error) {
	id, ok := s.categoryNames[nombre]
	return ok && id != excludeID, s.err
}
func (s *stubLookup) FindSubcategory(_ context.Context, id int64) (catalog.Subcategory, error) {
	if s.err != nil {
		return catalog.Subcategory{}, s.err
	}
	sub, ok := s.subcategories[id]
	if !ok {
		return catalog.Subcategory{}, catalog.ErrNotFound
	}
	return sub, nil
}
func (s *stubLookup) SubcategoryNameTaken(_ context.Context, _ int64, _ string, _ int64) (bool, error) {
	return s.subcategoryNameTaken, s.err
}
func (s *stubLookup) CountCategoryProducts(_ context.Context, _ int64) (int64, error) {
	return s.categoryProducts, s.err
}
func (s *stubLookup) CountSubcategoryProducts(_ context.Context, _ int64) (int64, error) {
	return s.subcategoryProducts, s.err
}

func rejectionReason(t *testing.T, err error) catalog.Reason {
	t.Helper()
	var rej *catalog.Rejection
	if !errors.As(err, &rej) {
		t.Fatalf("want *catalog.Rejection, got %v", err)
	}
	return rej.Reason
}

func TestRequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		cmd     any
		wantErr bool
	}{
		{name: "create with name", cmd: catalog.CreateCategory{Nombre: "Ropa"}},
		{name: "create without name", cmd: catalog.CreateCategory{}, wantErr: true},
		{name: "update without id", cmd: catalog.UpdateCategory{Nombre: "Ropa"}, wantErr: true},
		{name: "subcategory without category", cmd: catalog.CreateSubcategory{Nombre: "Camisas"}, wantErr: true},
		{name: "subcategory complete", cmd: catalog.CreateSubcategory{CategoriaID: 5, Nombre: "Camisas"}},
		{name: "delete without id", cmd: catalog.DeleteSubcategory{}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := RequiredFields(tt.cmd)(context.Background())
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if got := rejectionReason(t, err); got != catalog.ReasonMissingFields {
				t.Fatalf("want reason %q, got %q", catalog.ReasonMissingFields, got)
			}
		})
	}
}

func TestMinLength(t *testing.T) {
	tests := []struct {
		name    string
		nombre  string
		wantErr bool
	}{
		{name: "two ascii chars", nombre: "TV"},
		{name: "one char", nombre: "A", wantErr: true},
		{name: "two runes with accent", nombre: "Ñu"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := MinLength(tt.nombre, catalog.MinNameLength)(context.Background())
			if tt.wantErr != (err != nil) {
				t.Fatalf("want error %v, got %v", tt.wantErr, err)
			}
			if err != nil && rejectionReason(t, err) != catalog.ReasonNameTooShort {
				t.Fatalf("unexpected reason for %v", err)
			}
		})
	}
}

func TestMaxLength(t *testing.T) {
	tests := []struct {
		name    string
		nombre  string
		wantErr bool
	}{
		{name: "at the limit", nombre: strings.Repeat("a", catalog.MaxNameLength)},
		{name: "one over the limit", nombre: strings.Repeat("a", catalog.MaxNameLength+1), wantErr: true},
		{name: "multibyte runes at the limit", nombre: strings.Repeat("ñ", catalog.MaxNameLength)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := MaxLength(tt.nombre, catalog.MaxNameLength)(context.Background())
			if tt.wantErr != (err != nil) {
				t.Fatalf("want error %v, got %v", tt.wantErr, err)
			}
			if err != nil && rejectionReason(t, err) != catalog.ReasonNameTooLong {
				t.Fatalf("unexpected reason for %v", err)
			}
		})
	}
}

func TestUniqueCategoryName_ExcludesSelf(t *testing.T) {
	l := &stubLookup{categoryNames: map[string]int64{"Ropa": 3}}
	ctx := context.Background()

	if err := UniqueCategoryName(l, "Ropa", 3)(ctx); err != nil {
		t.Fatalf("renaming to own name should pass, got %v", err)
	}
	err := UniqueCategoryName(l, "Ropa", 0)(ctx)
	if got := rejectionReason(t, err); got != catalog.ReasonDuplicateName {
		t.Fatalf("want duplicate, got %q", got)
	}
}

func TestSubcategoryExists_FillsDestination(t *testing.T) {
	l := &stubLookup{subcategories: map[int64]catalog.Subcategory{9: {ID: 9, CategoriaID: 5}}}
	var sub catalog.Subcategory

	if err := SubcategoryExists(l, 9, &sub)(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sub.CategoriaID != 5 {
		t.Fatalf("want categoria 5, got %d", sub.CategoriaID)
	}

	err := SubcategoryExists(l, 10, &sub)(context.Background())
	if got := rejectionReason(t, err); got != catalog.ReasonNotFound {
		t.Fatalf("want not found, got %q", got)
	}
}

func TestCascadeRules(t *testing.T) {
	ctx := context.Background()

	blocked := &stubLookup{categoryProducts: 3, subcategoryProducts: 1}
	if got := rejectionReason(t, NoCategoryProducts(blocked, 7)(ctx)); got != catalog.ReasonHasProducts {
		t.Fatalf("want has_products, got %q", got)
	}
	if got := rejectionReason(t, NoSubcategoryProducts(blocked, 7)(ctx)); got != catalog.ReasonHasProducts {
		t.Fatalf("want has_products, got %q", got)
	}

	free := &stubLookup{}
	if err := NoCategoryProducts(free, 7)(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCheck_ShortCircuitsOnFirstFailure(t *testing.T) {
	var calls []string
	rule := func(name string, err error) Rule {
		return func(context.Context) error {
			calls = append(calls, name)
			return err
		}
	}

	err := Check(context.Background(),
		rule("required", nil),
		rule("length", catalog.Reject(catalog.ReasonNameTooShort, catalog.MsgNameTooShort)),
		rule("unique", nil),
	)
	if rejectionReason(t, err) != catalog.ReasonNameTooShort {
		t.Fatalf("unexpected error %v", err)
	}
	if len(calls) != 2 || calls[1] != "length" {
		t.Fatalf("want rules evaluated up to length, got %v", calls)
	}
}

func TestLookupErrorIsNotRejection(t *testing.T) {
	errDB := errors.New("connection reset")
	l := &stubLookup{err: errDB}

	err := CategoryExists(l, 1, catalog.MsgCategoryNotFound)(context.Background())
	if !errors.Is(err, errDB) {
		t.Fatalf("want wrapped db error, got %v", err)
	}
	var rej *catalog.Rejection
	if errors.As(err, &rej) {
		t.Fatal("infrastructure error must not surface as rejection")
	}
}
