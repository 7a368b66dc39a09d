package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"catalog-worker/internal/catalog"
	"catalog-worker/internal/config"

	"github.com/google/uuid"
)

// MutationService is the set of mutation handlers a dispatcher can route to.
type MutationService interface {
	CreateCategory(ctx context.Context, cmd catalog.CreateCategory) catalog.Outcome
	UpdateCategory(ctx context.Context, cmd catalog.UpdateCategory) catalog.Outcome
	DeleteCategory(ctx context.Context, cmd catalog.DeleteCategory) catalog.Outcome
	CreateSubcategory(ctx context.Context, cmd catalog.CreateSubcategory) catalog.Outcome
	UpdateSubcategory(ctx context.Context, cmd catalog.UpdateSubcategory) catalog.Outcome
	DeleteSubcategory(ctx context.Context, cmd catalog.DeleteSubcategory) catalog.Outcome
}

// Handler runs one command payload. A non-nil error means the payload could
// not be decoded and wraps catalog.ErrDecode.
type Handler func(ctx context.Context, payload json.RawMessage) (catalog.Outcome, error)

// Route binds a queue to the operation that consumes it.
type Route struct {
	Queue     string
	Operation string
	Handler   Handler
}

func Routes(queues config.Queues, svc MutationService) []Route {
	return []Route{
		{Queue: queues.CreateCategory, Operation: "create_category", Handler: handle(svc.CreateCategory)},
		{Queue: queues.UpdateCategory, Operation: "update_category", Handler: handle(svc.UpdateCategory)},
		{Queue: queues.DeleteCategory, Operation: "delete_category", Handler: handle(svc.DeleteCategory)},
		{Queue: queues.CreateSubcategory, Operation: "create_subcategory", Handler: handle(svc.CreateSubcategory)},
		{Queue: queues.UpdateSubcategory, Operation: "update_subcategory", Handler: handle(svc.UpdateSubcategory)},
		{Queue: queues.DeleteSubcategory, Operation: "delete_subcategory", Handler: handle(svc.DeleteSubcategory)},
	}
}

func handle[T any](fn func(context.Context, T) catalog.Outcome) Handler {
	return func(ctx context.Context, payload json.RawMessage) (catalog.Outcome, error) {
		var cmd T
		if err := decodePayload(payload, &cmd); err != nil {
			return catalog.Outcome{}, err
		}
		return fn(ctx, cmd), nil
	}
}

// A missing or null payload decodes to the zero command so that the
// required-fields rule answers it.
func decodePayload(payload json.RawMessage, dst any) error {
	raw := bytes.TrimSpace(payload)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: payload: %w", catalog.ErrDecode, err)
	}
	return nil
}

// DecodeEnvelope parses a delivery body. Envelopes without a requestId are
// given a fresh one so replies and logs stay correlatable.
func DecodeEnvelope(body []byte) (catalog.Envelope, error) {
	var env catalog.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return catalog.Envelope{}, fmt.Errorf("%w: envelope: %w", catalog.ErrDecode, err)
	}
	if env.RequestID == "" {
		env.RequestID = uuid.NewString()
	}
	return env, nil
}
