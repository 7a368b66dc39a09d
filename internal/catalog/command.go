package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ID is a store-assigned identifier as carried in command payloads. It accepts
// a JSON integer or a quoted base-10 integer; null, absent and "" decode to zero.
type ID int64

func (id *ID) UnmarshalJSON(data []byte) error {
	raw := bytes.TrimSpace(data)
	if bytes.Equal(raw, []byte("null")) {
		*id = 0
		return nil
	}

	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("%w: identifier: %v", ErrDecode, err)
		}
		if s == "" {
			*id = 0
			return nil
		}
		raw = []byte(s)
	}

	n, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return fmt.Errorf("%w: identifier %s is not an integer", ErrDecode, data)
	}
	*id = ID(n)
	return nil
}

func (id ID) Int64() int64 { return int64(id) }

// Envelope is the unit of work delivered by the broker.
type Envelope struct {
	RequestID string          `json:"requestId"`
	Action    string          `json:"action"`
	Payload   json.RawMessage `json:"payload"`
	Meta      *Meta           `json:"meta,omitempty"`
}

type Meta struct {
	UserID    string `json:"userId,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

type CreateCategory struct {
	Nombre string `json:"nombre" validate:"required"`
}

type UpdateCategory struct {
	ID     ID     `json:"id" validate:"required"`
	Nombre string `json:"nombre" validate:"required"`
}

type DeleteCategory struct {
	ID ID `json:"id" validate:"required"`
}

type CreateSubcategory struct {
	CategoriaID ID     `json:"categoriaId" validate:"required"`
	Nombre      string `json:"nombre" validate:"required"`
}

type UpdateSubcategory struct {
	ID     ID     `json:"id" validate:"required"`
	Nombre string `json:"nombre" validate:"required"`
}

type DeleteSubcategory struct {
	ID ID `json:"id" validate:"required"`
}
