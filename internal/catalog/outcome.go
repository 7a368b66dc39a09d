package catalog

import "errors"

var (
	ErrNotFound         = errors.New("catalog: row not found")
	ErrUniqueViolation  = errors.New("catalog: unique constraint violated")
	ErrReferenced       = errors.New("catalog: row still referenced")
	ErrStoreUnavailable = errors.New("catalog: store unavailable")
	ErrDecode           = errors.New("catalog: malformed command")

	// ErrInvalidData marks values the store can never accept, such as a
	// string longer than its column or one containing a NUL byte.
	ErrInvalidData = errors.New("catalog: value rejected by the store")
)

const (
	MsgCategoryCreated    = "Categoría creada exitosamente"
	MsgSubcategoryCreated = "Subcategoría creada exitosamente"
	MsgUpdated            = "Actualización realizada correctamente"
	MsgCategoryDeleted    = "Categoría eliminada exitosamente"
	MsgSubcategoryDeleted = "Subcategoría eliminada exitosamente"

	MsgRequiredFields         = "Por favor, completa todos los campos obligatorios."
	MsgNameTooShort           = "El nombre debe tener al menos 2 caracteres."
	MsgNameTooLong            = "El nombre no puede superar los 100 caracteres."
	MsgInvalidData            = "Los datos enviados no son válidos."
	MsgCategoryNotFound       = "La categoría especificada no existe."
	MsgSelectedCategoryAbsent = "La categoría seleccionada no existe."
	MsgSubcategoryNotFound    = "La subcategoría especificada no existe."
	MsgDuplicateCategory      = "Ya existe una categoría con ese nombre."
	MsgDuplicateSubcategory   = "Ya existe una subcategoría con ese nombre en la categoría seleccionada."
	MsgHasProducts            = "No se permite eliminar la categoría/subcategoría porque tiene productos asociados."
	MsgCategoryNotDeleted     = "No se pudo eliminar la categoría (no encontrada o no afectada)."
	MsgSubcategoryNotDeleted  = "No se pudo eliminar la subcategoría (no encontrada o no afectada)."
	MsgStoreUnavailable       = "Error de conexión a la base de datos. Por favor, intente nuevamente."
)

type Reason string

const (
	ReasonMissingFields Reason = "missing_fields"
	ReasonNameTooShort  Reason = "name_too_short"
	ReasonNameTooLong   Reason = "name_too_long"
	ReasonInvalidData   Reason = "invalid_data"
	ReasonNotFound      Reason = "not_found"
	ReasonDuplicateName Reason = "duplicate_name"
	ReasonHasProducts   Reason = "has_products"
	ReasonNotAffected   Reason = "not_affected"
)

// Rejection is a business rejection: a final answer that redelivery cannot change.
type Rejection struct {
	Reason  Reason
	Message string
}

func Reject(reason Reason, message string) *Rejection {
	return &Rejection{Reason: reason, Message: message}
}

func (r *Rejection) Error() string {
	return string(r.Reason) + ": " + r.Message
}

type Status string

const (
	StatusSuccess     Status = "success"
	StatusRejected    Status = "rejected"
	StatusUnavailable Status = "unavailable"
	StatusFailed      Status = "failed"
)

// Outcome is what a mutation handler reports for one command.
type Outcome struct {
	Status  Status
	Message string
	Data    any
	Reason  Reason
	Err     error
}

// Handled reports whether the command reached a final answer. Unhandled
// outcomes are infrastructure-class and the delivery is retried.
func (o Outcome) Handled() bool {
	return o.Status == StatusSuccess || o.Status == StatusRejected
}
