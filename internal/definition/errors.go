package definition

import "errors"

// ErrNotFound is returned when a definition lookup finds no matching entity.
var ErrNotFound = errors.New("data definition not found")

// ErrVersionConflict is returned when an update's expected version no longer
// matches the stored version. The caller should re-fetch and retry.
var ErrVersionConflict = errors.New("data definition version conflict")

// ErrInvalidSchema is returned when a data schema document does not parse as
// a valid JSON Schema.
var ErrInvalidSchema = errors.New("data schema is not a valid JSON schema")

// ErrUnsupportedAction is returned for an unknown action tag, or for an
// action that does not apply to the target entity kind.
var ErrUnsupportedAction = errors.New("unsupported update action")
