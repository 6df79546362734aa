package sentinel

import "errors"

// Sentinel errors for registry and factory facts. The codec, registry and
// factory return these (wrapped with context) so the monitoring surface can
// translate them into domain errors.
//
// These represent factual states, not validation of user input:
// - ErrEncodingOverflow: a classification field does not fit its digit band
// - ErrNotFound: no binding for a unique ID, name or sequential ID
// - ErrConflict: a unique ID or name is already bound
// - ErrRegistrationOrder: a lookup or creation happened in the wrong startup phase
// - ErrFlattenIncomplete: a sequential ID has no histogram behind it
// - ErrInvalidInput: malformed argument (empty name, wrong histogram dimension)
//
// For validation errors surfaced over HTTP, use pkg/domain-errors directly.
var (
	ErrEncodingOverflow  = errors.New("encoding overflow")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrRegistrationOrder = errors.New("registration order violation")
	ErrFlattenIncomplete = errors.New("flatten incomplete")
	ErrInvalidInput      = errors.New("invalid input")
)
