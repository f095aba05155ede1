package poi

import "errors"

// Domain errors. Callers discriminate with errors.Is; messages are for
// humans, never for control flow.
var (
	ErrNotFound       = errors.New("poi: not found")
	ErrAlreadyInState = errors.New("poi: already in state")
	ErrValidation     = errors.New("poi: validation failed")
	ErrAuthorization  = errors.New("poi: authorization failed")
)
