package auth

import "errors"

var (
	ErrNotFound           = errors.New("auth: not found")
	ErrConflict           = errors.New("auth: already exists")
	ErrValidation         = errors.New("auth: invalid input")
	ErrAuthorization      = errors.New("auth: authorization failed")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrInvalidToken       = errors.New("auth: invalid token")
	ErrEmailNotVerified   = errors.New("auth: email not verified")
)
