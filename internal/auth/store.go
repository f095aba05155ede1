package auth

import "context"

// UserStore describes persistence operations required by the auth subsystem.
// Mutations that take an actorID must append the matching audit entry inside
// the same transaction as the write.
type UserStore interface {
	Create(ctx context.Context, u *User, actorID string) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByVerifyToken(ctx context.Context, token string) (*User, error)
	List(ctx context.Context, limit, offset int) ([]User, error)
	Update(ctx context.Context, id string, upd UserUpdate, actorID string) (*User, error)
	UpdatePassword(ctx context.Context, id, passwordHash, actorID string) error
	MarkEmailVerified(ctx context.Context, id string) (*User, error)
	Delete(ctx context.Context, id, actorID string) error
}
