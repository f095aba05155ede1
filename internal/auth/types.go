package auth

import (
	"time"

	"yaoundeconnect.org/internal/roles"
)

// TableName is the audit table identifier for user records.
const TableName = "users"

// User is an account in the directory.
type User struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	PasswordHash  string     `json:"-"`
	Role          roles.Role `json:"role"`
	EmailVerified bool       `json:"email_verified"`
	VerifyToken   string     `json:"-"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Actor converts a user into the authorization view of itself.
func (u User) Actor() roles.Actor {
	return roles.Actor{ID: u.ID, Role: u.Role}
}

// UserUpdate carries optional field changes for user management.
type UserUpdate struct {
	Name  *string     `json:"name"`
	Email *string     `json:"email"`
	Role  *roles.Role `json:"role"`
}
