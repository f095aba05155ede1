package roles

import (
	"fmt"
	"strings"
)

// Role is one of the fixed roles of the directory, ordered by authority.
type Role int

const (
	Membre Role = iota + 1
	Collecteur
	Moderateur
	Admin
	Superadmin
)

var roleNames = map[Role]string{
	Membre:     "membre",
	Collecteur: "collecteur",
	Moderateur: "moderateur",
	Admin:      "admin",
	Superadmin: "superadmin",
}

// All lists every role in ascending hierarchy order.
func All() []Role {
	return []Role{Membre, Collecteur, Moderateur, Admin, Superadmin}
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("role(%d)", int(r))
}

// Valid reports whether r is one of the fixed roles.
func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

// Parse resolves a role name. Matching is case-insensitive.
func Parse(s string) (Role, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	for role, name := range roleNames {
		if name == s {
			return role, nil
		}
	}
	return 0, fmt.Errorf("unknown role %q", s)
}

// MarshalText implements encoding.TextMarshaler so roles serialize by name.
func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("unknown role %d", int(r))
	}
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Actor is an authenticated user as seen by the authorization layer.
// The resolver trusts these values; credential checks happen upstream.
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}
