package roles

// Hierarchy is the immutable role configuration the resolver operates on.
// It is constructed once at startup and passed by value; nothing mutates it
// after construction.
type Hierarchy struct {
	levels     map[Role]int
	manageable map[Role]map[Role]struct{}
}

// DefaultHierarchy returns the production role configuration:
// membre < collecteur < moderateur < admin < superadmin, with each role able
// to manage the subordinate set observed in the directory.
func DefaultHierarchy() Hierarchy {
	return NewHierarchy(
		map[Role]int{
			Membre:     1,
			Collecteur: 2,
			Moderateur: 3,
			Admin:      4,
			Superadmin: 5,
		},
		map[Role][]Role{
			Superadmin: {Admin, Moderateur, Collecteur, Membre},
			Admin:      {Moderateur, Collecteur},
			Moderateur: {Collecteur},
			Collecteur: {},
			Membre:     {},
		},
	)
}

// NewHierarchy builds a Hierarchy from explicit level and manageability
// tables. Alternate hierarchies are useful in tests.
func NewHierarchy(levels map[Role]int, manageable map[Role][]Role) Hierarchy {
	h := Hierarchy{
		levels:     make(map[Role]int, len(levels)),
		manageable: make(map[Role]map[Role]struct{}, len(manageable)),
	}
	for role, level := range levels {
		h.levels[role] = level
	}
	for role, targets := range manageable {
		set := make(map[Role]struct{}, len(targets))
		for _, t := range targets {
			set[t] = struct{}{}
		}
		h.manageable[role] = set
	}
	return h
}

// Level returns the hierarchy level of a role, 0 when unknown.
func (h Hierarchy) Level(r Role) int {
	return h.levels[r]
}

// Resolver answers authorization questions over a fixed hierarchy.
// All methods are pure; callers turn false into authorization errors.
type Resolver struct {
	h Hierarchy
}

// NewResolver constructs a resolver over the given hierarchy.
func NewResolver(h Hierarchy) Resolver {
	return Resolver{h: h}
}

// CanManageRole reports whether manager may create, update, delete or reset
// passwords for users holding target.
func (r Resolver) CanManageRole(manager, target Role) bool {
	set, ok := r.h.manageable[manager]
	if !ok {
		return false
	}
	_, ok = set[target]
	return ok
}

// CanManageUser reports whether manager may manage target through the user
// management routes. Self-management is always denied regardless of role.
func (r Resolver) CanManageUser(manager, target Actor) bool {
	if manager.ID == target.ID {
		return false
	}
	return r.CanManageRole(manager.Role, target.Role)
}

// AtLeast reports whether role sits at or above floor in the hierarchy.
func (r Resolver) AtLeast(role, floor Role) bool {
	rl, ok := r.h.levels[role]
	if !ok {
		return false
	}
	fl, ok := r.h.levels[floor]
	if !ok {
		return false
	}
	return rl >= fl
}
