package roles

import "testing"

func TestCanManageRoleMatrix(t *testing.T) {
	r := NewResolver(DefaultHierarchy())

	// Expected manageable sets, exhaustively over the 5x5 matrix.
	expected := map[Role]map[Role]bool{
		Superadmin: {Admin: true, Moderateur: true, Collecteur: true, Membre: true},
		Admin:      {Moderateur: true, Collecteur: true},
		Moderateur: {Collecteur: true},
		Collecteur: {},
		Membre:     {},
	}

	for _, manager := range All() {
		for _, target := range All() {
			want := expected[manager][target]
			if got := r.CanManageRole(manager, target); got != want {
				t.Errorf("CanManageRole(%s, %s) = %v, want %v", manager, target, got, want)
			}
		}
	}
}

func TestCanManageUserDeniesSelf(t *testing.T) {
	r := NewResolver(DefaultHierarchy())

	for _, role := range All() {
		self := Actor{ID: "u-1", Role: role}
		if r.CanManageUser(self, self) {
			t.Errorf("self-management allowed for %s", role)
		}
	}
}

func TestCanManageUserDelegatesToRoles(t *testing.T) {
	r := NewResolver(DefaultHierarchy())

	admin := Actor{ID: "a-1", Role: Admin}
	collecteur := Actor{ID: "c-1", Role: Collecteur}
	super := Actor{ID: "s-1", Role: Superadmin}

	if !r.CanManageUser(admin, collecteur) {
		t.Fatal("admin should manage collecteur")
	}
	if r.CanManageUser(admin, super) {
		t.Fatal("admin must not manage superadmin")
	}
	if r.CanManageUser(collecteur, admin) {
		t.Fatal("collecteur must not manage admin")
	}
}

func TestAtLeast(t *testing.T) {
	r := NewResolver(DefaultHierarchy())

	cases := []struct {
		role, floor Role
		want        bool
	}{
		{Moderateur, Moderateur, true},
		{Admin, Moderateur, true},
		{Superadmin, Moderateur, true},
		{Collecteur, Moderateur, false},
		{Membre, Moderateur, false},
	}
	for _, tc := range cases {
		if got := r.AtLeast(tc.role, tc.floor); got != tc.want {
			t.Errorf("AtLeast(%s, %s) = %v, want %v", tc.role, tc.floor, got, tc.want)
		}
	}
}

func TestAlternateHierarchyInjection(t *testing.T) {
	// A flattened hierarchy where membre manages everyone, proving the
	// resolver carries no hidden global configuration.
	h := NewHierarchy(
		map[Role]int{Membre: 9, Moderateur: 1},
		map[Role][]Role{Membre: {Moderateur}},
	)
	r := NewResolver(h)

	if !r.CanManageRole(Membre, Moderateur) {
		t.Fatal("injected hierarchy not honored")
	}
	if !r.AtLeast(Membre, Moderateur) {
		t.Fatal("injected levels not honored")
	}
}

func TestParseAndString(t *testing.T) {
	for _, role := range All() {
		parsed, err := Parse(role.String())
		if err != nil {
			t.Fatalf("Parse(%s): %v", role, err)
		}
		if parsed != role {
			t.Fatalf("round trip mismatch: %s != %s", parsed, role)
		}
	}
	if _, err := Parse("chef"); err == nil {
		t.Fatal("expected error for unknown role")
	}
}
