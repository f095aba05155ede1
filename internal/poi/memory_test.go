package poi

import (
	"context"
	"errors"
	"sync"
	"testing"

	"yaoundeconnect.org/internal/audit"
	"yaoundeconnect.org/internal/notify"
	"yaoundeconnect.org/internal/roles"
)

type captureNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (n *captureNotifier) Dispatch(evt notify.Event) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, evt)
	return true
}

func (n *captureNotifier) all() []notify.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]notify.Event, len(n.events))
	copy(out, n.events)
	return out
}

func newTestService(t *testing.T) (*InMemory, *captureNotifier) {
	t.Helper()
	notifier := &captureNotifier{}
	svc := NewInMemory(roles.NewResolver(roles.DefaultHierarchy()), audit.NewMemory(), notifier)
	return svc, notifier
}

var (
	collecteur = roles.Actor{ID: "u-collecteur", Role: roles.Collecteur}
	moderateur = roles.Actor{ID: "u-moderateur", Role: roles.Moderateur}
	moderator2 = roles.Actor{ID: "u-moderateur-2", Role: roles.Moderateur}
)

func mustCreate(t *testing.T, svc *InMemory) POI {
	t.Helper()
	p, err := svc.Create(context.Background(), CreateInput{
		Name:      "Marché Mokolo",
		Category:  "marché",
		Quartier:  "Mokolo",
		Latitude:  3.878,
		Longitude: 11.495,
	}, collecteur)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return p
}

func TestApprovePendingPOI(t *testing.T) {
	svc, notifier := newTestService(t)
	ctx := context.Background()
	p := mustCreate(t, svc)

	if p.Status != StatusPending {
		t.Fatalf("new POI must be pending, got %s", p.Status)
	}
	auditBefore := svc.AuditLog().Count()

	approved, err := svc.Approve(ctx, p.ID, moderateur, "looks good")
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if approved.Status != StatusApproved {
		t.Fatalf("status = %s, want approved", approved.Status)
	}
	if approved.ApprovedBy != moderateur.ID {
		t.Fatalf("approved_by = %s, want %s", approved.ApprovedBy, moderateur.ID)
	}
	if !approved.IsVerify {
		t.Fatal("is_verify must be set on approval")
	}
	if got := svc.AuditLog().Count(); got != auditBefore+1 {
		t.Fatalf("expected exactly one new audit entry, got %d", got-auditBefore)
	}

	history, _ := svc.AuditLog().History(ctx, TableName, p.ID)
	latest := history[0]
	if latest.Action != audit.ActionUpdate {
		t.Fatalf("unexpected audit action %s", latest.Action)
	}
	if latest.OldValues["status"] != "pending" || latest.NewValues["status"] != "approved" {
		t.Fatalf("audit values wrong: old=%v new=%v", latest.OldValues, latest.NewValues)
	}
	if latest.NewValues["approved_by"] != moderateur.ID {
		t.Fatalf("audit new approved_by = %v", latest.NewValues["approved_by"])
	}

	events := notifier.all()
	if len(events) != 2 { // created + approved
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[1].Type != notify.EventPOIApproved || events[1].POIID != p.ID {
		t.Fatalf("unexpected event %+v", events[1])
	}
	// The decision is addressed to the creator, not the moderator.
	if events[1].RecipientID != collecteur.ID {
		t.Fatalf("event recipient = %q, want creator %q", events[1].RecipientID, collecteur.ID)
	}
}

func TestApproveAlreadyApprovedFails(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	p := mustCreate(t, svc)

	if _, err := svc.Approve(ctx, p.ID, moderateur, "ok"); err != nil {
		t.Fatalf("first approve: %v", err)
	}
	auditBefore := svc.AuditLog().Count()

	_, err := svc.Approve(ctx, p.ID, moderator2, "again")
	if !errors.Is(err, ErrAlreadyInState) {
		t.Fatalf("expected ErrAlreadyInState, got %v", err)
	}
	if got := svc.AuditLog().Count(); got != auditBefore {
		t.Fatal("failed transition must not write an audit entry")
	}
	current, _ := svc.Get(ctx, p.ID)
	if current.ApprovedBy != moderateur.ID {
		t.Fatalf("approved_by mutated on failed approve: %s", current.ApprovedBy)
	}
}

func TestRejectRequiresReason(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	p := mustCreate(t, svc)
	auditBefore := svc.AuditLog().Count()

	_, err := svc.Reject(ctx, p.ID, moderateur, "short")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if svc.AuditLog().Count() != auditBefore {
		t.Fatal("validation failure must precede any write")
	}
	current, _ := svc.Get(ctx, p.ID)
	if current.Status != StatusPending {
		t.Fatalf("status mutated: %s", current.Status)
	}
}

func TestRejectThenReapproveChain(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	p := mustCreate(t, svc)

	rejected, err := svc.Reject(ctx, p.ID, moderateur, "incomplete address details")
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if rejected.Status != StatusRejected || rejected.IsVerify {
		t.Fatalf("unexpected rejected state: %+v", rejected)
	}

	reapproved, err := svc.Reapprove(ctx, p.ID, moderator2, "fixed by author")
	if err != nil {
		t.Fatalf("Reapprove: %v", err)
	}
	if reapproved.Status != StatusApproved || reapproved.ApprovedBy != moderator2.ID {
		t.Fatalf("unexpected reapproved state: %+v", reapproved)
	}

	history, _ := svc.AuditLog().History(ctx, TableName, p.ID)
	// newest first: reapprove, reject, create
	if len(history) != 3 {
		t.Fatalf("expected 3 audit entries, got %d", len(history))
	}
	if history[0].OldValues["status"] != "rejected" || history[0].NewValues["status"] != "approved" {
		t.Fatalf("reapprove entry wrong: %+v", history[0])
	}
	if history[1].OldValues["status"] != "pending" || history[1].NewValues["status"] != "rejected" {
		t.Fatalf("reject entry wrong: %+v", history[1])
	}
	if history[1].NewValues["reason"] != "incomplete address details" {
		t.Fatalf("reject reason missing from audit: %+v", history[1].NewValues)
	}
}

func TestReapproveRequiresRejectedState(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	p := mustCreate(t, svc)

	_, err := svc.Reapprove(ctx, p.ID, moderateur, "")
	if !errors.Is(err, ErrAlreadyInState) {
		t.Fatalf("expected ErrAlreadyInState for pending POI, got %v", err)
	}
}

func TestModerationRequiresModeratorRole(t *testing.T) {
	svc, notifier := newTestService(t)
	ctx := context.Background()
	p := mustCreate(t, svc)
	eventsBefore := len(notifier.all())

	_, err := svc.Approve(ctx, p.ID, collecteur, "")
	if !errors.Is(err, ErrAuthorization) {
		t.Fatalf("expected ErrAuthorization, got %v", err)
	}
	if len(notifier.all()) != eventsBefore {
		t.Fatal("failed transition must not emit events")
	}
}

func TestModerateUnknownPOI(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Approve(context.Background(), "missing", moderateur, "")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateAuthorization(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	p := mustCreate(t, svc)

	stranger := roles.Actor{ID: "u-other", Role: roles.Membre}
	name := "Nouveau nom"
	if _, err := svc.Update(ctx, p.ID, Update{Name: &name}, stranger); !errors.Is(err, ErrAuthorization) {
		t.Fatalf("expected ErrAuthorization, got %v", err)
	}

	// Creator can edit their own record.
	updated, err := svc.Update(ctx, p.ID, Update{Name: &name}, collecteur)
	if err != nil {
		t.Fatalf("Update by owner: %v", err)
	}
	if updated.Name != name {
		t.Fatalf("name = %s", updated.Name)
	}
}

func TestListAndStats(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	a := mustCreate(t, svc)
	b := mustCreate(t, svc)
	mustCreate(t, svc)

	if _, err := svc.Approve(ctx, a.ID, moderateur, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Reject(ctx, b.ID, moderateur, "duplicate of another entry"); err != nil {
		t.Fatal(err)
	}

	pending, err := svc.ListPending(ctx, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending, got %d", len(pending))
	}

	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := Stats{Total: 3, Pending: 1, Approved: 1, Rejected: 1}
	if stats != want {
		t.Fatalf("stats = %+v, want %+v", stats, want)
	}
}

func TestNearbyOnlyApproved(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	p := mustCreate(t, svc)
	mustCreate(t, svc) // stays pending

	if _, err := svc.Approve(ctx, p.ID, moderateur, ""); err != nil {
		t.Fatal(err)
	}

	near, err := svc.Nearby(ctx, 3.878, 11.495, 2, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(near) != 1 || near[0].ID != p.ID {
		t.Fatalf("unexpected nearby result: %+v", near)
	}

	far, err := svc.Nearby(ctx, 4.05, 9.70, 2, 10) // Douala, ~230km away
	if err != nil {
		t.Fatal(err)
	}
	if len(far) != 0 {
		t.Fatalf("expected no POIs near Douala, got %d", len(far))
	}
}
