package pg

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"yaoundeconnect.org/internal/poi"
	"yaoundeconnect.org/internal/roles"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db, roles.NewResolver(roles.DefaultHierarchy()), nil), mock
}

func poiRows(id string, status poi.Status, approvedBy string) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"id", "name", "description", "category", "address", "quartier",
		"latitude", "longitude", "status", "created_by", "approved_by",
		"is_verify", "created_at", "updated_at",
	}).AddRow(id, "Marché Central", "", "marché", "", "Centre-ville",
		3.8667, 11.5167, string(status), "u-collector", approvedBy,
		status == poi.StatusApproved, now, now)
}

func TestApproveCommitsStatusAndAudit(t *testing.T) {
	s, mock := newMockStore(t)
	moderator := roles.Actor{ID: "u-mod", Role: roles.Moderateur}

	mock.ExpectBegin()
	mock.ExpectQuery("select (.+) from point_of_interests where id=\\$1 for update").
		WithArgs("poi-1").
		WillReturnRows(poiRows("poi-1", poi.StatusPending, ""))
	mock.ExpectExec("update point_of_interests").
		WithArgs("poi-1", "approved", "u-mod", true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("insert into audit_logs").
		WithArgs(sqlmock.AnyArg(), poi.TableName, "poi-1", "UPDATE",
			sqlmock.AnyArg(), sqlmock.AnyArg(), "u-mod", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	p, err := s.Approve(context.Background(), "poi-1", moderator, "looks legit")
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if p.Status != poi.StatusApproved || p.ApprovedBy != "u-mod" || !p.IsVerify {
		t.Fatalf("unexpected POI after approval: %+v", p)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestApproveAlreadyApprovedRollsBack(t *testing.T) {
	s, mock := newMockStore(t)
	moderator := roles.Actor{ID: "u-mod", Role: roles.Moderateur}

	mock.ExpectBegin()
	mock.ExpectQuery("select (.+) from point_of_interests where id=\\$1 for update").
		WithArgs("poi-1").
		WillReturnRows(poiRows("poi-1", poi.StatusApproved, "u-other"))
	mock.ExpectRollback()

	_, err := s.Approve(context.Background(), "poi-1", moderator, "")
	if !errors.Is(err, poi.ErrAlreadyInState) {
		t.Fatalf("expected ErrAlreadyInState, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRejectShortReasonOpensNoTransaction(t *testing.T) {
	s, mock := newMockStore(t)
	moderator := roles.Actor{ID: "u-mod", Role: roles.Moderateur}

	_, err := s.Reject(context.Background(), "poi-1", moderator, "bad")
	if !errors.Is(err, poi.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	// No Begin was expected; any DB touch fails ExpectationsWereMet.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("database was touched: %v", err)
	}
}

func TestModerationDeniedRoleOpensNoTransaction(t *testing.T) {
	s, mock := newMockStore(t)
	member := roles.Actor{ID: "u-member", Role: roles.Membre}

	_, err := s.Approve(context.Background(), "poi-1", member, "")
	if !errors.Is(err, poi.ErrAuthorization) {
		t.Fatalf("expected ErrAuthorization, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("database was touched: %v", err)
	}
}

func TestReapproveRequiresRejected(t *testing.T) {
	s, mock := newMockStore(t)
	moderator := roles.Actor{ID: "u-mod", Role: roles.Moderateur}

	mock.ExpectBegin()
	mock.ExpectQuery("select (.+) from point_of_interests where id=\\$1 for update").
		WithArgs("poi-1").
		WillReturnRows(poiRows("poi-1", poi.StatusPending, ""))
	mock.ExpectRollback()

	_, err := s.Reapprove(context.Background(), "poi-1", moderator, "")
	if !errors.Is(err, poi.ErrAlreadyInState) {
		t.Fatalf("expected ErrAlreadyInState, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateInsertsRowAndAuditAtomically(t *testing.T) {
	s, mock := newMockStore(t)
	collector := roles.Actor{ID: "u-collector", Role: roles.Collecteur}

	mock.ExpectBegin()
	mock.ExpectExec("insert into point_of_interests").
		WithArgs(sqlmock.AnyArg(), "Marché Mokolo", "", "marché", "", "Mokolo",
			3.87, 11.49, "pending", "u-collector", false, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("insert into audit_logs").
		WithArgs(sqlmock.AnyArg(), poi.TableName, sqlmock.AnyArg(), "CREATE",
			[]byte(`{}`), sqlmock.AnyArg(), "u-collector", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	p, err := s.Create(context.Background(), poi.CreateInput{
		Name:      "Marché Mokolo",
		Category:  "marché",
		Quartier:  "Mokolo",
		Latitude:  3.87,
		Longitude: 11.49,
	}, collector)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.Status != poi.StatusPending {
		t.Fatalf("new POI must start pending, got %s", p.Status)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateAuditFailureRollsBack(t *testing.T) {
	s, mock := newMockStore(t)
	collector := roles.Actor{ID: "u-collector", Role: roles.Collecteur}

	mock.ExpectBegin()
	mock.ExpectExec("insert into point_of_interests").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("insert into audit_logs").
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := s.Create(context.Background(), poi.CreateInput{
		Name:      "Marché Mokolo",
		Category:  "marché",
		Latitude:  3.87,
		Longitude: 11.49,
	}, collector)
	if err == nil {
		t.Fatal("expected error when audit write fails")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("select (.+) from point_of_interests where id=\\$1").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := s.Get(context.Background(), "missing")
	if !errors.Is(err, poi.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStats(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("select count").
		WillReturnRows(sqlmock.NewRows([]string{"total", "pending", "approved", "rejected"}).
			AddRow(10, 3, 6, 1))

	st, err := s.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.Total != 10 || st.Pending != 3 || st.Approved != 6 || st.Rejected != 1 {
		t.Fatalf("unexpected stats: %+v", st)
	}
}
