package pg

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"yaoundeconnect.org/internal/auth"
	"yaoundeconnect.org/internal/roles"
)

func TestUserCreateConflict(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("select 1 from users where email=\\$1").
		WithArgs("dup@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(1))
	mock.ExpectRollback()

	now := time.Now().UTC()
	err := s.Users().Create(context.Background(), &auth.User{
		ID:           "u-1",
		Name:         "Dup",
		Email:        "dup@example.com",
		PasswordHash: "x",
		Role:         roles.Membre,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, "u-1")
	if !errors.Is(err, auth.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserCreateInsertsRowAndAudit(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("select 1 from users where email=\\$1").
		WithArgs("new@example.com").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("insert into users").
		WithArgs("u-1", "New User", "new@example.com", "hash", "collecteur", false,
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("insert into audit_logs").
		WithArgs(sqlmock.AnyArg(), auth.TableName, "u-1", "CREATE",
			sqlmock.AnyArg(), sqlmock.AnyArg(), "u-admin", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	now := time.Now().UTC()
	err := s.Users().Create(context.Background(), &auth.User{
		ID:           "u-1",
		Name:         "New User",
		Email:        "new@example.com",
		PasswordHash: "hash",
		Role:         roles.Collecteur,
		VerifyToken:  "tok",
		CreatedAt:    now,
		UpdatedAt:    now,
	}, "u-admin")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserFindByEmailNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("select (.+) from users where email=\\$1").
		WithArgs("nobody@example.com").
		WillReturnError(sql.ErrNoRows)

	_, err := s.Users().FindByEmail(context.Background(), "Nobody@Example.com")
	if !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUserDeleteAuditsOldValues(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("select (.+) from users where id=\\$1 for update").
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "email", "password_hash", "role", "email_verified", "verify_token", "created_at", "updated_at",
		}).AddRow("u-1", "Old", "old@example.com", "hash", "membre", true, "", now, now))
	mock.ExpectExec("delete from users where id=\\$1").
		WithArgs("u-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("insert into audit_logs").
		WithArgs(sqlmock.AnyArg(), auth.TableName, "u-1", "DELETE",
			[]byte(`{"email":"old@example.com","role":"membre"}`), []byte(`{}`),
			"u-admin", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	if err := s.Users().Delete(context.Background(), "u-1", "u-admin"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
