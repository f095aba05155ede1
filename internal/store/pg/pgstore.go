// Package pg is the Postgres persistence layer. It implements the poi and
// auth store interfaces over database/sql with the pgx stdlib driver.
package pg

import (
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"yaoundeconnect.org/internal/poi"
	"yaoundeconnect.org/internal/roles"
)

type Store struct {
	db       *sql.DB
	resolver roles.Resolver
	notifier poi.Dispatcher
	now      func() time.Time
}

func Open(dsn string, resolver roles.Resolver, notifier poi.Dispatcher) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return New(db, resolver, notifier), nil
}

// New wraps an existing handle; tests pass a sqlmock db here.
func New(db *sql.DB, resolver roles.Resolver, notifier poi.Dispatcher) *Store {
	return &Store{db: db, resolver: resolver, notifier: notifier, now: time.Now}
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }
