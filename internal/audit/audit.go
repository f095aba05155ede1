package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"yaoundeconnect.org/internal/ids"
)

// Action identifies the kind of mutation an entry records.
type Action string

const (
	ActionCreate Action = "CREATE"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
)

// Entry is one immutable audit record. Entries are only ever appended;
// nothing updates or deletes them.
type Entry struct {
	ID          string         `json:"id"`
	TableName   string         `json:"table_name"`
	RecordID    string         `json:"record_id"`
	Action      Action         `json:"action"`
	OldValues   map[string]any `json:"old_values,omitempty"`
	NewValues   map[string]any `json:"new_values,omitempty"`
	ActorUserID string         `json:"actor_user_id"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Execer is the subset of database/sql needed to append an entry. Passing the
// caller's *sql.Tx here is what keeps the audit write inside the same
// transaction as the mutation it records.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// History reads committed entries back, newest first.
type History interface {
	History(ctx context.Context, tableName, recordID string) ([]Entry, error)
}

func validate(e *Entry) error {
	if e == nil {
		return errors.New("audit: entry is nil")
	}
	if strings.TrimSpace(e.TableName) == "" {
		return errors.New("audit: table_name is required")
	}
	if strings.TrimSpace(e.RecordID) == "" {
		return errors.New("audit: record_id is required")
	}
	switch e.Action {
	case ActionCreate, ActionUpdate, ActionDelete:
	default:
		return fmt.Errorf("audit: unsupported action %q", e.Action)
	}
	return nil
}

// Append writes an entry using the supplied executor. Callers performing a
// mutation must pass the transaction carrying that mutation; if it rolls
// back the entry rolls back with it.
func Append(ctx context.Context, ex Execer, e *Entry) error {
	if err := validate(e); err != nil {
		return err
	}
	if e.ID == "" {
		e.ID = ids.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	oldJSON, err := marshalValues(e.OldValues)
	if err != nil {
		return fmt.Errorf("audit: marshal old_values: %w", err)
	}
	newJSON, err := marshalValues(e.NewValues)
	if err != nil {
		return fmt.Errorf("audit: marshal new_values: %w", err)
	}
	_, err = ex.ExecContext(ctx, `
		insert into audit_logs (id, table_name, record_id, action, old_values, new_values, actor_user_id, created_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8)
	`, e.ID, e.TableName, e.RecordID, string(e.Action), oldJSON, newJSON, e.ActorUserID, e.CreatedAt)
	return err
}

func marshalValues(values map[string]any) ([]byte, error) {
	if len(values) == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(values)
}
