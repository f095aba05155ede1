package pg

import (
	"context"
	"encoding/json"
	"fmt"

	"yaoundeconnect.org/internal/audit"
)

var _ audit.History = (*Store)(nil)

// History returns committed audit entries for a record, newest first.
func (s *Store) History(ctx context.Context, tableName, recordID string) ([]audit.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, table_name, record_id, action, old_values, new_values, actor_user_id, created_at
		from audit_logs
		where table_name=$1 and record_id=$2
		order by created_at desc
	`, tableName, recordID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []audit.Entry
	for rows.Next() {
		var e audit.Entry
		var action string
		var oldJSON, newJSON []byte
		if err := rows.Scan(&e.ID, &e.TableName, &e.RecordID, &action, &oldJSON, &newJSON,
			&e.ActorUserID, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Action = audit.Action(action)
		if len(oldJSON) > 0 {
			if err := json.Unmarshal(oldJSON, &e.OldValues); err != nil {
				return nil, fmt.Errorf("decode old_values for %s: %w", e.ID, err)
			}
		}
		if len(newJSON) > 0 {
			if err := json.Unmarshal(newJSON, &e.NewValues); err != nil {
				return nil, fmt.Errorf("decode new_values for %s: %w", e.ID, err)
			}
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
