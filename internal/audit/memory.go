package audit

import (
	"context"
	"sort"
	"sync"
	"time"

	"yaoundeconnect.org/internal/ids"
)

// Memory is an in-process append-only recorder used by the in-memory stores
// and by tests. It mirrors the durable table semantics: append inside the
// caller's critical section, read back newest first.
type Memory struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewMemory creates an empty recorder.
func NewMemory() *Memory {
	return &Memory{}
}

// Record validates and appends an entry.
func (m *Memory) Record(ctx context.Context, e *Entry) error {
	if err := validate(e); err != nil {
		return err
	}
	if e.ID == "" {
		e.ID = ids.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, cloneEntry(*e))
	return nil
}

// History returns entries for (tableName, recordID) ordered created_at desc.
func (m *Memory) History(ctx context.Context, tableName, recordID string) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Entry
	for _, e := range m.entries {
		if e.TableName == tableName && e.RecordID == recordID {
			out = append(out, cloneEntry(e))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Count reports the total number of recorded entries.
func (m *Memory) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func cloneEntry(e Entry) Entry {
	out := e
	out.OldValues = cloneValues(e.OldValues)
	out.NewValues = cloneValues(e.NewValues)
	return out
}

func cloneValues(values map[string]any) map[string]any {
	if values == nil {
		return nil
	}
	out := make(map[string]any, len(values))
	for k, v := range values {
		out[k] = v
	}
	return out
}
