package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"yaoundeconnect.org/internal/audit"
)

// MemoryStore implements UserStore in process, mirroring the durable store's
// audit semantics: the audit entry is recorded under the same critical
// section as the mutation.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]*User
	auditLog *audit.Memory
	now      func() time.Time
}

var _ UserStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store. auditLog may be shared with other
// in-memory stores.
func NewMemoryStore(auditLog *audit.Memory) *MemoryStore {
	if auditLog == nil {
		auditLog = audit.NewMemory()
	}
	return &MemoryStore{
		users:    make(map[string]*User),
		auditLog: auditLog,
		now:      time.Now,
	}
}

// AuditLog exposes the recorder for tests.
func (s *MemoryStore) AuditLog() *audit.Memory { return s.auditLog }

func (s *MemoryStore) Create(ctx context.Context, u *User, actorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return ErrConflict
		}
	}
	if err := s.auditLog.Record(ctx, &audit.Entry{
		TableName:   TableName,
		RecordID:    u.ID,
		Action:      audit.ActionCreate,
		NewValues:   map[string]any{"email": u.Email, "role": u.Role.String()},
		ActorUserID: actorID,
	}); err != nil {
		return err
	}
	clone := *u
	s.users[u.ID] = &clone
	return nil
}

func (s *MemoryStore) FindByID(ctx context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *u
	return &clone, nil
}

func (s *MemoryStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) FindByVerifyToken(ctx context.Context, token string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.VerifyToken != "" && u.VerifyToken == token {
			clone := *u
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) List(ctx context.Context, limit, offset int) ([]User, error) {
	s.mu.RLock()
	all := make([]User, 0, len(s.users))
	for _, u := range s.users {
		all = append(all, *u)
	}
	s.mu.RUnlock()

	// Stable order by creation time, newest first.
	for i := 1; i < len(all); i++ {
		for j := i; j > 0 && all[j].CreatedAt.After(all[j-1].CreatedAt); j-- {
			all[j], all[j-1] = all[j-1], all[j]
		}
	}
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (s *MemoryStore) Update(ctx context.Context, id string, upd UserUpdate, actorID string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}

	old := map[string]any{}
	changed := map[string]any{}
	if upd.Name != nil && *upd.Name != u.Name {
		old["name"] = u.Name
		changed["name"] = *upd.Name
		u.Name = *upd.Name
	}
	if upd.Email != nil && *upd.Email != u.Email {
		for _, existing := range s.users {
			if existing.ID != id && existing.Email == *upd.Email {
				return nil, ErrConflict
			}
		}
		old["email"] = u.Email
		changed["email"] = *upd.Email
		u.Email = *upd.Email
	}
	if upd.Role != nil && *upd.Role != u.Role {
		old["role"] = u.Role.String()
		changed["role"] = upd.Role.String()
		u.Role = *upd.Role
	}
	if len(changed) > 0 {
		u.UpdatedAt = s.now().UTC()
		if err := s.auditLog.Record(ctx, &audit.Entry{
			TableName:   TableName,
			RecordID:    id,
			Action:      audit.ActionUpdate,
			OldValues:   old,
			NewValues:   changed,
			ActorUserID: actorID,
		}); err != nil {
			return nil, err
		}
	}
	clone := *u
	return &clone, nil
}

func (s *MemoryStore) UpdatePassword(ctx context.Context, id, passwordHash, actorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	if err := s.auditLog.Record(ctx, &audit.Entry{
		TableName:   TableName,
		RecordID:    id,
		Action:      audit.ActionUpdate,
		NewValues:   map[string]any{"password": "reset"},
		ActorUserID: actorID,
	}); err != nil {
		return err
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = s.now().UTC()
	return nil
}

func (s *MemoryStore) MarkEmailVerified(ctx context.Context, id string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	u.EmailVerified = true
	u.VerifyToken = ""
	u.UpdatedAt = s.now().UTC()
	clone := *u
	return &clone, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id, actorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	if err := s.auditLog.Record(ctx, &audit.Entry{
		TableName:   TableName,
		RecordID:    id,
		Action:      audit.ActionDelete,
		OldValues:   map[string]any{"email": u.Email, "role": u.Role.String()},
		ActorUserID: actorID,
	}); err != nil {
		return err
	}
	delete(s.users, id)
	return nil
}
