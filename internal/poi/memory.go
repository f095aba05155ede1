package poi

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"yaoundeconnect.org/internal/audit"
	"yaoundeconnect.org/internal/ids"
	"yaoundeconnect.org/internal/notify"
	"yaoundeconnect.org/internal/obs"
	"yaoundeconnect.org/internal/roles"
)

// InMemory implements Service with in-process concurrency safety. The mutex
// plays the role of the database transaction: status is re-read and mutated
// under the same critical section that records the audit entry.
type InMemory struct {
	mu       sync.RWMutex
	pois     map[string]*POI
	resolver roles.Resolver
	auditLog *audit.Memory
	notifier Dispatcher
	now      func() time.Time
}

var _ Service = (*InMemory)(nil)

// NewInMemory creates an empty in-memory directory. notifier may be nil.
func NewInMemory(resolver roles.Resolver, auditLog *audit.Memory, notifier Dispatcher) *InMemory {
	if auditLog == nil {
		auditLog = audit.NewMemory()
	}
	return &InMemory{
		pois:     make(map[string]*POI),
		resolver: resolver,
		auditLog: auditLog,
		notifier: notifier,
		now:      time.Now,
	}
}

// AuditLog exposes the recorder for history queries and tests.
func (s *InMemory) AuditLog() *audit.Memory { return s.auditLog }

func (s *InMemory) Create(ctx context.Context, in CreateInput, actor roles.Actor) (POI, error) {
	if err := ValidateCreate(in); err != nil {
		return POI{}, err
	}
	if actor.ID == "" {
		return POI{}, fmt.Errorf("%w: actor is required", ErrAuthorization)
	}

	now := s.now().UTC()
	p := &POI{
		ID:          ids.New(),
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Category:    strings.TrimSpace(in.Category),
		Address:     strings.TrimSpace(in.Address),
		Quartier:    strings.TrimSpace(in.Quartier),
		Latitude:    in.Latitude,
		Longitude:   in.Longitude,
		Status:      StatusPending,
		CreatedBy:   actor.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	s.mu.Lock()
	s.pois[p.ID] = p
	err := s.auditLog.Record(ctx, &audit.Entry{
		TableName:   TableName,
		RecordID:    p.ID,
		Action:      audit.ActionCreate,
		NewValues:   map[string]any{"name": p.Name, "status": string(p.Status)},
		ActorUserID: actor.ID,
	})
	if err != nil {
		delete(s.pois, p.ID)
		s.mu.Unlock()
		return POI{}, err
	}
	out := *p
	s.mu.Unlock()

	if s.notifier != nil {
		s.notifier.Dispatch(notify.Event{
			Type:    notify.EventPOICreated,
			POIID:   out.ID,
			POIName: out.Name,
			ActorID: actor.ID,
		})
	}
	return out, nil
}

func (s *InMemory) Get(ctx context.Context, id string) (POI, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pois[id]
	if !ok {
		return POI{}, ErrNotFound
	}
	return *p, nil
}

func (s *InMemory) List(ctx context.Context, filter ListFilter) ([]POI, int, error) {
	limit, offset := normalizePage(filter.Limit, filter.Offset)

	s.mu.RLock()
	var matched []POI
	for _, p := range s.pois {
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if filter.Category != "" && !strings.EqualFold(p.Category, filter.Category) {
			continue
		}
		if filter.Quartier != "" && !strings.EqualFold(p.Quartier, filter.Quartier) {
			continue
		}
		matched = append(matched, *p)
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	total := len(matched)
	return page(matched, limit, offset), total, nil
}

func (s *InMemory) Update(ctx context.Context, id string, upd Update, actor roles.Actor) (POI, error) {
	if err := ValidateUpdate(upd); err != nil {
		return POI{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pois[id]
	if !ok {
		return POI{}, ErrNotFound
	}
	if !CanEdit(s.resolver, actor, *p) {
		return POI{}, fmt.Errorf("%w: actor %s may not edit this POI", ErrAuthorization, actor.ID)
	}

	old := map[string]any{}
	changed := map[string]any{}
	applyString := func(field string, dst *string, src *string) {
		if src == nil {
			return
		}
		v := strings.TrimSpace(*src)
		if v == *dst {
			return
		}
		old[field] = *dst
		changed[field] = v
		*dst = v
	}
	applyString("name", &p.Name, upd.Name)
	applyString("description", &p.Description, upd.Description)
	applyString("category", &p.Category, upd.Category)
	applyString("address", &p.Address, upd.Address)
	applyString("quartier", &p.Quartier, upd.Quartier)
	if upd.Latitude != nil && *upd.Latitude != p.Latitude {
		old["latitude"] = p.Latitude
		changed["latitude"] = *upd.Latitude
		p.Latitude = *upd.Latitude
	}
	if upd.Longitude != nil && *upd.Longitude != p.Longitude {
		old["longitude"] = p.Longitude
		changed["longitude"] = *upd.Longitude
		p.Longitude = *upd.Longitude
	}

	if len(changed) == 0 {
		return *p, nil
	}
	p.UpdatedAt = s.now().UTC()
	if err := s.auditLog.Record(ctx, &audit.Entry{
		TableName:   TableName,
		RecordID:    p.ID,
		Action:      audit.ActionUpdate,
		OldValues:   old,
		NewValues:   changed,
		ActorUserID: actor.ID,
	}); err != nil {
		return POI{}, err
	}
	return *p, nil
}

func (s *InMemory) Delete(ctx context.Context, id string, actor roles.Actor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pois[id]
	if !ok {
		return ErrNotFound
	}
	if !CanEdit(s.resolver, actor, *p) {
		return fmt.Errorf("%w: actor %s may not delete this POI", ErrAuthorization, actor.ID)
	}
	if err := s.auditLog.Record(ctx, &audit.Entry{
		TableName:   TableName,
		RecordID:    p.ID,
		Action:      audit.ActionDelete,
		OldValues:   map[string]any{"name": p.Name, "status": string(p.Status)},
		ActorUserID: actor.ID,
	}); err != nil {
		return err
	}
	delete(s.pois, id)
	return nil
}

func (s *InMemory) Approve(ctx context.Context, id string, actor roles.Actor, comments string) (POI, error) {
	return s.moderate(ctx, id, actor, ActionApprove, comments)
}

func (s *InMemory) Reject(ctx context.Context, id string, actor roles.Actor, reason string) (POI, error) {
	return s.moderate(ctx, id, actor, ActionReject, reason)
}

func (s *InMemory) Reapprove(ctx context.Context, id string, actor roles.Actor, comments string) (POI, error) {
	return s.moderate(ctx, id, actor, ActionReapprove, comments)
}

func (s *InMemory) moderate(ctx context.Context, id string, actor roles.Actor, action ModerationAction, detail string) (POI, error) {
	// Input guards run before any state is touched.
	if err := CheckModerationInput(s.resolver, actor, action, detail); err != nil {
		return POI{}, err
	}

	s.mu.Lock()
	p, ok := s.pois[id]
	if !ok {
		s.mu.Unlock()
		return POI{}, ErrNotFound
	}

	// Current status is read under the lock; concurrent moderators serialize
	// here the way transactions do against the row lock.
	next, err := NextStatus(p.Status, action)
	if err != nil {
		s.mu.Unlock()
		obs.ObserveModeration(string(action), "conflict")
		return POI{}, err
	}

	old := map[string]any{"status": string(p.Status), "approved_by": p.ApprovedBy}
	p.Status = next
	p.ApprovedBy = actor.ID
	p.IsVerify = next == StatusApproved
	p.UpdatedAt = s.now().UTC()
	newValues := map[string]any{"status": string(p.Status), "approved_by": p.ApprovedBy}
	if detail != "" {
		if action == ActionReject {
			newValues["reason"] = detail
		} else {
			newValues["comments"] = detail
		}
	}
	if err := s.auditLog.Record(ctx, &audit.Entry{
		TableName:   TableName,
		RecordID:    p.ID,
		Action:      audit.ActionUpdate,
		OldValues:   old,
		NewValues:   newValues,
		ActorUserID: actor.ID,
	}); err != nil {
		// Roll the mutation back; audit and mutation are atomic.
		p.Status = Status(old["status"].(string))
		p.ApprovedBy = old["approved_by"].(string)
		p.IsVerify = p.Status == StatusApproved
		s.mu.Unlock()
		return POI{}, err
	}
	out := *p
	s.mu.Unlock()
	obs.ObserveModeration(string(action), "ok")

	// Phase 2: queued after the mutation is final, never fails the call.
	if s.notifier != nil {
		evtType := notify.EventPOIApproved
		if next == StatusRejected {
			evtType = notify.EventPOIRejected
		}
		s.notifier.Dispatch(notify.Event{
			Type:        evtType,
			POIID:       out.ID,
			POIName:     out.Name,
			ActorID:     actor.ID,
			Detail:      detail,
			RecipientID: out.CreatedBy,
		})
	}
	return out, nil
}

func (s *InMemory) ListPending(ctx context.Context, limit, offset int) ([]POI, error) {
	items, _, err := s.List(ctx, ListFilter{Status: StatusPending, Limit: limit, Offset: offset})
	return items, err
}

func (s *InMemory) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var st Stats
	for _, p := range s.pois {
		st.Total++
		switch p.Status {
		case StatusPending:
			st.Pending++
		case StatusApproved:
			st.Approved++
		case StatusRejected:
			st.Rejected++
		}
	}
	return st, nil
}

func (s *InMemory) Nearby(ctx context.Context, lat, lon, radiusKm float64, limit int) ([]POI, error) {
	if radiusKm <= 0 {
		radiusKm = 5
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	s.mu.RLock()
	type hit struct {
		poi  POI
		dist float64
	}
	var hits []hit
	for _, p := range s.pois {
		if p.Status != StatusApproved {
			continue
		}
		d := haversineKm(lat, lon, p.Latitude, p.Longitude)
		if d <= radiusKm {
			hits = append(hits, hit{poi: *p, dist: d})
		}
	}
	s.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool { return hits[i].dist < hits[j].dist })
	out := make([]POI, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.poi)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func page(items []POI, limit, offset int) []POI {
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

// haversineKm returns the great-circle distance between two coordinates.
func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusKm = 6371.0
	rad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := rad(lat2 - lat1)
	dLon := rad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(a))
}
