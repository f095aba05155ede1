package poi

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"yaoundeconnect.org/internal/ids"
)

// InMemorySocial implements SocialStore against an InMemory directory.
type InMemorySocial struct {
	mu        sync.RWMutex
	dir       *InMemory
	comments  map[string][]Comment          // poiID -> comments
	ratings   map[string]map[string]*Rating // poiID -> userID -> rating
	favorites map[string]map[string]bool    // userID -> poiID -> set
	now       func() time.Time
}

var _ SocialStore = (*InMemorySocial)(nil)

// NewInMemorySocial binds a social store to a directory.
func NewInMemorySocial(dir *InMemory) *InMemorySocial {
	return &InMemorySocial{
		dir:       dir,
		comments:  make(map[string][]Comment),
		ratings:   make(map[string]map[string]*Rating),
		favorites: make(map[string]map[string]bool),
		now:       time.Now,
	}
}

func (s *InMemorySocial) AddComment(ctx context.Context, poiID, authorID, content string) (Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return Comment{}, fmt.Errorf("%w: comment content is required", ErrValidation)
	}
	if authorID == "" {
		return Comment{}, fmt.Errorf("%w: author is required", ErrAuthorization)
	}
	if _, err := s.dir.Get(ctx, poiID); err != nil {
		return Comment{}, err
	}

	c := Comment{
		ID:        ids.New(),
		POIID:     poiID,
		AuthorID:  authorID,
		Content:   content,
		CreatedAt: s.now().UTC(),
	}
	s.mu.Lock()
	s.comments[poiID] = append(s.comments[poiID], c)
	s.mu.Unlock()
	return c, nil
}

func (s *InMemorySocial) ListComments(ctx context.Context, poiID string, limit, offset int) ([]Comment, error) {
	if _, err := s.dir.Get(ctx, poiID); err != nil {
		return nil, err
	}
	limit, offset = normalizePage(limit, offset)

	s.mu.RLock()
	all := make([]Comment, len(s.comments[poiID]))
	copy(all, s.comments[poiID])
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (s *InMemorySocial) Rate(ctx context.Context, poiID, userID string, value int) (Rating, error) {
	if value < 1 || value > 5 {
		return Rating{}, fmt.Errorf("%w: rating must be between 1 and 5", ErrValidation)
	}
	if userID == "" {
		return Rating{}, fmt.Errorf("%w: user is required", ErrAuthorization)
	}
	if _, err := s.dir.Get(ctx, poiID); err != nil {
		return Rating{}, err
	}

	now := s.now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	byUser, ok := s.ratings[poiID]
	if !ok {
		byUser = make(map[string]*Rating)
		s.ratings[poiID] = byUser
	}
	if existing, ok := byUser[userID]; ok {
		existing.Value = value
		existing.UpdatedAt = now
		return *existing, nil
	}
	r := &Rating{POIID: poiID, UserID: userID, Value: value, CreatedAt: now, UpdatedAt: now}
	byUser[userID] = r
	return *r, nil
}

func (s *InMemorySocial) Ratings(ctx context.Context, poiID string) (RatingSummary, error) {
	if _, err := s.dir.Get(ctx, poiID); err != nil {
		return RatingSummary{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := RatingSummary{POIID: poiID}
	var sum int
	for _, r := range s.ratings[poiID] {
		sum += r.Value
		summary.Count++
	}
	if summary.Count > 0 {
		summary.Average = float64(sum) / float64(summary.Count)
	}
	return summary, nil
}

func (s *InMemorySocial) SetFavorite(ctx context.Context, poiID, userID string, favorite bool) error {
	if userID == "" {
		return fmt.Errorf("%w: user is required", ErrAuthorization)
	}
	if _, err := s.dir.Get(ctx, poiID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.favorites[userID]
	if !ok {
		set = make(map[string]bool)
		s.favorites[userID] = set
	}
	if favorite {
		set[poiID] = true
	} else {
		delete(set, poiID)
	}
	return nil
}

func (s *InMemorySocial) ListFavorites(ctx context.Context, userID string) ([]POI, error) {
	s.mu.RLock()
	idsToFetch := make([]string, 0, len(s.favorites[userID]))
	for id := range s.favorites[userID] {
		idsToFetch = append(idsToFetch, id)
	}
	s.mu.RUnlock()

	var out []POI
	for _, id := range idsToFetch {
		p, err := s.dir.Get(ctx, id)
		if err != nil {
			continue // POI deleted since favorited
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
