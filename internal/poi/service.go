package poi

import (
	"context"
	"time"

	"yaoundeconnect.org/internal/notify"
	"yaoundeconnect.org/internal/roles"
)

// Service defines directory operations over points of interest.
//
// Moderation transitions (Approve, Reject, Reapprove) are atomic: the
// implementation re-reads the current status inside its transaction, applies
// the guard, mutates the record and appends the audit entry, all or nothing.
// Notifications go out only after a successful commit and are best-effort.
type Service interface {
	Create(ctx context.Context, in CreateInput, actor roles.Actor) (POI, error)
	Get(ctx context.Context, id string) (POI, error)
	List(ctx context.Context, filter ListFilter) ([]POI, int, error)
	Update(ctx context.Context, id string, upd Update, actor roles.Actor) (POI, error)
	Delete(ctx context.Context, id string, actor roles.Actor) error

	Approve(ctx context.Context, id string, actor roles.Actor, comments string) (POI, error)
	Reject(ctx context.Context, id string, actor roles.Actor, reason string) (POI, error)
	Reapprove(ctx context.Context, id string, actor roles.Actor, comments string) (POI, error)

	ListPending(ctx context.Context, limit, offset int) ([]POI, error)
	Stats(ctx context.Context) (Stats, error)
	Nearby(ctx context.Context, lat, lon, radiusKm float64, limit int) ([]POI, error)
}

// Dispatcher is the post-commit notification hook. *notify.Dispatcher
// satisfies it; implementations may run with a nil dispatcher.
type Dispatcher interface {
	Dispatch(evt notify.Event) bool
}

// Comment is a user remark on a POI.
type Comment struct {
	ID        string    `json:"id"`
	POIID     string    `json:"poi_id"`
	AuthorID  string    `json:"author_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Rating is a 1-5 score; one per user per POI, latest wins.
type Rating struct {
	POIID     string    `json:"poi_id"`
	UserID    string    `json:"user_id"`
	Value     int       `json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RatingSummary aggregates ratings for display.
type RatingSummary struct {
	POIID   string  `json:"poi_id"`
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

// SocialStore persists comments, ratings and favorites. Read paths never
// touch moderation fields.
type SocialStore interface {
	AddComment(ctx context.Context, poiID, authorID, content string) (Comment, error)
	ListComments(ctx context.Context, poiID string, limit, offset int) ([]Comment, error)
	Rate(ctx context.Context, poiID, userID string, value int) (Rating, error)
	Ratings(ctx context.Context, poiID string) (RatingSummary, error)
	SetFavorite(ctx context.Context, poiID, userID string, favorite bool) error
	ListFavorites(ctx context.Context, userID string) ([]POI, error)
}
