package pg

import (
	"context"
	"fmt"
	"strings"

	"yaoundeconnect.org/internal/ids"
	"yaoundeconnect.org/internal/poi"
)

var _ poi.SocialStore = (*Store)(nil)

func (s *Store) AddComment(ctx context.Context, poiID, authorID, content string) (poi.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return poi.Comment{}, fmt.Errorf("%w: comment content is required", poi.ErrValidation)
	}
	if _, err := s.Get(ctx, poiID); err != nil {
		return poi.Comment{}, err
	}

	c := poi.Comment{
		ID:        ids.New(),
		POIID:     poiID,
		AuthorID:  authorID,
		Content:   content,
		CreatedAt: s.now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, `
		insert into comments (id, poi_id, author_id, content, created_at)
		values ($1,$2,$3,$4,$5)
	`, c.ID, c.POIID, c.AuthorID, c.Content, c.CreatedAt)
	if err != nil {
		return poi.Comment{}, err
	}
	return c, nil
}

func (s *Store) ListComments(ctx context.Context, poiID string, limit, offset int) ([]poi.Comment, error) {
	limit, offset = normalizePage(limit, offset)
	rows, err := s.db.QueryContext(ctx, `
		select id, poi_id, author_id, content, created_at
		from comments
		where poi_id=$1
		order by created_at desc
		limit $2 offset $3
	`, poiID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []poi.Comment
	for rows.Next() {
		var c poi.Comment
		if err := rows.Scan(&c.ID, &c.POIID, &c.AuthorID, &c.Content, &c.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (s *Store) Rate(ctx context.Context, poiID, userID string, value int) (poi.Rating, error) {
	if value < 1 || value > 5 {
		return poi.Rating{}, fmt.Errorf("%w: rating must be between 1 and 5", poi.ErrValidation)
	}
	if _, err := s.Get(ctx, poiID); err != nil {
		return poi.Rating{}, err
	}

	now := s.now().UTC()
	r := poi.Rating{POIID: poiID, UserID: userID, Value: value, CreatedAt: now, UpdatedAt: now}
	_, err := s.db.ExecContext(ctx, `
		insert into ratings (poi_id, user_id, value, created_at, updated_at)
		values ($1,$2,$3,$4,$4)
		on conflict (poi_id, user_id) do update
		set value = excluded.value, updated_at = excluded.updated_at
	`, poiID, userID, value, now)
	if err != nil {
		return poi.Rating{}, err
	}
	return r, nil
}

func (s *Store) Ratings(ctx context.Context, poiID string) (poi.RatingSummary, error) {
	sum := poi.RatingSummary{POIID: poiID}
	err := s.db.QueryRowContext(ctx, `
		select coalesce(avg(value),0), count(*) from ratings where poi_id=$1
	`, poiID).Scan(&sum.Average, &sum.Count)
	if err != nil {
		return poi.RatingSummary{}, err
	}
	return sum, nil
}

func (s *Store) SetFavorite(ctx context.Context, poiID, userID string, favorite bool) error {
	if _, err := s.Get(ctx, poiID); err != nil {
		return err
	}
	if favorite {
		_, err := s.db.ExecContext(ctx, `
			insert into favorites (poi_id, user_id, created_at)
			values ($1,$2,now())
			on conflict do nothing
		`, poiID, userID)
		return err
	}
	_, err := s.db.ExecContext(ctx, `delete from favorites where poi_id=$1 and user_id=$2`, poiID, userID)
	return err
}

func (s *Store) ListFavorites(ctx context.Context, userID string) ([]poi.POI, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+prefixedPOIColumns("p")+`
		from point_of_interests p
		join favorites f on f.poi_id = p.id
		where f.user_id=$1
		order by f.created_at desc
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []poi.POI
	for rows.Next() {
		p, err := scanPOI(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func prefixedPOIColumns(alias string) string {
	cols := strings.Split(poiColumns, ", ")
	for i, c := range cols {
		if strings.HasPrefix(c, "coalesce(") {
			cols[i] = strings.Replace(c, "coalesce(", "coalesce("+alias+".", 1)
			continue
		}
		cols[i] = alias + "." + c
	}
	return strings.Join(cols, ", ")
}
