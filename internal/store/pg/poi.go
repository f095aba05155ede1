package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"yaoundeconnect.org/internal/audit"
	"yaoundeconnect.org/internal/ids"
	"yaoundeconnect.org/internal/notify"
	"yaoundeconnect.org/internal/obs"
	"yaoundeconnect.org/internal/poi"
	"yaoundeconnect.org/internal/roles"
)

var _ poi.Service = (*Store)(nil)

const poiColumns = `id, name, description, category, address, quartier, latitude, longitude, status, created_by, coalesce(approved_by,''), is_verify, created_at, updated_at`

func scanPOI(row interface{ Scan(...any) error }) (poi.POI, error) {
	var p poi.POI
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Category, &p.Address, &p.Quartier,
		&p.Latitude, &p.Longitude, &p.Status, &p.CreatedBy, &p.ApprovedBy, &p.IsVerify,
		&p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (s *Store) Create(ctx context.Context, in poi.CreateInput, actor roles.Actor) (poi.POI, error) {
	if err := poi.ValidateCreate(in); err != nil {
		return poi.POI{}, err
	}
	if actor.ID == "" {
		return poi.POI{}, fmt.Errorf("%w: actor is required", poi.ErrAuthorization)
	}

	now := s.now().UTC()
	p := poi.POI{
		ID:          ids.New(),
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Category:    strings.TrimSpace(in.Category),
		Address:     strings.TrimSpace(in.Address),
		Quartier:    strings.TrimSpace(in.Quartier),
		Latitude:    in.Latitude,
		Longitude:   in.Longitude,
		Status:      poi.StatusPending,
		CreatedBy:   actor.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return poi.POI{}, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		insert into point_of_interests (id, name, description, category, address, quartier, latitude, longitude, status, created_by, is_verify, created_at, updated_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, p.ID, p.Name, p.Description, p.Category, p.Address, p.Quartier, p.Latitude, p.Longitude,
		string(p.Status), p.CreatedBy, p.IsVerify, p.CreatedAt, p.UpdatedAt); err != nil {
		return poi.POI{}, err
	}
	if err := audit.Append(ctx, tx, &audit.Entry{
		TableName:   poi.TableName,
		RecordID:    p.ID,
		Action:      audit.ActionCreate,
		NewValues:   map[string]any{"name": p.Name, "status": string(p.Status)},
		ActorUserID: actor.ID,
	}); err != nil {
		return poi.POI{}, err
	}
	if err := tx.Commit(); err != nil {
		return poi.POI{}, err
	}

	if s.notifier != nil {
		s.notifier.Dispatch(notify.Event{
			Type:    notify.EventPOICreated,
			POIID:   p.ID,
			POIName: p.Name,
			ActorID: actor.ID,
		})
	}
	return p, nil
}

func (s *Store) Get(ctx context.Context, id string) (poi.POI, error) {
	p, err := scanPOI(s.db.QueryRowContext(ctx,
		`select `+poiColumns+` from point_of_interests where id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return poi.POI{}, poi.ErrNotFound
	}
	if err != nil {
		return poi.POI{}, err
	}
	return p, nil
}

func (s *Store) List(ctx context.Context, filter poi.ListFilter) ([]poi.POI, int, error) {
	limit, offset := normalizePage(filter.Limit, filter.Offset)

	where := []string{"true"}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.Status != "" {
		where = append(where, "status="+arg(string(filter.Status)))
	}
	if filter.Category != "" {
		where = append(where, "lower(category)=lower("+arg(filter.Category)+")")
	}
	if filter.Quartier != "" {
		where = append(where, "lower(quartier)=lower("+arg(filter.Quartier)+")")
	}
	cond := strings.Join(where, " and ")

	var total int
	if err := s.db.QueryRowContext(ctx,
		`select count(*) from point_of_interests where `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `select ` + poiColumns + ` from point_of_interests where ` + cond +
		` order by created_at desc limit ` + arg(limit) + ` offset ` + arg(offset)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var res []poi.POI
	for rows.Next() {
		p, err := scanPOI(rows)
		if err != nil {
			return nil, 0, err
		}
		res = append(res, p)
	}
	return res, total, rows.Err()
}

func (s *Store) Update(ctx context.Context, id string, upd poi.Update, actor roles.Actor) (poi.POI, error) {
	if err := poi.ValidateUpdate(upd); err != nil {
		return poi.POI{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return poi.POI{}, err
	}
	defer func() { _ = tx.Rollback() }()

	p, err := scanPOI(tx.QueryRowContext(ctx,
		`select `+poiColumns+` from point_of_interests where id=$1 for update`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return poi.POI{}, poi.ErrNotFound
	}
	if err != nil {
		return poi.POI{}, err
	}
	if !poi.CanEdit(s.resolver, actor, p) {
		return poi.POI{}, fmt.Errorf("%w: actor %s may not edit this POI", poi.ErrAuthorization, actor.ID)
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
		return p, nil
	}

	p.UpdatedAt = s.now().UTC()
	if _, err := tx.ExecContext(ctx, `
		update point_of_interests
		set name=$2, description=$3, category=$4, address=$5, quartier=$6, latitude=$7, longitude=$8, updated_at=$9
		where id=$1
	`, p.ID, p.Name, p.Description, p.Category, p.Address, p.Quartier, p.Latitude, p.Longitude, p.UpdatedAt); err != nil {
		return poi.POI{}, err
	}
	if err := audit.Append(ctx, tx, &audit.Entry{
		TableName:   poi.TableName,
		RecordID:    p.ID,
		Action:      audit.ActionUpdate,
		OldValues:   old,
		NewValues:   changed,
		ActorUserID: actor.ID,
	}); err != nil {
		return poi.POI{}, err
	}
	if err := tx.Commit(); err != nil {
		return poi.POI{}, err
	}
	return p, nil
}

func (s *Store) Delete(ctx context.Context, id string, actor roles.Actor) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	p, err := scanPOI(tx.QueryRowContext(ctx,
		`select `+poiColumns+` from point_of_interests where id=$1 for update`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return poi.ErrNotFound
	}
	if err != nil {
		return err
	}
	if !poi.CanEdit(s.resolver, actor, p) {
		return fmt.Errorf("%w: actor %s may not delete this POI", poi.ErrAuthorization, actor.ID)
	}

	if _, err := tx.ExecContext(ctx, `delete from point_of_interests where id=$1`, id); err != nil {
		return err
	}
	if err := audit.Append(ctx, tx, &audit.Entry{
		TableName:   poi.TableName,
		RecordID:    p.ID,
		Action:      audit.ActionDelete,
		OldValues:   map[string]any{"name": p.Name, "status": string(p.Status)},
		ActorUserID: actor.ID,
	}); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) Approve(ctx context.Context, id string, actor roles.Actor, comments string) (poi.POI, error) {
	return s.moderate(ctx, id, actor, poi.ActionApprove, comments)
}

func (s *Store) Reject(ctx context.Context, id string, actor roles.Actor, reason string) (poi.POI, error) {
	return s.moderate(ctx, id, actor, poi.ActionReject, reason)
}

func (s *Store) Reapprove(ctx context.Context, id string, actor roles.Actor, comments string) (poi.POI, error) {
	return s.moderate(ctx, id, actor, poi.ActionReapprove, comments)
}

func (s *Store) moderate(ctx context.Context, id string, actor roles.Actor, action poi.ModerationAction, detail string) (poi.POI, error) {
	// Input guards run before the transaction opens.
	if err := poi.CheckModerationInput(s.resolver, actor, action, detail); err != nil {
		return poi.POI{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return poi.POI{}, err
	}
	defer func() { _ = tx.Rollback() }()

	// Re-read current status under a row lock; concurrent moderators
	// serialize here.
	p, err := scanPOI(tx.QueryRowContext(ctx,
		`select `+poiColumns+` from point_of_interests where id=$1 for update`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return poi.POI{}, poi.ErrNotFound
	}
	if err != nil {
		return poi.POI{}, err
	}

	next, err := poi.NextStatus(p.Status, action)
	if err != nil {
		obs.ObserveModeration(string(action), "conflict")
		return poi.POI{}, err
	}

	old := map[string]any{"status": string(p.Status), "approved_by": p.ApprovedBy}
	p.Status = next
	p.ApprovedBy = actor.ID
	p.IsVerify = next == poi.StatusApproved
	p.UpdatedAt = s.now().UTC()

	if _, err := tx.ExecContext(ctx, `
		update point_of_interests
		set status=$2, approved_by=$3, is_verify=$4, updated_at=$5
		where id=$1
	`, p.ID, string(p.Status), p.ApprovedBy, p.IsVerify, p.UpdatedAt); err != nil {
		return poi.POI{}, err
	}

	newValues := map[string]any{"status": string(p.Status), "approved_by": p.ApprovedBy}
	if detail != "" {
		if action == poi.ActionReject {
			newValues["reason"] = detail
		} else {
			newValues["comments"] = detail
		}
	}
	if err := audit.Append(ctx, tx, &audit.Entry{
		TableName:   poi.TableName,
		RecordID:    p.ID,
		Action:      audit.ActionUpdate,
		OldValues:   old,
		NewValues:   newValues,
		ActorUserID: actor.ID,
	}); err != nil {
		return poi.POI{}, err
	}
	if err := tx.Commit(); err != nil {
		return poi.POI{}, err
	}
	obs.ObserveModeration(string(action), "ok")

	// Post-commit, best-effort.
	if s.notifier != nil {
		evtType := notify.EventPOIApproved
		if next == poi.StatusRejected {
			evtType = notify.EventPOIRejected
		}
		s.notifier.Dispatch(notify.Event{
			Type:        evtType,
			POIID:       p.ID,
			POIName:     p.Name,
			ActorID:     actor.ID,
			Detail:      detail,
			RecipientID: p.CreatedBy,
		})
	}
	return p, nil
}

func (s *Store) ListPending(ctx context.Context, limit, offset int) ([]poi.POI, error) {
	items, _, err := s.List(ctx, poi.ListFilter{Status: poi.StatusPending, Limit: limit, Offset: offset})
	return items, err
}

func (s *Store) Stats(ctx context.Context) (poi.Stats, error) {
	var st poi.Stats
	err := s.db.QueryRowContext(ctx, `
		select count(*),
		       count(*) filter (where status='pending'),
		       count(*) filter (where status='approved'),
		       count(*) filter (where status='rejected')
		from point_of_interests
	`).Scan(&st.Total, &st.Pending, &st.Approved, &st.Rejected)
	if err != nil {
		return poi.Stats{}, err
	}
	return st, nil
}

func (s *Store) Nearby(ctx context.Context, lat, lon, radiusKm float64, limit int) ([]poi.POI, error) {
	if radiusKm <= 0 {
		radiusKm = 5
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	// Haversine over approved rows only.
	rows, err := s.db.QueryContext(ctx, `
		select `+poiColumns+`, dist from (
			select *, 2 * 6371 * asin(sqrt(
				pow(sin(radians(latitude - $1) / 2), 2) +
				cos(radians($1)) * cos(radians(latitude)) *
				pow(sin(radians(longitude - $2) / 2), 2)
			)) as dist
			from point_of_interests
			where status='approved'
		) q
		where dist <= $3
		order by dist asc
		limit $4
	`, lat, lon, radiusKm, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []poi.POI
	for rows.Next() {
		var p poi.POI
		var dist float64
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Category, &p.Address, &p.Quartier,
			&p.Latitude, &p.Longitude, &p.Status, &p.CreatedBy, &p.ApprovedBy, &p.IsVerify,
			&p.CreatedAt, &p.UpdatedAt, &dist); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
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
