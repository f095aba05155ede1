package pg

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"yaoundeconnect.org/internal/audit"
	"yaoundeconnect.org/internal/auth"
	"yaoundeconnect.org/internal/roles"
)

// Users adapts the store to the auth subsystem.
type Users struct {
	s *Store
}

var _ auth.UserStore = (*Users)(nil)

// Users returns the user persistence facade.
func (s *Store) Users() *Users { return &Users{s: s} }

const userColumns = `id, name, email, password_hash, role, email_verified, coalesce(verify_token,''), created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*auth.User, error) {
	var u auth.User
	var role string
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role,
		&u.EmailVerified, &u.VerifyToken, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	parsed, err := roles.Parse(role)
	if err != nil {
		return nil, err
	}
	u.Role = parsed
	return &u, nil
}

func (us *Users) Create(ctx context.Context, u *auth.User, actorID string) error {
	tx, err := us.s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRowContext(ctx, `select 1 from users where email=$1`, u.Email).Scan(&exists)
	if err == nil {
		return auth.ErrConflict
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		insert into users (id, name, email, password_hash, role, email_verified, verify_token, created_at, updated_at)
		values ($1,$2,$3,$4,$5,$6,nullif($7,''),$8,$9)
	`, u.ID, u.Name, u.Email, u.PasswordHash, u.Role.String(), u.EmailVerified,
		u.VerifyToken, u.CreatedAt, u.UpdatedAt); err != nil {
		return err
	}
	if err := audit.Append(ctx, tx, &audit.Entry{
		TableName:   auth.TableName,
		RecordID:    u.ID,
		Action:      audit.ActionCreate,
		NewValues:   map[string]any{"email": u.Email, "role": u.Role.String()},
		ActorUserID: actorID,
	}); err != nil {
		return err
	}
	return tx.Commit()
}

func (us *Users) FindByID(ctx context.Context, id string) (*auth.User, error) {
	u, err := scanUser(us.s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	return u, err
}

func (us *Users) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := scanUser(us.s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where email=$1`, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	return u, err
}

func (us *Users) FindByVerifyToken(ctx context.Context, token string) (*auth.User, error) {
	u, err := scanUser(us.s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where verify_token=$1`, token))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	return u, err
}

func (us *Users) List(ctx context.Context, limit, offset int) ([]auth.User, error) {
	limit, offset = normalizePage(limit, offset)
	rows, err := us.s.db.QueryContext(ctx,
		`select `+userColumns+` from users order by created_at desc limit $1 offset $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []auth.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *u)
	}
	return res, rows.Err()
}

func (us *Users) Update(ctx context.Context, id string, upd auth.UserUpdate, actorID string) (*auth.User, error) {
	tx, err := us.s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	u, err := scanUser(tx.QueryRowContext(ctx,
		`select `+userColumns+` from users where id=$1 for update`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	old := map[string]any{}
	changed := map[string]any{}
	if upd.Name != nil && *upd.Name != u.Name {
		old["name"] = u.Name
		changed["name"] = *upd.Name
		u.Name = *upd.Name
	}
	if upd.Email != nil && *upd.Email != u.Email {
		var exists int
		err := tx.QueryRowContext(ctx, `select 1 from users where email=$1 and id<>$2`, *upd.Email, id).Scan(&exists)
		if err == nil {
			return nil, auth.ErrConflict
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
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
	if len(changed) == 0 {
		return u, nil
	}

	u.UpdatedAt = us.s.now().UTC()
	if _, err := tx.ExecContext(ctx, `
		update users set name=$2, email=$3, role=$4, updated_at=$5 where id=$1
	`, u.ID, u.Name, u.Email, u.Role.String(), u.UpdatedAt); err != nil {
		return nil, err
	}
	if err := audit.Append(ctx, tx, &audit.Entry{
		TableName:   auth.TableName,
		RecordID:    id,
		Action:      audit.ActionUpdate,
		OldValues:   old,
		NewValues:   changed,
		ActorUserID: actorID,
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return u, nil
}

func (us *Users) UpdatePassword(ctx context.Context, id, passwordHash, actorID string) error {
	tx, err := us.s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		update users set password_hash=$2, updated_at=now() where id=$1
	`, id, passwordHash)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return auth.ErrNotFound
	}
	if err := audit.Append(ctx, tx, &audit.Entry{
		TableName:   auth.TableName,
		RecordID:    id,
		Action:      audit.ActionUpdate,
		NewValues:   map[string]any{"password": "reset"},
		ActorUserID: actorID,
	}); err != nil {
		return err
	}
	return tx.Commit()
}

func (us *Users) MarkEmailVerified(ctx context.Context, id string) (*auth.User, error) {
	res, err := us.s.db.ExecContext(ctx, `
		update users set email_verified=true, verify_token=null, updated_at=now() where id=$1
	`, id)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, auth.ErrNotFound
	}
	return us.FindByID(ctx, id)
}

func (us *Users) Delete(ctx context.Context, id, actorID string) error {
	tx, err := us.s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	u, err := scanUser(tx.QueryRowContext(ctx,
		`select `+userColumns+` from users where id=$1 for update`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return auth.ErrNotFound
	}
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `delete from users where id=$1`, id); err != nil {
		return err
	}
	if err := audit.Append(ctx, tx, &audit.Entry{
		TableName:   auth.TableName,
		RecordID:    id,
		Action:      audit.ActionDelete,
		OldValues:   map[string]any{"email": u.Email, "role": u.Role.String()},
		ActorUserID: actorID,
	}); err != nil {
		return err
	}
	return tx.Commit()
}
