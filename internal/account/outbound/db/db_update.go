package db

import (
	"context"

	"github.com/bloodsync/bloodsync/internal/account/entity"
)

// Status columns are stamped the first time an account reaches them.
const queryUpdateUserStatus = `UPDATE account_users
SET status = $4,
	approved_at = CASE WHEN $4 = 3 AND approved_at IS NULL THEN now() ELSE approved_at END,
	updated_at = now(),
	updated_by = $5
WHERE id = $1 AND kind = $2 AND status = $3 AND deleted_at IS NULL`

const queryUpdateUserRole = `UPDATE account_users
SET role = $3, updated_at = now(), updated_by = $4
WHERE id = $1 AND kind = $2 AND deleted_at IS NULL`

const queryUpdateUserPassword = `UPDATE account_users
SET password = $2, updated_at = now(), updated_by = $1
WHERE id = $1 AND status = 3 AND deleted_at IS NULL`

const queryMarkUserDeleted = `UPDATE account_users
SET deleted_at = now(), deleted_by = $3, updated_at = now(), updated_by = $3
WHERE id = $1 AND kind = $2 AND deleted_at IS NULL`

// UpdateUserStatus applies change only while the account is still in change.From.
func (s *DB) UpdateUserStatus(ctx context.Context, change entity.StatusChange) (err error) {
	ctx, span := s.startSpan(ctx, "UpdateUserStatus")
	defer func() { s.endSpan(span, err) }()

	err = s.affected(s.conn.Exec(ctx, queryUpdateUserStatus,
		change.UserID, change.Kind.String(), int16(change.From), int16(change.To), change.By))
	return err
}

func (s *DB) UpdateUserRole(ctx context.Context, id int64, kind entity.UserKind, role entity.Role, by int64) (err error) {
	ctx, span := s.startSpan(ctx, "UpdateUserRole")
	defer func() { s.endSpan(span, err) }()

	err = s.affected(s.conn.Exec(ctx, queryUpdateUserRole, id, kind.String(), role.String(), by))
	return err
}

// UpdateUserPassword only touches active accounts.
func (s *DB) UpdateUserPassword(ctx context.Context, id int64, hash string) (err error) {
	ctx, span := s.startSpan(ctx, "UpdateUserPassword")
	defer func() { s.endSpan(span, err) }()

	err = s.affected(s.conn.Exec(ctx, queryUpdateUserPassword, id, hash))
	return err
}

func (s *DB) MarkUserDeleted(ctx context.Context, id int64, kind entity.UserKind, by int64) (err error) {
	ctx, span := s.startSpan(ctx, "MarkUserDeleted")
	defer func() { s.endSpan(span, err) }()

	err = s.affected(s.conn.Exec(ctx, queryMarkUserDeleted, id, kind.String(), by))
	return err
}
