package db

import (
	"context"
	"time"

	"github.com/bloodsync/bloodsync/internal/account/entity"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/samber/lo"
)

const userColumns = `id, kind, email, full_name, organization_name, contact_number,
	role, status, accreditation_key, created_at, verified_at, approved_at`

const queryUserByID = `SELECT ` + userColumns + `
FROM account_users
WHERE id = $1 AND deleted_at IS NULL`

const queryUserCredentialByEmail = `SELECT id, kind, email, role, status, password
FROM account_users
WHERE lower(email) = lower($1) AND deleted_at IS NULL`

const queryActivationUser = `SELECT a.id, a.expires_at, u.id, u.email, u.kind, u.status
FROM account_activations a
JOIN account_users u ON u.id = a.user_id
WHERE a.token = $1 AND a.used_at IS NULL AND u.deleted_at IS NULL`

const queryListUsers = `SELECT ` + userColumns + `
FROM account_users
WHERE kind = $1 AND status = ANY($2::smallint[]) AND deleted_at IS NULL
ORDER BY created_at DESC, id DESC`

func (s *DB) GetUserByID(ctx context.Context, id int64) (_ *entity.User, err error) {
	ctx, span := s.startSpan(ctx, "GetUserByID")
	defer func() { s.endSpan(span, err) }()

	rows, err := s.conn.Query(ctx, queryUserByID, id)
	if err != nil {
		return nil, s.mapError(err)
	}

	user, err := pgx.CollectExactlyOneRow(rows, scanUser)
	if err != nil {
		return nil, s.mapError(err)
	}

	return &user, nil
}

func (s *DB) GetUserCredentialByEmail(ctx context.Context, email string) (_ *entity.UserCredential, err error) {
	ctx, span := s.startSpan(ctx, "GetUserCredentialByEmail")
	defer func() { s.endSpan(span, err) }()

	var (
		cred entity.UserCredential
		kind string
		role string
	)
	err = s.conn.QueryRow(ctx, queryUserCredentialByEmail, email).
		Scan(&cred.ID, &kind, &cred.Email, &role, &cred.Status, &cred.PasswordHash)
	if err != nil {
		return nil, s.mapError(err)
	}
	cred.Kind = entity.ParseUserKind(kind)
	cred.Role = entity.Role(role)

	return &cred, nil
}

func (s *DB) GetActivationUser(ctx context.Context, token string) (_ *entity.ActivationUser, err error) {
	ctx, span := s.startSpan(ctx, "GetActivationUser")
	defer func() { s.endSpan(span, err) }()

	var (
		au   entity.ActivationUser
		kind string
	)
	err = s.conn.QueryRow(ctx, queryActivationUser, token).
		Scan(&au.ActivationID, &au.ExpiresAt, &au.UserID, &au.UserEmail, &kind, &au.UserStatus)
	if err != nil {
		return nil, s.mapError(err)
	}
	au.UserKind = entity.ParseUserKind(kind)

	return &au, nil
}

func (s *DB) ListUsers(ctx context.Context, filter entity.UserFilter) (_ []entity.User, err error) {
	ctx, span := s.startSpan(ctx, "ListUsers")
	defer func() { s.endSpan(span, err) }()

	statuses := lo.Map(filter.Statuses, func(st entity.UserStatus, _ int) int16 { return int16(st) })

	rows, err := s.conn.Query(ctx, queryListUsers, filter.Kind.String(), statuses)
	if err != nil {
		return nil, s.mapError(err)
	}

	users, err := pgx.CollectRows(rows, scanUser)
	if err != nil {
		return nil, s.mapError(err)
	}

	return users, nil
}

func scanUser(row pgx.CollectableRow) (entity.User, error) {
	var (
		u          entity.User
		kind, role string
		verifiedAt pgtype.Timestamptz
		approvedAt pgtype.Timestamptz
	)
	err := row.Scan(&u.ID, &kind, &u.Email, &u.FullName, &u.OrganizationName, &u.ContactNumber,
		&role, &u.Status, &u.AccreditationKey, &u.CreatedAt, &verifiedAt, &approvedAt)
	if err != nil {
		return entity.User{}, err
	}

	u.Kind = entity.ParseUserKind(kind)
	u.Role = entity.Role(role)
	u.VerifiedAt = optionalTime(verifiedAt)
	u.ApprovedAt = optionalTime(approvedAt)

	return u, nil
}

func optionalTime(ts pgtype.Timestamptz) *time.Time {
	if !ts.Valid {
		return nil
	}
	return &ts.Time
}
