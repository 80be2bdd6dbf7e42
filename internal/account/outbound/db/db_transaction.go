package db

import (
	"context"
	"errors"
	"log/slog"

	"github.com/bloodsync/bloodsync/internal/account/entity"
	"github.com/jackc/pgx/v5"
)

const queryCreateUser = `INSERT INTO account_users
	(id, kind, email, full_name, organization_name, contact_number, role, status, accreditation_key, password, updated_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $1)`

const queryCreateActivation = `INSERT INTO account_activations (id, user_id, token, expires_at)
VALUES ($1, $2, $3, $4)`

const queryUseActivation = `UPDATE account_activations
SET used_at = now()
WHERE id = $1 AND used_at IS NULL`

const queryVerifyUser = `UPDATE account_users
SET status = $4,
	verified_at = now(),
	approved_at = CASE WHEN $4 = 3 THEN now() ELSE approved_at END,
	updated_at = now(),
	updated_by = $5
WHERE id = $1 AND kind = $2 AND status = $3 AND deleted_at IS NULL`

// NewRegistration stores the user and its activation atomically.
func (s *DB) NewRegistration(ctx context.Context, user entity.NewUser, act entity.Activation) (err error) {
	ctx, span := s.startSpan(ctx, "NewRegistration")
	defer func() { s.endSpan(span, err) }()

	err = s.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, queryCreateUser,
			user.ID, user.Kind.String(), user.Email, user.FullName, user.OrganizationName,
			user.ContactNumber, user.Role.String(), int16(user.Status), user.AccreditationKey, user.PasswordHash,
		); err != nil {
			return s.mapError(err)
		}

		if _, err := tx.Exec(ctx, queryCreateActivation, act.ID, act.UserID, act.Token, act.ExpiresAt); err != nil {
			return s.mapError(err)
		}

		return nil
	})
	return err
}

// VerifyRegistration consumes the activation and moves the user out of
// Unverified. It returns goerror.ErrNotFound when either was already used.
func (s *DB) VerifyRegistration(ctx context.Context, activationID int64, change entity.StatusChange) (err error) {
	ctx, span := s.startSpan(ctx, "VerifyRegistration")
	defer func() { s.endSpan(span, err) }()

	err = s.inTx(ctx, func(tx pgx.Tx) error {
		if err := s.affected(tx.Exec(ctx, queryUseActivation, activationID)); err != nil {
			return err
		}

		return s.affected(tx.Exec(ctx, queryVerifyUser,
			change.UserID, change.Kind.String(), int16(change.From), int16(change.To), change.By))
	})
	return err
}

func (s *DB) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.conn.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if rErr := tx.Rollback(ctx); rErr != nil && !errors.Is(rErr, pgx.ErrTxClosed) {
			slog.ErrorContext(ctx, "failed to rollback", "error", rErr)
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return s.mapError(err)
	}

	return nil
}
