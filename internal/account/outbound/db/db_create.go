package db

import (
	"context"

	"github.com/bloodsync/bloodsync/internal/account/entity"
)

// CreateUser stores an account that needs no email confirmation.
func (s *DB) CreateUser(ctx context.Context, user entity.NewUser) (err error) {
	ctx, span := s.startSpan(ctx, "CreateUser")
	defer func() { s.endSpan(span, err) }()

	if _, err = s.conn.Exec(ctx, queryCreateUser,
		user.ID, user.Kind.String(), user.Email, user.FullName, user.OrganizationName,
		user.ContactNumber, user.Role.String(), int16(user.Status), user.AccreditationKey, user.PasswordHash,
	); err != nil {
		return s.mapError(err)
	}

	return nil
}
