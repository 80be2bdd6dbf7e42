package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bloodsync/bloodsync/internal/account/entity"
	"github.com/bloodsync/bloodsync/internal/pkg/goerror"
	"github.com/bloodsync/bloodsync/internal/pkg/jwt"
	"github.com/bloodsync/bloodsync/internal/shared/constant"
)

// Me returns the account behind the caller's access token. Clients use its ID
// to recognise their own row instead of comparing email addresses.
func (s *Usecase) Me(ctx context.Context) (*entity.User, error) {
	ctx, span := s.startSpan(ctx, "Me")
	defer span.End()

	clm := jwt.GetAuth(ctx)
	if clm == nil {
		return nil, goerror.NewBusiness("Authentication required", goerror.CodeUnauthorized)
	}

	user, err := s.repoDB.GetUserByID(ctx, clm.UserID)
	if errors.Is(err, goerror.ErrNotFound) {
		return nil, goerror.NewBusiness("Account no longer exists", goerror.CodeUnauthorized)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get user by id", "user_id", clm.UserID, "error", err)
		return nil, goerror.NewServer(err)
	}
	if user.Status != entity.UserStatusActive {
		return nil, goerror.NewBusiness("Account is not active", goerror.CodeForbidden)
	}

	return user, nil
}

type AccreditationURLInput struct {
	UserID int64 `validate:"required,gt=0"`
}

type AccreditationURLOutput struct {
	URL       string
	ExpiresAt time.Time
}

// AccreditationURL presigns a short lived download link to the document an
// organization uploaded at registration.
func (s *Usecase) AccreditationURL(ctx context.Context, in AccreditationURLInput) (*AccreditationURLOutput, error) {
	ctx, span := s.startSpan(ctx, "AccreditationURL")
	defer span.End()

	if _, err := s.authorize(ctx, constant.PermAccountApprovals, constant.PermActRead); err != nil {
		return nil, err
	}

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	user, err := s.repoDB.GetUserByID(ctx, in.UserID)
	if errors.Is(err, goerror.ErrNotFound) {
		return nil, goerror.NewBusiness("User not found", goerror.CodeNotFound)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get user by id", "user_id", in.UserID, "error", err)
		return nil, goerror.NewServer(err)
	}
	if user.AccreditationKey == "" {
		return nil, goerror.NewBusiness("No accreditation document on file", goerror.CodeNotFound)
	}

	expiry := s.cfg.GetMinute("modules.account.accreditation.url_ttl_minutes")
	if expiry <= 0 {
		expiry = 10 * time.Minute
	}

	url, err := s.storage.PresignGet(ctx, s.cfg.GetString("modules.account.accreditation.bucket"), user.AccreditationKey, expiry)
	if err != nil {
		slog.ErrorContext(ctx, "failed to presign accreditation", "user_id", user.ID, "error", err)
		return nil, goerror.NewServer(err)
	}

	return &AccreditationURLOutput{URL: url, ExpiresAt: s.clock.Now().Add(expiry)}, nil
}
