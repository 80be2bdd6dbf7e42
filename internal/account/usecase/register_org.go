package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"path"
	"strconv"
	"strings"

	"github.com/bloodsync/bloodsync/internal/account/entity"
	"github.com/bloodsync/bloodsync/internal/pkg/goerror"
	"github.com/bloodsync/bloodsync/internal/pkg/storage"
)

var allowedAccreditationTypes = map[string]struct{}{
	"application/pdf": {},
	"image/png":       {},
	"image/jpeg":      {},
}

type Document struct {
	Reader      io.Reader
	Filename    string
	ContentType string
}

type RegisterOrgUserInput struct {
	OrganizationName string `validate:"required,min=3,max=150"`
	FullName         string `validate:"required,min=3,max=100,alphaspace"`
	Email            string `validate:"required,mailbox"`
	ContactNumber    string `validate:"omitempty,digits,min=7,max=15"`
	Password         string `validate:"required,password"`
	ConfirmPassword  string `validate:"required,eqfield=Password"`
	Accreditation    *Document
}

// RegisterOrgUser creates an unverified organization account and mails an
// activation link. An accreditation document, when given, is stored first.
func (s *Usecase) RegisterOrgUser(ctx context.Context, in RegisterOrgUserInput) error {
	ctx, span := s.startSpan(ctx, "RegisterOrgUser")
	defer span.End()

	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	in.FullName = strings.TrimSpace(in.FullName)
	in.OrganizationName = strings.TrimSpace(in.OrganizationName)
	in.ContactNumber = strings.TrimSpace(in.ContactNumber)

	if err := s.validator.Validate(in); err != nil {
		return goerror.NewInvalidInput(err)
	}

	_, err := s.repoDB.GetUserCredentialByEmail(ctx, in.Email)
	if err == nil {
		return goerror.NewBusiness("Email already registered", goerror.CodeConflict)
	}
	if !errors.Is(err, goerror.ErrNotFound) {
		slog.ErrorContext(ctx, "failed to repo get user credential by email", "error", err)
		return goerror.NewServer(err)
	}

	hashed, err := s.password.Hash(in.Password)
	if err != nil {
		slog.ErrorContext(ctx, "failed to hash password", "error", err)
		return goerror.NewServer(err)
	}

	user := entity.NewUser{
		ID:               s.uid.Generate(),
		Kind:             entity.UserKindOrganization,
		Email:            in.Email,
		FullName:         in.FullName,
		OrganizationName: in.OrganizationName,
		ContactNumber:    in.ContactNumber,
		Role:             entity.UserKindOrganization.DefaultRole(),
		Status:           entity.UserStatusUnverified,
		PasswordHash:     string(hashed),
	}

	if in.Accreditation != nil {
		key, err := s.uploadAccreditation(ctx, user.ID, in.Accreditation)
		if err != nil {
			return err
		}
		user.AccreditationKey = key
	}

	token := s.token.Generate()
	tokenHash, err := s.digest(token)
	if err != nil {
		slog.ErrorContext(ctx, "failed to hash activation token", "error", err)
		return goerror.NewServer(err)
	}

	act := entity.Activation{
		ID:        s.uid.Generate(),
		UserID:    user.ID,
		Token:     tokenHash,
		ExpiresAt: s.clock.Now().Add(s.cfg.GetHour("modules.account.activation_ttl_hours")),
	}

	if err := s.repoDB.NewRegistration(ctx, user, act); err != nil {
		s.discardAccreditation(ctx, user.AccreditationKey)
		if errors.Is(err, goerror.ErrConflict) {
			return goerror.NewBusiness("Email already registered", goerror.CodeConflict)
		}
		slog.ErrorContext(ctx, "failed to repo new registration", "user_id", user.ID, "error", err)
		return goerror.NewServer(err)
	}

	if err := s.repoMessaging.PublishAccountRegistered(ctx, AccountRegisteredEvent{
		UserID:           user.ID,
		Email:            user.Email,
		FullName:         user.FullName,
		OrganizationName: user.OrganizationName,
		ActivationToken:  token,
	}); err != nil {
		slog.ErrorContext(ctx, "failed to publish account registered", "user_id", user.ID, "error", err)
	}

	return nil
}

func (s *Usecase) uploadAccreditation(ctx context.Context, userID int64, doc *Document) (string, error) {
	ct := strings.ToLower(strings.TrimSpace(doc.ContentType))
	if _, ok := allowedAccreditationTypes[ct]; !ok {
		return "", goerror.NewInvalidInput(nil, "accreditation", "accreditation must be a PDF, PNG or JPEG file")
	}

	limit := s.cfg.GetInt64("modules.account.accreditation.max_bytes")
	if limit <= 0 {
		limit = 5 << 20
	}

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(doc.Reader, limit+1))
	if err != nil {
		slog.WarnContext(ctx, "failed to read accreditation upload", "error", err)
		return "", goerror.NewInvalidFormat("Unable to read accreditation file")
	}
	if n > limit {
		return "", goerror.NewInvalidInput(nil, "accreditation", "accreditation file is too large")
	}
	if n == 0 {
		return "", goerror.NewInvalidInput(nil, "accreditation", "accreditation file is empty")
	}

	name := path.Base(strings.ReplaceAll(doc.Filename, "\\", "/"))
	if name == "." || name == "/" {
		name = "document"
	}
	key := "accreditation/" + strconv.FormatInt(userID, 10) + "/" + name
	bucket := s.cfg.GetString("modules.account.accreditation.bucket")

	if _, err := s.storage.PutObject(ctx, bucket, key, &buf, storage.PutOptions{
		Size:        n,
		ContentType: ct,
		Metadata:    map[string]string{"user-id": strconv.FormatInt(userID, 10)},
	}); err != nil {
		slog.ErrorContext(ctx, "failed to storage put accreditation", "user_id", userID, "error", err)
		return "", goerror.NewServer(err)
	}

	return key, nil
}

// discardAccreditation removes an orphaned upload in the background.
func (s *Usecase) discardAccreditation(ctx context.Context, key string) {
	if key == "" {
		return
	}

	bucket := s.cfg.GetString("modules.account.accreditation.bucket")
	s.goroutine.Go(context.WithoutCancel(ctx), func(ctx context.Context) error {
		if err := s.storage.DeleteObject(ctx, bucket, key); err != nil {
			slog.WarnContext(ctx, "failed to delete orphaned accreditation", "key", key, "error", err)
			return err
		}
		return nil
	})
}
