package inbound

import (
	"context"

	"github.com/bloodsync/bloodsync/internal/notification/usecase"
)

type uc interface {
	ConsumeAccountRegistered(ctx context.Context, in usecase.ConsumeAccountRegisteredInput) error
	ConsumeResetCodeIssued(ctx context.Context, in usecase.ConsumeResetCodeIssuedInput) error
	ConsumePasswordChanged(ctx context.Context, in usecase.ConsumePasswordChangedInput) error
	ConsumeAccountModerated(ctx context.Context, in usecase.ConsumeAccountModeratedInput) error
}
