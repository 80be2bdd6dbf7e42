package usecase

import (
	"context"

	"github.com/bloodsync/bloodsync/internal/pkg/goerror"
)

type GetResetSessionInput struct {
	FlowToken string `validate:"required,max=128"`
}

func (s *Usecase) GetResetSession(ctx context.Context, in GetResetSessionInput) (*ResetFlowOutput, error) {
	ctx, span := s.startSpan(ctx, "GetResetSession")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	sess, err := s.loadSession(ctx, in.FlowToken)
	if err != nil {
		return nil, err
	}

	return s.flowOutput(sess, s.clock.Now()), nil
}
