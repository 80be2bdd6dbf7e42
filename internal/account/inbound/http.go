package inbound

import (
	"context"

	"github.com/bloodsync/bloodsync/internal/account/entity"
	"github.com/bloodsync/bloodsync/internal/account/usecase"
	"github.com/bloodsync/bloodsync/internal/pkg/router"
)

type uc interface {
	Login(ctx context.Context, in usecase.LoginInput) (*usecase.LoginOutput, error)
	Me(ctx context.Context) (*entity.User, error)

	RegisterOrgUser(ctx context.Context, in usecase.RegisterOrgUserInput) error
	VerifyAccount(ctx context.Context, in usecase.VerifyAccountInput) (*usecase.VerifyAccountOutput, error)

	RequestReset(ctx context.Context, in usecase.RequestResetInput) (*usecase.ResetFlowOutput, error)
	GetResetSession(ctx context.Context, in usecase.GetResetSessionInput) (*usecase.ResetFlowOutput, error)
	ResendResetCode(ctx context.Context, in usecase.ResendResetCodeInput) (*usecase.ResetFlowOutput, error)
	RedeemResetCode(ctx context.Context, in usecase.RedeemResetCodeInput) (*usecase.RedeemResetCodeOutput, error)

	ListActiveUsers(ctx context.Context, in usecase.ListActiveUsersInput) ([]entity.User, error)
	UpdateUserRole(ctx context.Context, in usecase.UpdateUserRoleInput) error
	DeleteUser(ctx context.Context, in usecase.DeleteUserInput) error

	ListPendingUsers(ctx context.Context) ([]entity.User, error)
	ListVerifiedUsers(ctx context.Context) ([]entity.User, error)
	ApproveUser(ctx context.Context, in usecase.ModerateUserInput) error
	RejectUser(ctx context.Context, in usecase.ModerateUserInput) error
	RevokeUser(ctx context.Context, in usecase.ModerateUserInput) error
	AccreditationURL(ctx context.Context, in usecase.AccreditationURLInput) (*usecase.AccreditationURLOutput, error)
}

// RegisterHTTPEndpoint mounts the account API. limit guards the anonymous
// endpoints that send mail or check codes; nil disables it.
func RegisterHTTPEndpoint(r *router.Router, uc uc, limit router.Middleware) {
	end := &HTTPEndpoint{uc: uc}

	// Authentication
	r.POST("/api/v1/account/login", end.Login, limit)
	r.GET("/api/v1/account/me", end.Me) // need authenticated

	// Registration
	r.POST("/api/v1/account/organizations", end.RegisterOrgUser, limit)
	r.POST("/api/v1/account/verify", end.VerifyAccount, limit)

	// Password reset
	r.POST("/api/v1/account/password/reset", end.RequestReset, limit)
	r.GET("/api/v1/account/password/reset/:flow_token", end.GetResetSession)
	r.POST("/api/v1/account/password/reset/:flow_token/resend", end.ResendResetCode, limit)
	r.POST("/api/v1/account/password/reset/:flow_token/redeem", end.RedeemResetCode, limit)

	// User directory (need authenticated & authorization)
	r.GET("/api/v1/account/users", end.ListActiveUsers)
	r.PUT("/api/v1/account/users/:id/role", end.UpdateUserRole)
	r.DELETE("/api/v1/account/users/:id", end.DeleteUser)

	// Approvals (need authenticated & authorization)
	r.GET("/api/v1/account/approvals/pending", end.ListPendingUsers)
	r.GET("/api/v1/account/approvals/verified", end.ListVerifiedUsers)
	r.POST("/api/v1/account/approvals/users/:id/approve", end.ApproveUser)
	r.POST("/api/v1/account/approvals/users/:id/reject", end.RejectUser)
	r.POST("/api/v1/account/approvals/users/:id/revoke", end.RevokeUser)
	r.GET("/api/v1/account/approvals/users/:id/accreditation", end.AccreditationURL)
}
