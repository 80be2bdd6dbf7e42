package inbound

import (
	"net/http"
	"time"

	"github.com/bloodsync/bloodsync/internal/account/entity"
	"github.com/bloodsync/bloodsync/internal/account/usecase"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string       `json:"access_token"`
	User        UserIdentity `json:"user"`
}

// UserIdentity is what a client keeps to recognise the signed in account.
type UserIdentity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Kind  string `json:"kind"`
	Role  string `json:"role"`
}

type RegisterOrgUserResponse struct{}

func (RegisterOrgUserResponse) Message() string {
	return "Registration successful. Please check your email to verify your account."
}

func (RegisterOrgUserResponse) StatusCode() int { return http.StatusCreated }

type VerifyAccountRequest struct {
	Token string `json:"token"`
}

type VerifyAccountResponse struct {
	Status           string `json:"status"`
	AwaitingApproval bool   `json:"awaiting_approval"`
}

func (r VerifyAccountResponse) Message() string {
	if r.AwaitingApproval {
		return "Email verified. An administrator will review your account."
	}
	return "Email verified. You can now sign in."
}

type RequestResetRequest struct {
	Email string `json:"email"`
}

// ResetFlowResponse mirrors the server side reset session. expires_in and
// resend_in are whole seconds relative to the response.
type ResetFlowResponse struct {
	FlowToken  string    `json:"flow_token,omitempty"`
	Email      string    `json:"email"`
	State      string    `json:"state"`
	CodeLength int       `json:"code_length"`
	IssuedAt   time.Time `json:"issued_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	ExpiresIn  int64     `json:"expires_in"`
	ResendIn   int64     `json:"resend_in"`

	message string
}

func (r ResetFlowResponse) Message() string { return r.message }

func newResetFlowResponse(out *usecase.ResetFlowOutput, message string) ResetFlowResponse {
	return ResetFlowResponse{
		FlowToken:  out.FlowToken,
		Email:      out.Email,
		State:      string(out.State),
		CodeLength: out.CodeLength,
		IssuedAt:   out.IssuedAt,
		ExpiresAt:  out.ExpiresAt,
		ExpiresIn:  ceilSeconds(out.ExpiresIn),
		ResendIn:   ceilSeconds(out.ResendIn),
		message:    message,
	}
}

// ceilSeconds rounds up so that a client never enables a control early.
func ceilSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64((d + time.Second - 1) / time.Second)
}

type RedeemResetCodeRequest struct {
	Code            string `json:"code"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

type RedeemResetCodeResponse struct {
	RedirectAfter int64 `json:"redirect_after"`
}

func (RedeemResetCodeResponse) Message() string {
	return "Password has been reset. You can now sign in with your new password."
}

type User struct {
	ID               string     `json:"id"`
	Kind             string     `json:"kind"`
	Email            string     `json:"email"`
	FullName         string     `json:"full_name"`
	OrganizationName string     `json:"organization_name,omitempty"`
	ContactNumber    string     `json:"contact_number,omitempty"`
	Role             string     `json:"role"`
	Status           string     `json:"status"`
	HasAccreditation bool       `json:"has_accreditation"`
	CreatedAt        time.Time  `json:"created_at"`
	VerifiedAt       *time.Time `json:"verified_at,omitempty"`
	ApprovedAt       *time.Time `json:"approved_at,omitempty"`
}

type UserListResponse []User

func (r UserListResponse) Meta() map[string]any {
	return map[string]any{"total": len(r)}
}

type UpdateUserRoleRequest struct {
	Role string `json:"role"`
	Kind string `json:"kind"`
}

type AccreditationURLResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

func toUser(u entity.User) User {
	return User{
		ID:               formatID(u.ID),
		Kind:             u.Kind.String(),
		Email:            u.Email,
		FullName:         u.FullName,
		OrganizationName: u.OrganizationName,
		ContactNumber:    u.ContactNumber,
		Role:             u.Role.String(),
		Status:           u.Status.String(),
		HasAccreditation: u.AccreditationKey != "",
		CreatedAt:        u.CreatedAt,
		VerifiedAt:       u.VerifiedAt,
		ApprovedAt:       u.ApprovedAt,
	}
}
