package inbound

import (
	"strconv"
	"strings"

	"github.com/bloodsync/bloodsync/internal/account/entity"
	"github.com/bloodsync/bloodsync/internal/account/usecase"
	"github.com/bloodsync/bloodsync/internal/pkg/goerror"
	"github.com/bloodsync/bloodsync/internal/pkg/router"
	"github.com/samber/lo"
)

// HTTPEndpoint exposes HTTP handlers for accounts, password reset and approvals.
type HTTPEndpoint struct {
	uc uc
}

// Login authenticates a user and returns an access token.
// @Summary Authenticate user
// @Description Validates credentials of an active account and returns an access token together with the caller's identity.
// @Tags Account, Authentication
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login payload"
// @Success 200 {object} router.successResponse{data=LoginResponse} "Authentication result"
// @Failure 400 {object} router.errorResponse "Invalid request body"
// @Failure 401 {object} router.errorResponse "Invalid credentials"
// @Failure 403 {object} router.errorResponse "Account not active"
// @Failure 422 {object} router.errorResponse "Validation error"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/account/login [post]
func (h *HTTPEndpoint) Login(r *router.Request) (any, error) {
	var req LoginRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.Login(r.Context(), usecase.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return nil, err
	}

	return LoginResponse{
		AccessToken: resp.AccessToken,
		User: UserIdentity{
			ID:    formatID(resp.UserID),
			Email: resp.Email,
			Kind:  resp.Kind.String(),
			Role:  resp.Role.String(),
		},
	}, nil
}

// Me returns the signed in account.
// @Summary Current account
// @Tags Account, Authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} router.successResponse{data=User} "Current account"
// @Failure 401 {object} router.errorResponse "Unauthorized"
// @Failure 403 {object} router.errorResponse "Account not active"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/account/me [get]
func (h *HTTPEndpoint) Me(r *router.Request) (any, error) {
	user, err := h.uc.Me(r.Context())
	if err != nil {
		return nil, err
	}

	return toUser(*user), nil
}

// RegisterOrgUser registers a partner organization account.
// @Summary Register organization
// @Description Accepts JSON without a document, or multipart/form-data with the text fields first followed by the "accreditation" file (PDF, PNG or JPEG).
// @Tags Account, Registration
// @Accept json,mpfd
// @Produce json
// @Param organization_name formData string true "Organization name"
// @Param full_name formData string true "Contact person"
// @Param email formData string true "Email"
// @Param contact_number formData string false "Contact number"
// @Param password formData string true "Password"
// @Param confirm_password formData string true "Password confirmation"
// @Param accreditation formData file false "Accreditation document"
// @Success 201 {object} router.successResponse "Registration accepted"
// @Failure 400 {object} router.errorResponse "Invalid request body"
// @Failure 409 {object} router.errorResponse "Email already registered"
// @Failure 422 {object} router.errorResponse "Validation error"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/account/organizations [post]
func (h *HTTPEndpoint) RegisterOrgUser(r *router.Request) (any, error) {
	in, cleanup, err := decodeRegistration(r)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	if err := h.uc.RegisterOrgUser(r.Context(), in); err != nil {
		return nil, err
	}

	return RegisterOrgUserResponse{}, nil
}

func decodeRegistration(r *router.Request) (usecase.RegisterOrgUserInput, func(), error) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		var req struct {
			OrganizationName string `json:"organization_name"`
			FullName         string `json:"full_name"`
			Email            string `json:"email"`
			ContactNumber    string `json:"contact_number"`
			Password         string `json:"password"`
			ConfirmPassword  string `json:"confirm_password"`
		}
		if err := r.DecodeBody(&req); err != nil {
			return usecase.RegisterOrgUserInput{}, nil, err
		}

		return usecase.RegisterOrgUserInput{
			OrganizationName: req.OrganizationName,
			FullName:         req.FullName,
			Email:            req.Email,
			ContactNumber:    req.ContactNumber,
			Password:         req.Password,
			ConfirmPassword:  req.ConfirmPassword,
		}, func() {}, nil
	}

	fields := map[string]string{}
	file, err := r.StreamFile("accreditation", fields)
	if err != nil {
		return usecase.RegisterOrgUserInput{}, nil, err
	}

	return usecase.RegisterOrgUserInput{
		OrganizationName: fields["organization_name"],
		FullName:         fields["full_name"],
		Email:            fields["email"],
		ContactNumber:    fields["contact_number"],
		Password:         fields["password"],
		ConfirmPassword:  fields["confirm_password"],
		Accreditation: &usecase.Document{
			Reader:      file,
			Filename:    file.Filename,
			ContentType: file.ContentType,
		},
	}, func() { _ = file.Close() }, nil
}

// VerifyAccount confirms the email address of a registration.
// @Summary Verify account
// @Tags Account, Registration
// @Accept json
// @Produce json
// @Param request body VerifyAccountRequest true "Activation token"
// @Success 200 {object} router.successResponse{data=VerifyAccountResponse} "Verification result"
// @Failure 401 {object} router.errorResponse "Invalid token"
// @Failure 409 {object} router.errorResponse "Already verified"
// @Failure 410 {object} router.errorResponse "Token expired"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/account/verify [post]
func (h *HTTPEndpoint) VerifyAccount(r *router.Request) (any, error) {
	var req VerifyAccountRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.VerifyAccount(r.Context(), usecase.VerifyAccountInput{Token: req.Token})
	if err != nil {
		return nil, err
	}

	return VerifyAccountResponse{
		Status:           resp.Status.String(),
		AwaitingApproval: resp.AwaitingApproval,
	}, nil
}

// RequestReset starts a password reset and mails a one-time code.
// @Summary Request reset code
// @Description Always answers with a flow for well formed addresses, whether or not an account exists.
// @Tags Account, Password
// @Accept json
// @Produce json
// @Param request body RequestResetRequest true "Email"
// @Success 200 {object} router.successResponse{data=ResetFlowResponse} "Reset flow"
// @Failure 422 {object} router.errorResponse "Validation error"
// @Failure 429 {object} router.errorResponse "Too many requests"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/account/password/reset [post]
func (h *HTTPEndpoint) RequestReset(r *router.Request) (any, error) {
	var req RequestResetRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.RequestReset(r.Context(), usecase.RequestResetInput{Email: req.Email})
	if err != nil {
		return nil, err
	}

	return newResetFlowResponse(resp, "If an account with that email exists, we have sent a reset code."), nil
}

// GetResetSession reports the state of a reset flow.
// @Summary Reset flow state
// @Tags Account, Password
// @Produce json
// @Param flow_token path string true "Flow token"
// @Success 200 {object} router.successResponse{data=ResetFlowResponse} "Reset flow"
// @Failure 404 {object} router.errorResponse "Flow not found"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/account/password/reset/{flow_token} [get]
func (h *HTTPEndpoint) GetResetSession(r *router.Request) (any, error) {
	resp, err := h.uc.GetResetSession(r.Context(), usecase.GetResetSessionInput{FlowToken: r.GetParam("flow_token")})
	if err != nil {
		return nil, err
	}

	return newResetFlowResponse(resp, "Request has been processed"), nil
}

// ResendResetCode mails a fresh code once the cooldown has passed.
// @Summary Resend reset code
// @Tags Account, Password
// @Produce json
// @Param flow_token path string true "Flow token"
// @Success 200 {object} router.successResponse{data=ResetFlowResponse} "Reset flow"
// @Failure 404 {object} router.errorResponse "Flow not found"
// @Failure 429 {object} router.errorResponse "Cooldown still running"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/account/password/reset/{flow_token}/resend [post]
func (h *HTTPEndpoint) ResendResetCode(r *router.Request) (any, error) {
	resp, err := h.uc.ResendResetCode(r.Context(), usecase.ResendResetCodeInput{FlowToken: r.GetParam("flow_token")})
	if err != nil {
		return nil, err
	}

	return newResetFlowResponse(resp, "A new reset code has been sent."), nil
}

// RedeemResetCode sets a new password using the mailed code.
// @Summary Redeem reset code
// @Tags Account, Password
// @Accept json
// @Produce json
// @Param flow_token path string true "Flow token"
// @Param request body RedeemResetCodeRequest true "Code and new password"
// @Success 200 {object} router.successResponse{data=RedeemResetCodeResponse} "Password changed"
// @Failure 401 {object} router.errorResponse "Invalid code"
// @Failure 404 {object} router.errorResponse "Flow not found"
// @Failure 409 {object} router.errorResponse "Code already used"
// @Failure 410 {object} router.errorResponse "Code expired"
// @Failure 422 {object} router.errorResponse "Validation error"
// @Failure 429 {object} router.errorResponse "Too many attempts"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/account/password/reset/{flow_token}/redeem [post]
func (h *HTTPEndpoint) RedeemResetCode(r *router.Request) (any, error) {
	var req RedeemResetCodeRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.RedeemResetCode(r.Context(), usecase.RedeemResetCodeInput{
		FlowToken:       r.GetParam("flow_token"),
		Code:            req.Code,
		NewPassword:     req.NewPassword,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		return nil, err
	}

	return RedeemResetCodeResponse{RedirectAfter: ceilSeconds(resp.RedirectAfter)}, nil
}

// ListActiveUsers lists active accounts of one kind.
// @Summary List active users
// @Tags Account, Users
// @Produce json
// @Security BearerAuth
// @Param kind query string true "staff or organization"
// @Success 200 {object} router.successResponse{data=[]User} "Users"
// @Failure 401 {object} router.errorResponse "Unauthorized"
// @Failure 403 {object} router.errorResponse "Forbidden"
// @Failure 422 {object} router.errorResponse "Validation error"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/account/users [get]
func (h *HTTPEndpoint) ListActiveUsers(r *router.Request) (any, error) {
	users, err := h.uc.ListActiveUsers(r.Context(), usecase.ListActiveUsersInput{Kind: r.GetQuery("kind")})
	if err != nil {
		return nil, err
	}

	return UserListResponse(lo.Map(users, func(u entity.User, _ int) User { return toUser(u) })), nil
}

// UpdateUserRole changes the role of an account.
// @Summary Update user role
// @Tags Account, Users
// @Accept json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param request body UpdateUserRoleRequest true "Role"
// @Success 204 "No Content"
// @Failure 401 {object} router.errorResponse "Unauthorized"
// @Failure 403 {object} router.errorResponse "Forbidden"
// @Failure 404 {object} router.errorResponse "User not found"
// @Failure 422 {object} router.errorResponse "Validation error"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/account/users/{id}/role [put]
func (h *HTTPEndpoint) UpdateUserRole(r *router.Request) (any, error) {
	id, err := pathID(r)
	if err != nil {
		return nil, err
	}

	var req UpdateUserRoleRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	return nil, h.uc.UpdateUserRole(r.Context(), usecase.UpdateUserRoleInput{
		UserID: id,
		Role:   req.Role,
		Kind:   req.Kind,
	})
}

// DeleteUser removes an account.
// @Summary Delete user
// @Tags Account, Users
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param kind query string true "staff or organization"
// @Success 204 "No Content"
// @Failure 401 {object} router.errorResponse "Unauthorized"
// @Failure 403 {object} router.errorResponse "Forbidden"
// @Failure 404 {object} router.errorResponse "User not found"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/account/users/{id} [delete]
func (h *HTTPEndpoint) DeleteUser(r *router.Request) (any, error) {
	id, err := pathID(r)
	if err != nil {
		return nil, err
	}

	return nil, h.uc.DeleteUser(r.Context(), usecase.DeleteUserInput{UserID: id, Kind: r.GetQuery("kind")})
}

// ListPendingUsers lists organizations waiting for approval.
// @Summary List pending organizations
// @Tags Account, Approvals
// @Produce json
// @Security BearerAuth
// @Success 200 {object} router.successResponse{data=[]User} "Users"
// @Failure 401 {object} router.errorResponse "Unauthorized"
// @Failure 403 {object} router.errorResponse "Forbidden"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/account/approvals/pending [get]
func (h *HTTPEndpoint) ListPendingUsers(r *router.Request) (any, error) {
	users, err := h.uc.ListPendingUsers(r.Context())
	if err != nil {
		return nil, err
	}

	return UserListResponse(lo.Map(users, func(u entity.User, _ int) User { return toUser(u) })), nil
}

// ListVerifiedUsers lists approved organizations.
// @Summary List approved organizations
// @Tags Account, Approvals
// @Produce json
// @Security BearerAuth
// @Success 200 {object} router.successResponse{data=[]User} "Users"
// @Failure 401 {object} router.errorResponse "Unauthorized"
// @Failure 403 {object} router.errorResponse "Forbidden"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/account/approvals/verified [get]
func (h *HTTPEndpoint) ListVerifiedUsers(r *router.Request) (any, error) {
	users, err := h.uc.ListVerifiedUsers(r.Context())
	if err != nil {
		return nil, err
	}

	return UserListResponse(lo.Map(users, func(u entity.User, _ int) User { return toUser(u) })), nil
}

// ApproveUser activates a pending organization.
// @Summary Approve organization
// @Tags Account, Approvals
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 204 "No Content"
// @Failure 401 {object} router.errorResponse "Unauthorized"
// @Failure 403 {object} router.errorResponse "Forbidden"
// @Failure 404 {object} router.errorResponse "User not found"
// @Failure 409 {object} router.errorResponse "Not pending"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/account/approvals/users/{id}/approve [post]
func (h *HTTPEndpoint) ApproveUser(r *router.Request) (any, error) {
	id, err := pathID(r)
	if err != nil {
		return nil, err
	}

	return nil, h.uc.ApproveUser(r.Context(), usecase.ModerateUserInput{UserID: id})
}

// RejectUser declines a pending organization.
// @Summary Reject organization
// @Tags Account, Approvals
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 204 "No Content"
// @Failure 401 {object} router.errorResponse "Unauthorized"
// @Failure 403 {object} router.errorResponse "Forbidden"
// @Failure 404 {object} router.errorResponse "User not found"
// @Failure 409 {object} router.errorResponse "Not pending"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/account/approvals/users/{id}/reject [post]
func (h *HTTPEndpoint) RejectUser(r *router.Request) (any, error) {
	id, err := pathID(r)
	if err != nil {
		return nil, err
	}

	return nil, h.uc.RejectUser(r.Context(), usecase.ModerateUserInput{UserID: id})
}

// RevokeUser withdraws an approved organization.
// @Summary Revoke organization
// @Tags Account, Approvals
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 204 "No Content"
// @Failure 401 {object} router.errorResponse "Unauthorized"
// @Failure 403 {object} router.errorResponse "Forbidden"
// @Failure 404 {object} router.errorResponse "User not found"
// @Failure 409 {object} router.errorResponse "Not active"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/account/approvals/users/{id}/revoke [post]
func (h *HTTPEndpoint) RevokeUser(r *router.Request) (any, error) {
	id, err := pathID(r)
	if err != nil {
		return nil, err
	}

	return nil, h.uc.RevokeUser(r.Context(), usecase.ModerateUserInput{UserID: id})
}

// AccreditationURL returns a presigned link to an organization's document.
// @Summary Accreditation download link
// @Tags Account, Approvals
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} router.successResponse{data=AccreditationURLResponse} "Presigned URL"
// @Failure 401 {object} router.errorResponse "Unauthorized"
// @Failure 403 {object} router.errorResponse "Forbidden"
// @Failure 404 {object} router.errorResponse "No document"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/account/approvals/users/{id}/accreditation [get]
func (h *HTTPEndpoint) AccreditationURL(r *router.Request) (any, error) {
	id, err := pathID(r)
	if err != nil {
		return nil, err
	}

	resp, err := h.uc.AccreditationURL(r.Context(), usecase.AccreditationURLInput{UserID: id})
	if err != nil {
		return nil, err
	}

	return AccreditationURLResponse{URL: resp.URL, ExpiresAt: resp.ExpiresAt}, nil
}

func pathID(r *router.Request) (int64, error) {
	id, err := r.GetParamInt64("id")
	if err != nil || id <= 0 {
		return 0, goerror.NewInvalidFormat("Invalid user id")
	}
	return id, nil
}

// IDs are strings on the wire; snowflakes overflow JavaScript numbers.
func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
