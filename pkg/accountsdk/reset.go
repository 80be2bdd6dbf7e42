package accountsdk

import (
	"context"
	"net/http"
	"net/url"
)

// RequestReset asks the server to mail a reset code to email.
func (c *Client) RequestReset(ctx context.Context, email string) (*ResetFlow, error) {
	req, err := jsonRequest(http.MethodPost, "/api/v1/account/password/reset", "", map[string]string{"email": email})
	if err != nil {
		return nil, err
	}
	return c.flow(ctx, req)
}

// GetResetFlow reads the current state of a reset session.
func (c *Client) GetResetFlow(ctx context.Context, flowToken string) (*ResetFlow, error) {
	return c.flow(ctx, request{method: http.MethodGet, path: resetPath(flowToken)})
}

// ResendReset issues a fresh code for an existing session.
func (c *Client) ResendReset(ctx context.Context, flowToken string) (*ResetFlow, error) {
	return c.flow(ctx, request{method: http.MethodPost, path: resetPath(flowToken) + "/resend"})
}

// RedeemReset sets a new password using the mailed code.
func (c *Client) RedeemReset(ctx context.Context, flowToken, code, newPassword, confirmPassword string) (*RedeemResult, error) {
	req, err := jsonRequest(http.MethodPost, resetPath(flowToken)+"/redeem", "", map[string]string{
		"code":             code,
		"new_password":     newPassword,
		"confirm_password": confirmPassword,
	})
	if err != nil {
		return nil, err
	}

	var out RedeemResult
	msg, err := c.do(ctx, req, &out)
	if err != nil {
		return nil, err
	}
	out.Message = msg

	return &out, nil
}

func (c *Client) flow(ctx context.Context, req request) (*ResetFlow, error) {
	var out ResetFlow
	msg, err := c.do(ctx, req, &out)
	if err != nil {
		return nil, err
	}
	out.Message = msg

	return &out, nil
}

func resetPath(flowToken string) string {
	return "/api/v1/account/password/reset/" + url.PathEscape(flowToken)
}
