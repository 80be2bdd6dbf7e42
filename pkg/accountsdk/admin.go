package accountsdk

import (
	"context"
	"net/http"
	"net/url"
)

// Session carries the bearer token of a signed in account.
type Session struct {
	client *Client
	token  string
}

func (c *Client) Session(accessToken string) *Session {
	return &Session{client: c, token: accessToken}
}

func (s *Session) Token() string { return s.token }

func (s *Session) get(ctx context.Context, path string, out any) error {
	_, err := s.client.do(ctx, request{method: http.MethodGet, path: path, token: s.token}, out)
	return err
}

func (s *Session) send(ctx context.Context, method, path string, payload any) error {
	req, err := jsonRequest(method, path, s.token, payload)
	if err != nil {
		return err
	}
	_, err = s.client.do(ctx, req, nil)
	return err
}

// Me returns the profile of the signed in account.
func (s *Session) Me(ctx context.Context) (*User, error) {
	var out User
	if err := s.get(ctx, "/api/v1/account/me", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListActiveUsers lists active accounts of one kind.
func (s *Session) ListActiveUsers(ctx context.Context, kind string) ([]User, error) {
	var out []User
	err := s.get(ctx, "/api/v1/account/users?"+url.Values{"kind": {kind}}.Encode(), &out)
	return out, err
}

func (s *Session) UpdateUserRole(ctx context.Context, userID, role, kind string) error {
	return s.send(ctx, http.MethodPut, "/api/v1/account/users/"+url.PathEscape(userID)+"/role",
		map[string]string{"role": role, "kind": kind})
}

func (s *Session) DeleteUser(ctx context.Context, userID, kind string) error {
	path := "/api/v1/account/users/" + url.PathEscape(userID) + "?" + url.Values{"kind": {kind}}.Encode()
	return s.send(ctx, http.MethodDelete, path, nil)
}

// ListPendingUsers lists verified organizations waiting for a decision.
func (s *Session) ListPendingUsers(ctx context.Context) ([]User, error) {
	var out []User
	err := s.get(ctx, "/api/v1/account/approvals/pending", &out)
	return out, err
}

// ListVerifiedUsers lists approved organizations.
func (s *Session) ListVerifiedUsers(ctx context.Context) ([]User, error) {
	var out []User
	err := s.get(ctx, "/api/v1/account/approvals/verified", &out)
	return out, err
}

func (s *Session) ApproveUser(ctx context.Context, userID string) error {
	return s.moderate(ctx, userID, "approve")
}

func (s *Session) RejectUser(ctx context.Context, userID string) error {
	return s.moderate(ctx, userID, "reject")
}

func (s *Session) RevokeUser(ctx context.Context, userID string) error {
	return s.moderate(ctx, userID, "revoke")
}

func (s *Session) moderate(ctx context.Context, userID, action string) error {
	return s.send(ctx, http.MethodPost, "/api/v1/account/approvals/users/"+url.PathEscape(userID)+"/"+action, nil)
}

// AccreditationURL returns a short lived download link for the document an
// organization uploaded at registration.
func (s *Session) AccreditationURL(ctx context.Context, userID string) (*AccreditationLink, error) {
	var out AccreditationLink
	if err := s.get(ctx, "/api/v1/account/approvals/users/"+url.PathEscape(userID)+"/accreditation", &out); err != nil {
		return nil, err
	}
	return &out, nil
}
