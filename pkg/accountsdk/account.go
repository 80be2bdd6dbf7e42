package accountsdk

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
)

// Login signs in and returns a Session bound to the issued access token.
func (c *Client) Login(ctx context.Context, email, password string) (*Session, *LoginResult, error) {
	req, err := jsonRequest(http.MethodPost, "/api/v1/account/login", "", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, nil, err
	}

	var out LoginResult
	if _, err := c.do(ctx, req, &out); err != nil {
		return nil, nil, err
	}

	return c.Session(out.AccessToken), &out, nil
}

// RegisterOrgUser submits an organization registration. With an
// accreditation document the request is sent as multipart form data.
func (c *Client) RegisterOrgUser(ctx context.Context, in OrgRegistration) (string, error) {
	path := "/api/v1/account/organizations"
	if in.Accreditation == nil {
		req, err := jsonRequest(http.MethodPost, path, "", in)
		if err != nil {
			return "", err
		}
		return c.do(ctx, req, nil)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fields := [][2]string{
		{"organization_name", in.OrganizationName},
		{"full_name", in.FullName},
		{"email", in.Email},
		{"contact_number", in.ContactNumber},
		{"password", in.Password},
		{"confirm_password", in.ConfirmPassword},
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return "", fmt.Errorf("failed to write form field %s: %w", f[0], err)
		}
	}
	fw, err := mw.CreateFormFile("accreditation", in.Accreditation.Filename)
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := fw.Write(in.Accreditation.Content); err != nil {
		return "", fmt.Errorf("failed to write form file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("failed to close form: %w", err)
	}

	return c.do(ctx, request{
		method:      http.MethodPost,
		path:        path,
		body:        &buf,
		contentType: mw.FormDataContentType(),
	}, nil)
}

// VerifyAccount redeems the token from an activation email.
func (c *Client) VerifyAccount(ctx context.Context, token string) (*VerifyResult, error) {
	req, err := jsonRequest(http.MethodPost, "/api/v1/account/verify", "", map[string]string{"token": token})
	if err != nil {
		return nil, err
	}

	var out VerifyResult
	msg, err := c.do(ctx, req, &out)
	if err != nil {
		return nil, err
	}
	out.Message = msg

	return &out, nil
}
