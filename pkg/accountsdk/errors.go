package accountsdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Local validation errors. They are returned before any request is sent.
var (
	ErrInvalidEmail     = errors.New("accountsdk: enter a valid email address")
	ErrInvalidCode      = errors.New("accountsdk: enter the full reset code")
	ErrPasswordTooShort = errors.New("accountsdk: password is too short")
	ErrPasswordMismatch = errors.New("accountsdk: passwords do not match")
	ErrNoResetSession   = errors.New("accountsdk: no password reset in progress")
	ErrResetExpired     = errors.New("accountsdk: reset code has expired, request a new one")
	ErrCooldown         = errors.New("accountsdk: please wait before requesting another code")
	ErrBusy             = errors.New("accountsdk: a request is already in progress")
)

// APIError is a non 2xx answer from the server. Message is meant to be shown
// to the user as is.
type APIError struct {
	StatusCode int               `json:"-"`
	Message    string            `json:"message"`
	Fields     map[string]string `json:"error,omitempty"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("accountsdk: request failed with status %d", e.StatusCode)
	}
	return e.Message
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}

// IsExpired reports whether the server rejected a request because the reset
// code or verification link ran out.
func IsExpired(err error) bool {
	return errors.Is(err, ErrResetExpired) || IsStatus(err, http.StatusGone)
}

func parseErrorResponse(resp *http.Response, body []byte) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
