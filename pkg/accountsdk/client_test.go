package accountsdk

import (
	"encoding/json"
	"io"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_TrimsTrailingSlash(t *testing.T) {
	c := NewClient("https://bloodsync.test/")
	assert.Equal(t, "https://bloodsync.test", c.BaseURL)
	assert.NotNil(t, c.HTTPClient)
}

func TestClient_LoginAndSession(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/account/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "admin@bloodsync.test", body["email"])
		writeData(w, http.StatusOK, "", map[string]any{
			"access_token": "tok-1",
			"user":         map[string]string{"id": "42", "email": "admin@bloodsync.test", "kind": "staff", "role": "admin"},
		})
	})
	mux.HandleFunc("GET /api/v1/account/me", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		writeData(w, http.StatusOK, "", map[string]any{"id": "42", "kind": "staff", "email": "admin@bloodsync.test", "role": "admin"})
	})
	c := newTestClient(t, mux)

	sess, res, err := c.Login(t.Context(), "admin@bloodsync.test", "secret-pass")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", sess.Token())
	assert.Equal(t, Identity{ID: "42", Email: "admin@bloodsync.test", Kind: "staff", Role: "admin"}, res.User)

	me, err := sess.Me(t.Context())
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, me.ID)
}

func TestClient_APIError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/account/organizations", func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusUnprocessableEntity, "Invalid input", map[string]string{"email": "email must be a valid email address"})
	})
	mux.HandleFunc("POST /api/v1/account/verify", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "<html>bad gateway</html>")
	})
	c := newTestClient(t, mux)

	_, err := c.RegisterOrgUser(t.Context(), OrgRegistration{Email: "bad"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, "Invalid input", err.Error())
	assert.Equal(t, "email must be a valid email address", apiErr.Fields["email"])

	_, err = c.VerifyAccount(t.Context(), "tok")
	assert.True(t, IsStatus(err, http.StatusBadGateway))
	assert.Equal(t, "Bad Gateway", err.Error())
}

func TestClient_RetriesIdempotentReads(t *testing.T) {
	var gets, posts atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/account/password/reset/{token}", func(w http.ResponseWriter, _ *http.Request) {
		if gets.Add(1) == 1 {
			writeError(w, http.StatusServiceUnavailable, "try again", nil)
			return
		}
		writeData(w, http.StatusOK, "", map[string]any{"state": "ACTIVE", "code_length": 6})
	})
	mux.HandleFunc("POST /api/v1/account/password/reset/{token}/resend", func(w http.ResponseWriter, _ *http.Request) {
		posts.Add(1)
		writeError(w, http.StatusServiceUnavailable, "try again", nil)
	})
	c := newTestClient(t, mux)
	c.Retries = 1

	f, err := c.GetResetFlow(t.Context(), "flow-1")
	require.NoError(t, err)
	assert.Equal(t, StateActive, f.State)
	assert.EqualValues(t, 2, gets.Load())

	_, err = c.ResendReset(t.Context(), "flow-1")
	assert.True(t, IsStatus(err, http.StatusServiceUnavailable))
	assert.EqualValues(t, 1, posts.Load())
}

func TestClient_RegisterOrgUserMultipart(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/account/organizations", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "Red Cross Chapter", r.FormValue("organization_name"))
		assert.Equal(t, "org@example.com", r.FormValue("email"))

		file, hdr, err := r.FormFile("accreditation")
		require.NoError(t, err)
		defer file.Close()
		body, _ := io.ReadAll(file)
		assert.Equal(t, "license.pdf", hdr.Filename)
		assert.Equal(t, "%PDF-1.4", string(body))

		writeData(w, http.StatusCreated, "Registration successful. Please check your email to verify your account.", nil)
	})
	c := newTestClient(t, mux)

	msg, err := c.RegisterOrgUser(t.Context(), OrgRegistration{
		OrganizationName: "Red Cross Chapter",
		FullName:         "Ana Cruz",
		Email:            "org@example.com",
		Password:         "s3cret-pass",
		ConfirmPassword:  "s3cret-pass",
		Accreditation:    &Document{Filename: "license.pdf", Content: []byte("%PDF-1.4")},
	})
	require.NoError(t, err)
	assert.Contains(t, msg, "verify your account")
}

func TestSession_AdminOperations(t *testing.T) {
	var seen []string
	record := func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Method+" "+r.URL.RequestURI())
		w.WriteHeader(http.StatusNoContent)
	}
	users := []map[string]any{{"id": "7", "kind": "organization", "email": "org@example.com", "status": "pending"}}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/account/users", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, KindOrganization, r.URL.Query().Get("kind"))
		writeData(w, http.StatusOK, "", users)
	})
	mux.HandleFunc("GET /api/v1/account/approvals/pending", func(w http.ResponseWriter, _ *http.Request) {
		writeData(w, http.StatusOK, "", users)
	})
	mux.HandleFunc("GET /api/v1/account/approvals/verified", func(w http.ResponseWriter, _ *http.Request) {
		writeData(w, http.StatusOK, "", []any{})
	})
	mux.HandleFunc("GET /api/v1/account/approvals/users/{id}/accreditation", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, "", map[string]any{"url": "https://objects.test/" + r.PathValue("id")})
	})
	mux.HandleFunc("PUT /api/v1/account/users/{id}/role", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]string{"role": "admin", "kind": KindStaff}, body)
		record(w, r)
	})
	mux.HandleFunc("DELETE /api/v1/account/users/{id}", record)
	mux.HandleFunc("POST /api/v1/account/approvals/users/{id}/{action}", record)
	sess := newTestClient(t, mux).Session("tok")
	ctx := t.Context()

	active, err := sess.ListActiveUsers(ctx, KindOrganization)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "7", active[0].ID)

	pending, err := sess.ListPendingUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	verified, err := sess.ListVerifiedUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, verified)

	link, err := sess.AccreditationURL(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, "https://objects.test/7", link.URL)

	require.NoError(t, sess.UpdateUserRole(ctx, "9", "admin", KindStaff))
	require.NoError(t, sess.DeleteUser(ctx, "9", KindStaff))
	require.NoError(t, sess.ApproveUser(ctx, "7"))
	require.NoError(t, sess.RejectUser(ctx, "8"))
	require.NoError(t, sess.RevokeUser(ctx, "7"))

	assert.Equal(t, []string{
		"PUT /api/v1/account/users/9/role",
		"DELETE /api/v1/account/users/9?kind=staff",
		"POST /api/v1/account/approvals/users/7/approve",
		"POST /api/v1/account/approvals/users/8/reject",
		"POST /api/v1/account/approvals/users/7/revoke",
	}, seen)
}
