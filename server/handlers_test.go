package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-users-service/internal/config"
	"github.com/jrsteele09/go-users-service/server"
	"github.com/jrsteele09/go-users-service/token"
	"github.com/jrsteele09/go-users-service/users"
	"github.com/jrsteele09/go-users-service/users/repofake"
)

const testSecret = "test-secret-1234"

// testFixture holds the composed server and its collaborators.
type testFixture struct {
	repo   *repofake.FakeUserRepo
	codec  *token.Codec
	server *server.Server
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	cfg := config.Config{
		Env:             "test",
		SessionSecret:   testSecret,
		SessionLifetime: time.Hour,
	}
	repo := repofake.NewFakeUserRepo()

	return &testFixture{
		repo:   repo,
		codec:  token.NewCodec(cfg.SessionSecret, cfg.SessionLifetime),
		server: server.New(cfg, repo),
	}
}

// createTestUser stores a user with a hashed password directly in the repo.
func (f *testFixture) createTestUser(t *testing.T, name, email, password string, admin bool) *users.User {
	t.Helper()

	user := &users.User{Name: name, Email: email, IsAdmin: admin}
	require.NoError(t, user.SetPassword(password))
	created, err := f.repo.Create(context.Background(), user)
	require.NoError(t, err)
	return created
}

func (f *testFixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(method, path string, body string) *http.Request {
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeErrorBody(t *testing.T, rec *httptest.ResponseRecorder) server.ErrorBody {
	t.Helper()
	var body server.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func decodeSessionToken(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		SessionToken string `json:"session_token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.SessionToken)
	return body.SessionToken
}

func TestSetupCreatesFirstAdmin(t *testing.T) {
	f := setupTestFixture(t)

	rec := f.do(jsonRequest(http.MethodPost, "/setup",
		`{"username": "username", "email": "username@domain.com", "password": "password"}`))
	require.Equal(t, http.StatusCreated, rec.Code)

	claims, err := f.codec.Verify(decodeSessionToken(t, rec))
	require.NoError(t, err)
	require.Equal(t, "username", claims.Name)
	require.True(t, claims.Admin)

	admins, err := f.repo.Admins(context.Background())
	require.NoError(t, err)
	require.Len(t, admins, 1)
	require.Equal(t, "username@domain.com", admins[0].Email)
}

func TestSetupGoneWhenAdminExists(t *testing.T) {
	f := setupTestFixture(t)
	f.createTestUser(t, "admin", "admin@example.com", "password!!", true)

	rec := f.do(jsonRequest(http.MethodPost, "/setup",
		`{"username": "u", "email": "u@d", "password": "12345678"}`))
	require.Equal(t, http.StatusGone, rec.Code)

	body := decodeErrorBody(t, rec)
	require.Equal(t, server.ErrnoAdminExists, body.Errno)
	require.Equal(t, "There is already an admin account", body.Message)

	// No second admin was created.
	admins, err := f.repo.Admins(context.Background())
	require.NoError(t, err)
	require.Len(t, admins, 1)
}

func TestSetupValidationOrder(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantErrno   int
		wantMessage string
	}{
		{"missing username", `{"email": "u@d", "password": "12345678"}`,
			server.ErrnoInvalidUsername, server.MessageInvalidUsername},
		{"missing email", `{"username": "u", "password": "12345678"}`,
			server.ErrnoInvalidEmail, server.MessageInvalidEmail},
		{"implausible email", `{"username": "u", "email": "not-an-email", "password": "12345678"}`,
			server.ErrnoInvalidEmail, server.MessageInvalidEmail},
		{"email with empty host", `{"username": "u", "email": "u@", "password": "12345678"}`,
			server.ErrnoInvalidEmail, server.MessageInvalidEmail},
		{"missing password", `{"username": "u", "email": "u@d"}`,
			server.ErrnoInvalidPassword, server.MessageInvalidPassword},
		{"short password", `{"username": "u", "email": "u@d", "password": "1234567"}`,
			server.ErrnoInvalidPassword, server.MessageInvalidPassword},
		{"username reported before email", `{"password": "12345678"}`,
			server.ErrnoInvalidUsername, server.MessageInvalidUsername},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := setupTestFixture(t)
			rec := f.do(jsonRequest(http.MethodPost, "/setup", tc.body))
			require.Equal(t, http.StatusBadRequest, rec.Code)

			body := decodeErrorBody(t, rec)
			require.Equal(t, tc.wantErrno, body.Errno)
			require.Equal(t, tc.wantMessage, body.Message)
		})
	}
}

func TestSetupRejectsUndecodableBody(t *testing.T) {
	f := setupTestFixture(t)

	rec := f.do(jsonRequest(http.MethodPost, "/setup", `{"username": `))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, server.ErrnoBadRequest, decodeErrorBody(t, rec).Errno)
}

func loginRequest(username, password string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.SetBasicAuth(username, password)
	return req
}

func TestLoginIssuesSession(t *testing.T) {
	f := setupTestFixture(t)
	created := f.createTestUser(t, "username", "username@example.com", "password", false)

	rec := f.do(loginRequest("username", "password"))
	require.Equal(t, http.StatusCreated, rec.Code)

	claims, err := f.codec.Verify(decodeSessionToken(t, rec))
	require.NoError(t, err)
	require.Equal(t, created.ID, claims.UserID)
	require.Equal(t, "username", claims.Name)
	require.False(t, claims.Admin)
}

func TestLoginMissingCredentials(t *testing.T) {
	f := setupTestFixture(t)
	f.createTestUser(t, "username", "username@example.com", "password", false)

	requests := map[string]*http.Request{
		"no header":      httptest.NewRequest(http.MethodPost, "/login", nil),
		"empty username": loginRequest("", "password"),
		"empty password": loginRequest("username", ""),
	}

	for name, req := range requests {
		t.Run(name, func(t *testing.T) {
			rec := f.do(req)
			require.Equal(t, http.StatusBadRequest, rec.Code)

			body := decodeErrorBody(t, rec)
			require.Equal(t, server.ErrnoAuthHeader, body.Errno)
			require.Equal(t, server.MessageAuthHeader, body.Message)
		})
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	f := setupTestFixture(t)
	f.createTestUser(t, "username", "username@example.com", "password", false)

	for name, req := range map[string]*http.Request{
		"unknown user":   loginRequest("johndoe", "password"),
		"wrong password": loginRequest("username", "not-the-password"),
	} {
		t.Run(name, func(t *testing.T) {
			rec := f.do(req)
			require.Equal(t, http.StatusUnauthorized, rec.Code)
			require.Equal(t, server.ErrnoUnauthorized, decodeErrorBody(t, rec).Errno)
		})
	}
}

// Two stored users sharing a (username, password) pair make the match
// ambiguous, which is a client failure, not a server error.
func TestLoginAmbiguousMatch(t *testing.T) {
	f := setupTestFixture(t)
	f.createTestUser(t, "username", "first@example.com", "password", false)
	f.createTestUser(t, "username", "second@example.com", "password", false)

	rec := f.do(loginRequest("username", "password"))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func (f *testFixture) authorize(t *testing.T, req *http.Request, user *users.User) *http.Request {
	t.Helper()
	raw, err := f.codec.Issue(user)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+raw)
	return req
}

func TestGatedEndpointsRejectAnonymousRequests(t *testing.T) {
	f := setupTestFixture(t)
	f.createTestUser(t, "username", "username@example.com", "password", false)

	requests := []*http.Request{
		httptest.NewRequest(http.MethodGet, "/users", nil),
		jsonRequest(http.MethodPost, "/users", `{"username": "u", "email": "u@d.com", "password": "12345678"}`),
		httptest.NewRequest(http.MethodGet, "/users/1", nil),
		jsonRequest(http.MethodPut, "/users/1", `{"username": "renamed"}`),
		httptest.NewRequest(http.MethodDelete, "/users/1", nil),
	}

	for _, req := range requests {
		rec := f.do(req)
		require.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", req.Method, req.URL.Path)
	}

	// The store is untouched: no handler ran.
	list, err := f.repo.All(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestUserCRUD(t *testing.T) {
	f := setupTestFixture(t)
	admin := f.createTestUser(t, "admin", "admin@example.com", "password!!", true)

	// Create.
	rec := f.do(f.authorize(t, jsonRequest(http.MethodPost, "/users",
		`{"username": "jane", "email": "jane@example.com", "password": "12345678"}`), admin))
	require.Equal(t, http.StatusCreated, rec.Code)

	var created users.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotZero(t, created.ID)
	require.False(t, created.IsAdmin)
	require.NotContains(t, rec.Body.String(), "password")

	// Read.
	rec = f.do(f.authorize(t, httptest.NewRequest(http.MethodGet, "/users/2", nil), admin))
	require.Equal(t, http.StatusOK, rec.Code)

	// List.
	rec = f.do(f.authorize(t, httptest.NewRequest(http.MethodGet, "/users", nil), admin))
	require.Equal(t, http.StatusOK, rec.Code)
	var list []users.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 2)

	// Update.
	rec = f.do(f.authorize(t, jsonRequest(http.MethodPut, "/users/2",
		`{"email": "jane.doe@example.com"}`), admin))
	require.Equal(t, http.StatusOK, rec.Code)

	updated, err := f.repo.GetByID(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, "jane.doe@example.com", updated.Email)
	require.Equal(t, "jane", updated.Name)

	// Delete.
	rec = f.do(f.authorize(t, httptest.NewRequest(http.MethodDelete, "/users/2", nil), admin))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(f.authorize(t, httptest.NewRequest(http.MethodGet, "/users/2", nil), admin))
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, server.ErrnoNotFound, decodeErrorBody(t, rec).Errno)
}

func TestUserEndpointsRejectBadID(t *testing.T) {
	f := setupTestFixture(t)
	admin := f.createTestUser(t, "admin", "admin@example.com", "password!!", true)

	rec := f.do(f.authorize(t, httptest.NewRequest(http.MethodGet, "/users/abc", nil), admin))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, server.ErrnoBadRequest, decodeErrorBody(t, rec).Errno)
}

func TestCorsAppliedAcrossThePipeline(t *testing.T) {
	f := setupTestFixture(t)

	assertCors := func(t *testing.T, rec *httptest.ResponseRecorder, want bool) {
		t.Helper()
		for _, name := range []string{
			"Access-Control-Allow-Origin",
			"Access-Control-Allow-Headers",
			"Access-Control-Allow-Methods",
		} {
			if want {
				require.NotEmpty(t, rec.Header().Get(name), name)
			} else {
				require.Empty(t, rec.Header().Get(name), name)
			}
		}
	}

	t.Run("preflight on login", func(t *testing.T) {
		rec := f.do(httptest.NewRequest(http.MethodOptions, "/login", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assertCors(t, rec, true)
	})

	t.Run("login error still gets headers", func(t *testing.T) {
		rec := f.do(httptest.NewRequest(http.MethodPost, "/login", nil))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assertCors(t, rec, true)
	})

	t.Run("auth rejection still gets headers", func(t *testing.T) {
		rec := f.do(httptest.NewRequest(http.MethodGet, "/users", nil))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assertCors(t, rec, true)
	})

	t.Run("setup is not CORS enabled", func(t *testing.T) {
		rec := f.do(httptest.NewRequest(http.MethodOptions, "/setup", nil))
		assertCors(t, rec, false)
	})
}
