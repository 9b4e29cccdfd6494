// AngelaMos | 2026
// handler_test.go

package auth

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/roadwatch/internal/core"
	"github.com/carterperez-dev/roadwatch/internal/middleware"
	"github.com/carterperez-dev/roadwatch/internal/user"
)

type fakeSyncer struct {
	calls []int64
	err   error
}

func (f *fakeSyncer) SyncUser(_ context.Context, userID int64, _ string) error {
	f.calls = append(f.calls, userID)
	return f.err
}

type authFixture struct {
	router http.Handler
	users  *user.MemoryRepository
	syncer *fakeSyncer
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := user.NewMemoryRepository()
	issuer := newTestIssuer(t)
	syncer := &fakeSyncer{}

	svc := NewService(ServiceConfig{
		Guard:     NewLoginGuard(repo, issuer, 3, logger),
		Issuer:    issuer,
		Users:     user.NewService(repo),
		Blacklist: NewMemoryBlacklist(),
		Identity:  syncer,
		Logger:    logger,
	})

	passthrough := func(next http.Handler) http.Handler { return next }

	r := chi.NewRouter()
	NewHandler(svc).RegisterRoutes(r, middleware.Authenticator(svc), passthrough)

	return &authFixture{router: r, users: repo, syncer: syncer}
}

func (f *authFixture) call(method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func loginBody(t *testing.T, rec *httptest.ResponseRecorder) LoginResponse {
	t.Helper()
	var body struct {
		Data LoginResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body.Data
}

func TestRegisterLoginLogout(t *testing.T) {
	f := newAuthFixture(t)

	rec := f.call(http.MethodPost, "/auth/register", "",
		`{"email":"citoyen@example.com","password":"bonmotdepasse"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, f.syncer.calls, 1)

	rec = f.call(http.MethodPost, "/auth/login", "",
		`{"email":"citoyen@example.com","password":"bonmotdepasse"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	login := loginBody(t, rec)
	require.True(t, login.Success)
	assert.Equal(t, "Bearer", login.TokenType)
	assert.Equal(t, user.RoleUser, login.Role)

	rec = f.call(http.MethodGet, "/auth/me", login.Token, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.call(http.MethodGet, "/auth/validate", login.Token, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.call(http.MethodPost, "/auth/logout", login.Token, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.call(http.MethodGet, "/auth/me", login.Token, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginLocksAfterThreshold(t *testing.T) {
	f := newAuthFixture(t)
	seedUser(t, f.users, "citoyen@example.com", "bonmotdepasse")

	wrong := `{"email":"citoyen@example.com","password":"mauvais"}`

	rec := f.call(http.MethodPost, "/auth/login", "", wrong)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	body := loginBody(t, rec)
	assert.Equal(t, 1, body.FailedAttempts)
	assert.Equal(t, 2, body.RemainingAttempts)

	f.call(http.MethodPost, "/auth/login", "", wrong)
	rec = f.call(http.MethodPost, "/auth/login", "", wrong)
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.True(t, loginBody(t, rec).Locked)

	rec = f.call(http.MethodPost, "/auth/login", "",
		`{"email":"citoyen@example.com","password":"bonmotdepasse"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestValidateReportsLockedAccount(t *testing.T) {
	f := newAuthFixture(t)
	seedUser(t, f.users, "citoyen@example.com", "bonmotdepasse")

	rec := f.call(http.MethodPost, "/auth/login", "",
		`{"email":"citoyen@example.com","password":"bonmotdepasse"}`)
	token := loginBody(t, rec).Token

	_, err := f.users.UpdateLocked(context.Background(), "citoyen@example.com", func(u *user.User) error {
		u.Block()
		return nil
	})
	require.NoError(t, err)

	rec = f.call(http.MethodGet, "/auth/validate", token, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRegisterSecondManagerConflicts(t *testing.T) {
	f := newAuthFixture(t)

	rec := f.call(http.MethodPost, "/auth/register", "",
		`{"email":"chef@example.com","password":"motdepasse1","role":"manager"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Empty(t, f.syncer.calls)

	rec = f.call(http.MethodGet, "/auth/check-manager", "", "")
	assert.Contains(t, rec.Body.String(), `"exists":true`)

	rec = f.call(http.MethodPost, "/auth/register", "",
		`{"email":"autre@example.com","password":"motdepasse1","role":"MANAGER"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRegisterValidation(t *testing.T) {
	f := newAuthFixture(t)

	for _, body := range []string{
		`{"email":"not-an-email","password":"motdepasse1"}`,
		`{"email":"a@example.com","password":"court"}`,
		`{"email":"a@example.com","password":"motdepasse1","role":"admin"}`,
	} {
		rec := f.call(http.MethodPost, "/auth/register", "", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func seedUser(t *testing.T, repo *user.MemoryRepository, email, password string) {
	t.Helper()
	hash, err := core.HashPassword(password)
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), &user.User{
		Email:        email,
		PasswordHash: hash,
		Role:         user.RoleUser,
	}))
}
