// AngelaMos | 2026
// rest_test.go

package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/roadwatch/internal/config"
	"github.com/carterperez-dev/roadwatch/internal/core"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *RESTProvider {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewRESTProvider(config.IdentityConfig{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Timeout: 2 * time.Second,
	})
}

func TestLookupByEmailFound(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/accounts:lookup", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))

		var body lookupRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []string{"a@example.com"}, body.Email)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"users":[{"localId":"uid-1","email":"a@example.com"}]}`))
	})

	acc, err := p.LookupByEmail(context.Background(), "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, "uid-1", acc.UID)
}

func TestLookupByEmailMissing(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	})

	_, err := p.LookupByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestCreateAccount(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/accounts:signUp", r.URL.Path)

		var body signUpRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "secret-pass", body.Password)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"localId":"uid-new","email":"b@example.com"}`))
	})

	acc, err := p.Create(context.Background(), "b@example.com", "secret-pass")
	require.NoError(t, err)
	assert.Equal(t, "uid-new", acc.UID)
}

func TestProviderErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"server error is unavailable", http.StatusServiceUnavailable, core.ErrUnavailable},
		{"not found", http.StatusNotFound, core.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"code":1,"message":"nope"}}`))
			})

			err := p.Update(context.Background(), "uid-1", "pw")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestProviderRejection(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"WEAK_PASSWORD"}}`))
	})

	_, err := p.Create(context.Background(), "c@example.com", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WEAK_PASSWORD")
	assert.NotErrorIs(t, err, core.ErrUnavailable)
}
