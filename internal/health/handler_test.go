// AngelaMos | 2026
// handler_test.go

package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChecker struct {
	err error
}

func (s stubChecker) Ping(context.Context) error {
	return s.err
}

func readiness(t *testing.T, h *Handler) (int, ReadinessResponse) {
	t.Helper()

	r := chi.NewRouter()
	h.RegisterRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	var body ReadinessResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return rec.Code, body
}

func TestReadinessHealthy(t *testing.T) {
	h := NewHandler(stubChecker{}, stubChecker{}, stubChecker{})

	code, body := readiness(t, h)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body.Status)
	assert.Len(t, body.Checks, 3)
}

func TestReadinessMirrorDownIsDegraded(t *testing.T) {
	h := NewHandler(stubChecker{}, stubChecker{}, stubChecker{err: errors.New("down")})

	code, body := readiness(t, h)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "degraded", body.Status)
	assert.False(t, body.Checks[2].Healthy)
}

func TestReadinessDatabaseDownFails(t *testing.T) {
	h := NewHandler(stubChecker{err: errors.New("down")}, stubChecker{}, nil)

	code, body := readiness(t, h)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unavailable", body.Status)
	assert.Len(t, body.Checks, 2)
}

func TestLivenessDuringShutdown(t *testing.T) {
	h := NewHandler(stubChecker{}, stubChecker{}, nil)
	h.SetShutdown(true)

	rec := httptest.NewRecorder()
	h.Liveness(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
