// AngelaMos | 2026
// handler_test.go

package reconcile

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/roadwatch/internal/core"
	"github.com/carterperez-dev/roadwatch/internal/middleware"
	"github.com/carterperez-dev/roadwatch/internal/signalement"
)

// asRole authenticates every request as the role named in X-Test-Role.
func asRole(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role := r.Header.Get("X-Test-Role")
		if role == "" {
			core.JSONError(w, core.UnauthorizedError(""))
			return
		}
		ctx := middleware.WithIdentity(r.Context(), &middleware.Identity{
			Email: "gestion@example.com",
			Role:  role,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func passthrough(next http.Handler) http.Handler { return next }

func newTestRouter(f *fixture) http.Handler {
	r := chi.NewRouter()
	NewHandler(f.engine).RegisterRoutes(r, asRole, middleware.RequireManager, passthrough)
	return r
}

func do(h http.Handler, method, path, role string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if role != "" {
		req.Header.Set("X-Test-Role", role)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type envelope[T any] struct {
	Success bool            `json:"success"`
	Data    T               `json:"data"`
	Error   *core.ErrorBody `json:"error"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) envelope[T] {
	t.Helper()
	var body envelope[T]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func (f *fixture) seed(t *testing.T, ids ...string) {
	t.Helper()
	for _, id := range ids {
		f.save(t, signalement.Signalement{ID: id, Titre: "Trou " + id, Statut: signalement.StatusNouveau})
	}
}

func TestHandlerExportMirrorLostMidBatch(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "A", "B", "C")
	f.mirror.FailWritesFor("B", core.ErrUnavailable)

	rec := do(newTestRouter(f), http.MethodPost, "/sync/export", middleware.RoleManager)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	body := decode[ExportResult](t, rec)
	assert.False(t, body.Success)
	require.NotNil(t, body.Error)
	assert.Equal(t, "UNAVAILABLE", body.Error.Code)
	assert.Equal(t, 1, body.Data.Exported)
	assert.Equal(t, 3, body.Data.Total)
	assert.Equal(t, "A", body.Data.LastID)
	assert.False(t, body.Data.Available)
	assert.False(t, body.Data.Completed)

	cp, err := f.checkpts.Load(context.Background(), JobExport)
	require.NoError(t, err)
	assert.Equal(t, "A", cp)
}

func TestHandlerImportMirrorDown(t *testing.T) {
	f := newFixture(t)
	f.mirror.SetReachable(false)

	rec := do(newTestRouter(f), http.MethodPost, "/sync/import", middleware.RoleManager)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	body := decode[ImportResult](t, rec)
	assert.False(t, body.Data.Available)
	assert.Zero(t, body.Data.Imported)
}

func TestHandlerExportResume(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, "A", "B", "C")
	h := newTestRouter(f)

	require.NoError(t, f.checkpts.Save(ctx, JobExport, "B"))
	rec := do(h, http.MethodPost, "/sync/export?resume=maybe", middleware.RoleManager)
	require.Equal(t, http.StatusOK, rec.Code)
	full := decode[ExportResult](t, rec)
	assert.Equal(t, 3, full.Data.Exported)
	assert.Zero(t, full.Data.Skipped)

	require.NoError(t, f.checkpts.Save(ctx, JobExport, "B"))
	rec = do(h, http.MethodPost, "/sync/export?resume=true", middleware.RoleManager)
	require.Equal(t, http.StatusOK, rec.Code)
	resumed := decode[ExportResult](t, rec)
	assert.Equal(t, 1, resumed.Data.Exported)
	assert.Equal(t, 2, resumed.Data.Skipped)
	assert.Equal(t, "C", resumed.Data.LastID)
	assert.True(t, resumed.Data.Completed)
}

func TestParseOptions(t *testing.T) {
	tests := []struct {
		query string
		want  bool
	}{
		{"", false},
		{"?resume=true", true},
		{"?resume=1", true},
		{"?resume=false", false},
		{"?resume=yes", false},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/sync/import"+tt.query, nil)
			assert.Equal(t, tt.want, parseOptions(r).Resume)
		})
	}
}

func TestHandlerRequiresManager(t *testing.T) {
	f := newFixture(t)
	h := newTestRouter(f)

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/sync/export"},
		{http.MethodPost, "/sync/import"},
		{http.MethodGet, "/sync/status"},
		{http.MethodGet, "/mirror/signalements"},
	}

	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			assert.Equal(t, http.StatusForbidden, do(h, rt.method, rt.path, middleware.RoleUser).Code)
			assert.Equal(t, http.StatusUnauthorized, do(h, rt.method, rt.path, "").Code)
		})
	}
}

func TestHandlerStatus(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.checkpts.Save(context.Background(), JobImport, "Z"))
	h := newTestRouter(f)

	rec := do(h, http.MethodGet, "/sync/status", middleware.RoleManager)
	require.Equal(t, http.StatusOK, rec.Code)
	st := decode[Status](t, rec)
	assert.True(t, st.Data.Available)
	assert.Equal(t, "Z", st.Data.ImportCheckpoint)

	f.mirror.SetReachable(false)
	rec = do(h, http.MethodGet, "/sync/status", middleware.RoleManager)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	st = decode[Status](t, rec)
	assert.False(t, st.Data.Available)
	assert.Equal(t, "Z", st.Data.ImportCheckpoint)
}

func TestHandlerDocuments(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "A")
	h := newTestRouter(f)

	_, err := f.engine.Export(context.Background(), Options{})
	require.NoError(t, err)

	rec := do(h, http.MethodGet, "/mirror/signalements", middleware.RoleManager)
	require.Equal(t, http.StatusOK, rec.Code)
	docs := decode[[]documentResponse](t, rec)
	require.Len(t, docs.Data, 1)
	assert.Equal(t, "A", docs.Data[0].ID)
	assert.Equal(t, "Trou A", docs.Data[0].Fields["titre"])

	f.mirror.SetReachable(false)
	rec = do(h, http.MethodGet, "/mirror/signalements", middleware.RoleManager)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
