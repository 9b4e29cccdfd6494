// AngelaMos | 2026
// handler_test.go

package signalement

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/carterperez-dev/roadwatch/internal/core"
	"github.com/carterperez-dev/roadwatch/internal/middleware"
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
			Email: "citoyen@example.com",
			Role:  role,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func newTestRouter(t *testing.T) (http.Handler, *MemoryRepository) {
	t.Helper()
	svc, repo, _, _ := newTestService()

	r := chi.NewRouter()
	NewHandler(svc).RegisterRoutes(r, asRole, middleware.RequireManager)
	return r, repo
}

func do(h http.Handler, method, path, role, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if role != "" {
		req.Header.Set("X-Test-Role", role)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	var body struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.NoError(t, json.Unmarshal(body.Data, v))
}

func TestHandlerCreateAndGet(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := do(h, http.MethodPost, "/signalements", "user",
		`{"titre":"Nid de poule","latitude":-18.9,"longitude":47.5,"niveau":4}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created Response
	decodeData(t, rec, &created)
	assert.Equal(t, StatusNouveau, created.Statut)
	assert.Equal(t, 0, created.Avancement)
	require.NotNil(t, created.UserID)
	assert.Equal(t, int64(3), *created.UserID)

	rec = do(h, http.MethodGet, "/signalements/"+created.ID, "user", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(h, http.MethodGet, "/signalements/absent", "user", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerCreateValidation(t *testing.T) {
	h, _ := newTestRouter(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"titre":`},
		{"missing titre", `{"latitude":1,"longitude":1}`},
		{"niveau out of range", `{"titre":"x","niveau":11}`},
		{"latitude out of range", `{"titre":"x","latitude":95}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(h, http.MethodPost, "/signalements", "user", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestHandlerStatusChangeRequiresManager(t *testing.T) {
	h, repo := newTestRouter(t)
	require.NoError(t, repo.Save(context.Background(), &Signalement{
		ID:     "5",
		Titre:  "x",
		Statut: StatusNouveau,
	}))

	rec := do(h, http.MethodPatch, "/signalements/5/status", "", `{"statut":"en cours"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(h, http.MethodPatch, "/signalements/5/status", "user", `{"statut":"en cours"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(h, http.MethodPatch, "/signalements/5/status", "manager", `{"statut":"archive"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h, http.MethodPatch, "/signalements/5/status", "manager", `{"statut":"Terminé"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var got Response
	decodeData(t, rec, &got)
	assert.Equal(t, StatusTermine, got.Statut)
	assert.Equal(t, 100, got.Avancement)
	assert.NotNil(t, got.DateNouveau)
	assert.NotNil(t, got.DateEnCours)
	assert.NotNil(t, got.DateTermine)
}

func TestHandlerListFilters(t *testing.T) {
	h, repo := newTestRouter(t)
	ctx := context.Background()
	owner := int64(3)
	require.NoError(t, repo.Save(ctx, &Signalement{ID: "1", Statut: StatusNouveau, UserID: &owner}))
	require.NoError(t, repo.Save(ctx, &Signalement{ID: "2", Statut: StatusEnCours}))

	rec := do(h, http.MethodGet, "/signalements?user_id=3", "user", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var rows []Response
	decodeData(t, rec, &rows)
	require.Len(t, rows, 1)
	assert.Equal(t, "1", rows[0].ID)

	rec = do(h, http.MethodGet, "/signalements?user_id=abc", "user", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h, http.MethodGet, "/signalements?statut=archive", "user", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerRecapWorkbook(t *testing.T) {
	h, repo := newTestRouter(t)
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, &Signalement{
		ID: "1", Titre: "A", Statut: StatusEnCours, Budget: ptr(1000.0), SurfaceM2: ptr(2.5),
	}))
	require.NoError(t, repo.Save(ctx, &Signalement{
		ID: "2", Titre: "B", Statut: StatusTermine, Budget: ptr(500.0),
	}))

	rec := do(h, http.MethodGet, "/signalements/recap.xlsx", "user", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(h, http.MethodGet, "/signalements/recap.xlsx", "manager", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "recap-")

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(recapSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "ID", rows[0][0])
	assert.Equal(t, []string{"1", "A", StatusEnCours, "50"}, rows[1][:4])
	assert.Equal(t, "TOTAL", rows[3][0])
	assert.Equal(t, "2", rows[3][1])
	assert.Equal(t, "2.5", rows[3][5])
	assert.Equal(t, "1500", rows[3][6])
}
