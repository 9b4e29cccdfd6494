// AngelaMos | 2026
// handler.go

package identity

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/roadwatch/internal/core"
	"github.com/carterperez-dev/roadwatch/internal/user"
)

type Handler struct {
	syncer *Syncer
	users  user.Repository
}

func NewHandler(syncer *Syncer, users user.Repository) *Handler {
	return &Handler{syncer: syncer, users: users}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, managerOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin/identity", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(managerOnly)

		r.Post("/users/{userID}/sync", h.SyncUser)
	})
}

type SyncRequest struct {
	Password string `json:"password,omitempty"`
}

func (h *Handler) SyncUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || id <= 0 {
		core.BadRequest(w, "invalid user id")
		return
	}

	var req SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.syncer.SyncUser(r.Context(), id, req.Password); err != nil {
		switch {
		case errors.Is(err, ErrPasswordRequired):
			core.BadRequest(w, "password required to create the provider account")
		case errors.Is(err, ErrProvider):
			core.JSONError(w, core.NewAppError(
				err,
				"identity provider sync failed",
				http.StatusBadGateway,
				"IDENTITY_SYNC_FAILED",
			))
		case errors.Is(err, core.ErrNotFound):
			core.NotFound(w, "user")
		case errors.Is(err, core.ErrForbidden):
			core.Forbidden(w, "only citizen accounts are synced")
		default:
			core.InternalServerError(w, err)
		}
		return
	}

	u, err := h.users.FindByID(r.Context(), id)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}
	core.OK(w, user.ToUserResponse(u))
}
