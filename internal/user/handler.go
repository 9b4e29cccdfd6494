// AngelaMos | 2026
// handler.go

package user

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/roadwatch/internal/core"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterAdminRoutes registers manager-only account administration.
func (h *Handler) RegisterAdminRoutes(
	r chi.Router,
	authenticator, managerOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin/users", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(managerOnly)

		r.Get("/", h.ListUsers)
		r.Get("/identity-status", h.IdentityStatus)
		r.Get("/{userID}", h.GetUser)
		r.Post("/{userID}/unlock", h.Unlock)
		r.Post("/{userID}/block", h.Block)
		r.Post("/{userID}/unblock", h.Unblock)
	})
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	params := ListUsersParams{
		Page:       parseIntQuery(r, "page", 1),
		PageSize:   parseIntQuery(r, "page_size", 20),
		Search:     r.URL.Query().Get("search"),
		Role:       r.URL.Query().Get("role"),
		LockedOnly: r.URL.Query().Get("locked") == "true",
	}
	params.Normalize()

	users, total, err := h.service.ListUsers(r.Context(), params)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.Paginated(
		w,
		ToUserResponseList(users),
		params.Page,
		params.PageSize,
		total,
	)
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(w, r)
	if !ok {
		return
	}

	u, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		writeUserError(w, err)
		return
	}

	core.OK(w, ToUserResponse(u))
}

func (h *Handler) Unlock(w http.ResponseWriter, r *http.Request) {
	h.lockAction(w, r, h.service.Unlock)
}

func (h *Handler) Block(w http.ResponseWriter, r *http.Request) {
	h.lockAction(w, r, h.service.Block)
}

func (h *Handler) Unblock(w http.ResponseWriter, r *http.Request) {
	h.lockAction(w, r, h.service.Unblock)
}

func (h *Handler) lockAction(
	w http.ResponseWriter,
	r *http.Request,
	action func(ctx context.Context, id int64) (*User, error),
) {
	id, ok := userIDParam(w, r)
	if !ok {
		return
	}

	u, err := action(r.Context(), id)
	if err != nil {
		writeUserError(w, err)
		return
	}

	core.OK(w, ToUserResponse(u))
}

func (h *Handler) IdentityStatus(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.SyncStatusSummary(r.Context())
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, summary)
}

func userIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || id <= 0 {
		core.BadRequest(w, "invalid user id")
		return 0, false
	}
	return id, true
}

func writeUserError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, "user")
	case errors.Is(err, core.ErrStaleVersion):
		core.Conflict(w, "user was modified concurrently, retry")
	default:
		core.InternalServerError(w, err)
	}
}

func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}

	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return parsed
}
