// AngelaMos | 2026
// handler.go

package reconcile

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/roadwatch/internal/core"
)

type Handler struct {
	engine *Engine
}

func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

// RegisterRoutes mounts the manager-only sync endpoints. batchLimiter
// throttles the two batch triggers, which walk the whole table.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, managerOnly, batchLimiter func(http.Handler) http.Handler,
) {
	r.Group(func(r chi.Router) {
		r.Use(authenticator)
		r.Use(managerOnly)

		r.Route("/sync", func(r chi.Router) {
			r.With(batchLimiter).Post("/export", h.Export)
			r.With(batchLimiter).Post("/import", h.Import)
			r.Get("/status", h.Status)
		})

		r.Get("/mirror/signalements", h.Documents)
	})
}

func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	result, err := h.engine.Export(r.Context(), parseOptions(r))
	if err != nil {
		core.InternalServerError(w, err)
		return
	}
	writeBatch(w, result.Available, result)
}

func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	result, err := h.engine.Import(r.Context(), parseOptions(r))
	if err != nil {
		core.InternalServerError(w, err)
		return
	}
	writeBatch(w, result.Available, result)
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	st := h.engine.Status(r.Context())
	writeBatch(w, st.Available, st)
}

type documentResponse struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

func (h *Handler) Documents(w http.ResponseWriter, r *http.Request) {
	records, err := h.engine.Documents(r.Context())
	if errors.Is(err, core.ErrUnavailable) {
		core.ServiceUnavailable(w, "mirror unavailable")
		return
	}
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	out := make([]documentResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, documentResponse{ID: rec.ID, Fields: rec.Fields})
	}
	core.OK(w, out)
}

// writeBatch answers 200 with the result, or 503 with the same payload
// when the mirror could not be reached.
func writeBatch(w http.ResponseWriter, available bool, data any) {
	if available {
		core.OK(w, data)
		return
	}

	slog.Warn("sync request answered while mirror unavailable")
	core.JSON(w, http.StatusServiceUnavailable, core.Response{
		Success: false,
		Data:    data,
		Error: &core.ErrorBody{
			Code:    "UNAVAILABLE",
			Message: "mirror unavailable",
		},
	})
}

func parseOptions(r *http.Request) Options {
	resume, err := strconv.ParseBool(r.URL.Query().Get("resume"))
	if err != nil {
		return Options{}
	}
	return Options{Resume: resume}
}
