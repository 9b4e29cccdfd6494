// AngelaMos | 2026
// handler.go

package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/roadwatch/internal/core"
	"github.com/carterperez-dev/roadwatch/internal/middleware"
	"github.com/carterperez-dev/roadwatch/internal/user"
)

type Handler struct {
	service   *Service
	guard     *LoginGuard
	validator *validator.Validate
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		guard:     service.guard,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// RegisterRoutes mounts /auth. loginLimiter wraps only the login endpoint.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
	loginLimiter func(http.Handler) http.Handler,
) {
	r.Route("/auth", func(r chi.Router) {
		r.With(loginLimiter).Post("/login", h.Login)
		r.Post("/register", h.Register)
		r.Get("/check-manager", h.CheckManager)
		r.Get("/validate", h.Validate)

		r.Group(func(r chi.Router) {
			r.Use(authenticator)
			r.Get("/me", h.GetMe)
			r.Post("/logout", h.Logout)
			r.Post("/identity/resync", h.ResyncIdentity)
		})
	})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	res, err := h.service.Login(r.Context(), req)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	resp := LoginResponse{
		FailedAttempts:    res.FailedAttempts,
		RemainingAttempts: h.guard.Remaining(res.FailedAttempts),
	}

	switch res.Outcome {
	case OutcomeSuccess:
		resp.Success = true
		resp.Token = res.Token
		resp.TokenType = "Bearer"
		resp.Role = res.Role
		resp.ExpiresAt = &res.ExpiresAt
		core.OK(w, resp)
	case OutcomeLocked:
		resp.Locked = true
		resp.RemainingAttempts = 0
		resp.Message = "account locked, contact a manager"
		core.JSON(w, http.StatusForbidden, core.Response{
			Success: false,
			Data:    resp,
			Error:   &core.ErrorBody{Code: "ACCOUNT_LOCKED", Message: resp.Message},
		})
	default:
		resp.Message = "invalid email or password"
		core.JSON(w, http.StatusUnauthorized, core.Response{
			Success: false,
			Data:    resp,
			Error:   &core.ErrorBody{Code: "INVALID_CREDENTIALS", Message: resp.Message},
		})
	}
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	u, err := h.service.Register(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrDuplicateKey):
			core.JSONError(w, core.DuplicateError("email"))
		case errors.Is(err, core.ErrConflict):
			core.Conflict(w, "a manager account already exists")
		case errors.Is(err, core.ErrInvalidInput):
			core.BadRequest(w, "invalid role")
		default:
			core.InternalServerError(w, err)
		}
		return
	}

	core.Created(w, user.ToUserResponse(u))
}

func (h *Handler) CheckManager(w http.ResponseWriter, r *http.Request) {
	exists, err := h.service.ManagerExists(r.Context())
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ManagerExistsResponse{Exists: exists})
}

func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	token := middleware.ExtractToken(r)
	if token == "" {
		core.Unauthorized(w, "missing authorization token")
		return
	}

	resp, err := h.service.Validate(r.Context(), token)
	if err != nil {
		writeTokenError(w, err)
		return
	}

	core.OK(w, resp)
}

func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	u, err := h.service.Me(r.Context(), middleware.GetUserEmail(r.Context()))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "user")
			return
		}
		writeTokenError(w, err)
		return
	}

	core.OK(w, user.ToUserResponse(u))
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context(), middleware.GetIdentity(r.Context())); err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) ResyncIdentity(w http.ResponseWriter, r *http.Request) {
	var req ResyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	u, err := h.service.ResyncIdentity(
		r.Context(),
		middleware.GetUserEmail(r.Context()),
		req.Password,
	)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			core.Unauthorized(w, "invalid password")
		case errors.Is(err, core.ErrForbidden):
			core.Forbidden(w, "only citizen accounts are synced")
		case errors.Is(err, core.ErrUnavailable):
			core.ServiceUnavailable(w, "identity provider is not configured")
		case errors.Is(err, core.ErrNotFound):
			core.NotFound(w, "user")
		default:
			core.JSONError(w, core.NewAppError(
				err,
				"identity provider sync failed",
				http.StatusBadGateway,
				"IDENTITY_SYNC_FAILED",
			))
		}
		return
	}

	core.OK(w, user.ToUserResponse(u))
}

func writeTokenError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrTokenExpired):
		core.JSONError(w, core.TokenExpiredError())
	case errors.Is(err, core.ErrTokenRevoked):
		core.JSONError(w, core.TokenRevokedError())
	case errors.Is(err, core.ErrAccountLocked):
		core.JSONError(w, core.AccountLockedError())
	case errors.Is(err, core.ErrTokenInvalid), errors.Is(err, core.ErrUnauthorized):
		core.JSONError(w, core.TokenInvalidError())
	default:
		core.InternalServerError(w, err)
	}
}
