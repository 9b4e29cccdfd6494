// AngelaMos | 2026
// service.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/carterperez-dev/roadwatch/internal/core"
	"github.com/carterperez-dev/roadwatch/internal/middleware"
	"github.com/carterperez-dev/roadwatch/internal/user"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// IdentitySyncer pushes a citizen account to the mobile identity provider.
type IdentitySyncer interface {
	SyncUser(ctx context.Context, userID int64, password string) error
}

type Service struct {
	guard     *LoginGuard
	issuer    *TokenIssuer
	users     *user.Service
	blacklist Blacklist
	identity  IdentitySyncer
	logger    *slog.Logger
}

type ServiceConfig struct {
	Guard     *LoginGuard
	Issuer    *TokenIssuer
	Users     *user.Service
	Blacklist Blacklist
	Identity  IdentitySyncer
	Logger    *slog.Logger
}

func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		guard:     cfg.Guard,
		issuer:    cfg.Issuer,
		users:     cfg.Users,
		blacklist: cfg.Blacklist,
		identity:  cfg.Identity,
		logger:    logger,
	}
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (*AttemptResult, error) {
	return s.guard.Attempt(ctx, req.Email, req.Password)
}

// Register creates the account and then, for citizen accounts, tries to
// mirror it on the identity provider. A failed sync leaves the account
// usable on the web side.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*user.User, error) {
	u, err := s.users.Register(ctx, user.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		return nil, err
	}

	if s.identity != nil && u.EligibleForExternalSync() {
		if err := s.identity.SyncUser(ctx, u.ID, req.Password); err != nil {
			s.logger.WarnContext(ctx, "identity sync after registration failed",
				"user_id", u.ID,
				"error", err,
			)
		}
		if fresh, err := s.users.GetByID(ctx, u.ID); err == nil {
			u = fresh
		}
	}

	return u, nil
}

func (s *Service) ManagerExists(ctx context.Context) (bool, error) {
	return s.users.ManagerExists(ctx)
}

// VerifyAccessToken is the request-path check: a valid signature, an
// unrevoked jti and an account that is not locked.
func (s *Service) VerifyAccessToken(
	ctx context.Context,
	token string,
) (*middleware.Identity, error) {
	claims, err := s.issuer.Validate(token)
	if err != nil {
		return nil, err
	}

	if s.blacklist != nil && claims.TokenID != "" {
		revoked, err := s.blacklist.IsRevoked(ctx, claims.TokenID)
		if err != nil {
			return nil, fmt.Errorf("verify token: %w", err)
		}
		if revoked {
			return nil, fmt.Errorf("verify token: %w", core.ErrTokenRevoked)
		}
	}

	return &middleware.Identity{
		Email:     claims.Subject,
		Role:      claims.Role,
		TokenID:   claims.TokenID,
		ExpiresAt: claims.ExpiresAt,
	}, nil
}

// Validate reports whether the token is usable right now, including the
// current lock state of its account.
func (s *Service) Validate(ctx context.Context, token string) (*ValidateResponse, error) {
	id, err := s.VerifyAccessToken(ctx, token)
	if err != nil {
		return nil, err
	}

	u, err := s.users.GetByEmail(ctx, id.Email)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("validate: %w", core.ErrTokenInvalid)
		}
		return nil, fmt.Errorf("validate: %w", err)
	}

	if u.Locked {
		return nil, fmt.Errorf("validate: %w", core.ErrAccountLocked)
	}

	return &ValidateResponse{
		Valid:     true,
		Email:     u.Email,
		Role:      u.Role,
		ExpiresAt: id.ExpiresAt,
	}, nil
}

func (s *Service) Logout(ctx context.Context, id *middleware.Identity) error {
	if id == nil || id.TokenID == "" || s.blacklist == nil {
		return nil
	}

	if err := s.blacklist.Revoke(ctx, id.TokenID, id.ExpiresAt); err != nil {
		return fmt.Errorf("logout: %w", err)
	}

	return nil
}

func (s *Service) Me(ctx context.Context, email string) (*user.User, error) {
	if email == "" {
		return nil, fmt.Errorf("me: %w", core.ErrUnauthorized)
	}

	return s.users.GetByEmail(ctx, email)
}

// ResyncIdentity re-proves the caller's password and retries the identity
// provider sync with it.
func (s *Service) ResyncIdentity(
	ctx context.Context,
	email, password string,
) (*user.User, error) {
	if s.identity == nil {
		return nil, fmt.Errorf("resync identity: %w", core.ErrUnavailable)
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if !u.EligibleForExternalSync() {
		return nil, fmt.Errorf("resync identity: role %q: %w", u.Role, core.ErrForbidden)
	}

	valid, err := core.VerifyPassword(password, u.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("resync identity: %w", err)
	}
	if !valid {
		return nil, ErrInvalidCredentials
	}

	if err := s.identity.SyncUser(ctx, u.ID, password); err != nil {
		return nil, fmt.Errorf("resync identity: %w", err)
	}

	return s.users.GetByID(ctx, u.ID)
}

var _ middleware.TokenVerifier = (*Service)(nil)
