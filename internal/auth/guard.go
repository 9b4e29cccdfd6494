// AngelaMos | 2026
// guard.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/carterperez-dev/roadwatch/internal/core"
	"github.com/carterperez-dev/roadwatch/internal/user"
)

type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
	OutcomeLocked  Outcome = "locked"
)

const DefaultMaxFailedAttempts = 3

type AttemptResult struct {
	Outcome        Outcome
	Token          string
	Role           string
	FailedAttempts int
	ExpiresAt      time.Time
}

// LoginGuard implements bounded-retry lockout on top of the credential
// store. Every attempt against a known account is a single serialized
// read-modify-write of that account's row.
type LoginGuard struct {
	users     user.Repository
	issuer    *TokenIssuer
	unknown   FailureCounter
	threshold int
	logger    *slog.Logger
}

func NewLoginGuard(
	users user.Repository,
	issuer *TokenIssuer,
	threshold int,
	logger *slog.Logger,
) *LoginGuard {
	if threshold < 1 {
		threshold = DefaultMaxFailedAttempts
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &LoginGuard{
		users:     users,
		issuer:    issuer,
		unknown:   NewMemoryFailureCounter(DecoyTTL),
		threshold: threshold,
		logger:    logger,
	}
}

// WithUnknownCounter replaces the in-process counter used for emails that
// have no account. Several API replicas need a shared one.
func (g *LoginGuard) WithUnknownCounter(c FailureCounter) *LoginGuard {
	if c != nil {
		g.unknown = c
	}
	return g
}

func (g *LoginGuard) Attempt(
	ctx context.Context,
	email, password string,
) (*AttemptResult, error) {
	result := &AttemptResult{}

	u, err := g.users.UpdateLocked(ctx, email, func(u *user.User) error {
		if u.Locked {
			result.Outcome = OutcomeLocked
			result.FailedAttempts = u.FailedAttempts
			return nil
		}

		valid, newHash, verr := core.VerifyPasswordTimingSafe(
			password,
			&u.PasswordHash,
		)
		if verr != nil {
			return fmt.Errorf("verify password: %w", verr)
		}

		if !valid {
			if u.RecordFailure(g.threshold) {
				result.Outcome = OutcomeLocked
			} else {
				result.Outcome = OutcomeFailed
			}
			result.FailedAttempts = u.FailedAttempts
			return nil
		}

		u.ResetFailures()
		if newHash != "" {
			u.PasswordHash = newHash
		}
		result.Outcome = OutcomeSuccess
		return nil
	})
	if errors.Is(err, core.ErrNotFound) {
		//nolint:errcheck // equalizes timing with the known-account path
		_, _, _ = core.VerifyPasswordTimingSafe(password, nil)
		return g.unknownAttempt(ctx, email)
	}
	if err != nil {
		return nil, fmt.Errorf("login attempt: %w", err)
	}

	switch result.Outcome {
	case OutcomeLocked:
		g.logger.WarnContext(ctx, "login refused, account locked",
			"user_id", u.ID,
			"failed_attempts", u.FailedAttempts,
		)
		return result, nil
	case OutcomeFailed:
		g.logger.InfoContext(ctx, "login failed",
			"user_id", u.ID,
			"failed_attempts", u.FailedAttempts,
			"threshold", g.threshold,
		)
		return result, nil
	}

	token, claims, err := g.issuer.Issue(u.Email, u.Role)
	if err != nil {
		return nil, fmt.Errorf("login attempt: %w", err)
	}

	result.Token = token
	result.Role = u.Role
	result.ExpiresAt = claims.ExpiresAt
	return result, nil
}

// unknownAttempt answers a login for an email without an account with the
// counts and lockout an existing account would show.
func (g *LoginGuard) unknownAttempt(ctx context.Context, email string) (*AttemptResult, error) {
	n, err := g.unknown.Increment(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("login attempt: %w", err)
	}

	if n >= g.threshold {
		return &AttemptResult{Outcome: OutcomeLocked, FailedAttempts: g.threshold}, nil
	}
	return &AttemptResult{Outcome: OutcomeFailed, FailedAttempts: n}, nil
}

// Remaining is how many wrong passwords the account can still absorb.
func (g *LoginGuard) Remaining(failedAttempts int) int {
	if n := g.threshold - failedAttempts; n > 0 {
		return n
	}
	return 0
}
