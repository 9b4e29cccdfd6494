// AngelaMos | 2026
// syncer.go

package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/carterperez-dev/roadwatch/internal/core"
	"github.com/carterperez-dev/roadwatch/internal/user"
)

// ErrProvider marks failures reported by, or while reaching, the identity
// provider.
var ErrProvider = errors.New("identity provider")

var ErrPasswordRequired = fmt.Errorf(
	"password required to create the provider account: %w",
	core.ErrInvalidInput,
)

// Syncer copies citizen accounts to the identity provider and records the
// outcome on the user row.
type Syncer struct {
	users    user.Repository
	provider Provider
	logger   *slog.Logger
	now      func() time.Time
}

func NewSyncer(users user.Repository, provider Provider, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		users:    users,
		provider: provider,
		logger:   logger,
		now:      time.Now,
	}
}

// SyncUser links userID to a provider account. An existing account gets
// its password replaced when password is set; a missing one is created,
// which needs the password. The row moves NOT_SYNCED -> SYNCING and ends
// SYNCED or SYNC_ERROR.
func (s *Syncer) SyncUser(ctx context.Context, userID int64, password string) error {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("sync user %d: %w", userID, err)
	}

	if !u.EligibleForExternalSync() {
		return fmt.Errorf("sync user %d: role %q: %w", userID, u.Role, core.ErrForbidden)
	}

	if _, err := s.users.UpdateLocked(ctx, u.Email, func(u *user.User) error {
		u.ExternalSyncStatus = user.SyncSyncing
		return nil
	}); err != nil {
		return fmt.Errorf("sync user %d: mark syncing: %w", userID, err)
	}

	uid, syncErr := s.pushAccount(ctx, u.Email, password)

	_, err = s.users.UpdateLocked(ctx, u.Email, func(u *user.User) error {
		if syncErr != nil {
			u.ExternalSyncStatus = user.SyncError
			return nil
		}
		now := s.now()
		u.ExternalUID = &uid
		u.ExternalSyncStatus = user.SyncSynced
		u.ExternalSyncedAt = &now
		return nil
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "record identity sync outcome failed",
			"user_id", userID,
			"error", err,
		)
	}

	if syncErr != nil {
		s.logger.WarnContext(ctx, "identity sync failed",
			"user_id", userID,
			"error", syncErr,
		)
		if errors.Is(syncErr, ErrPasswordRequired) {
			return fmt.Errorf("sync user %d: %w", userID, syncErr)
		}
		return fmt.Errorf("sync user %d: %w: %w", userID, ErrProvider, syncErr)
	}
	if err != nil {
		return fmt.Errorf("sync user %d: record outcome: %w", userID, err)
	}

	s.logger.InfoContext(ctx, "identity synced", "user_id", userID, "uid", uid)
	return nil
}

func (s *Syncer) pushAccount(ctx context.Context, email, password string) (string, error) {
	account, err := s.provider.LookupByEmail(ctx, email)
	switch {
	case errors.Is(err, core.ErrNotFound):
		if password == "" {
			return "", ErrPasswordRequired
		}
		created, err := s.provider.Create(ctx, email, password)
		if err != nil {
			return "", err
		}
		return created.UID, nil
	case err != nil:
		return "", err
	}

	if password != "" {
		if err := s.provider.Update(ctx, account.UID, password); err != nil {
			return "", err
		}
	}
	return account.UID, nil
}
