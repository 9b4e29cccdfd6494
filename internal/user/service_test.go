// AngelaMos | 2026
// service_test.go

package user

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/roadwatch/internal/core"
)

func TestRegister(t *testing.T) {
	svc := NewService(NewMemoryRepository())

	u, err := svc.Register(context.Background(), RegisterInput{
		Email:    " Citoyen@Example.com",
		Password: "motdepasse",
	})
	require.NoError(t, err)

	assert.NotZero(t, u.ID)
	assert.Equal(t, "citoyen@example.com", u.Email)
	assert.Equal(t, RoleUser, u.Role)
	assert.Equal(t, SyncNotSynced, u.ExternalSyncStatus)
	assert.NotEqual(t, "motdepasse", u.PasswordHash)

	ok, err := core.VerifyPassword("motdepasse", u.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryRepository())

	_, err := svc.Register(ctx, RegisterInput{Email: "a@example.com", Password: "x"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, RegisterInput{Email: "A@EXAMPLE.COM", Password: "y"})
	assert.ErrorIs(t, err, core.ErrDuplicateKey)
}

func TestRegisterSingleManager(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryRepository())

	m, err := svc.Register(ctx, RegisterInput{
		Email:    "chef@example.com",
		Password: "x",
		Role:     "ROLE_MANAGER",
	})
	require.NoError(t, err)
	assert.Equal(t, RoleManager, m.Role)

	exists, err := svc.ManagerExists(ctx)
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = svc.Register(ctx, RegisterInput{
		Email:    "autre@example.com",
		Password: "x",
		Role:     "Manager",
	})
	assert.ErrorIs(t, err, core.ErrConflict)
}

func TestRegisterInvalidRole(t *testing.T) {
	svc := NewService(NewMemoryRepository())

	_, err := svc.Register(context.Background(), RegisterInput{
		Email:    "a@example.com",
		Password: "x",
		Role:     "admin",
	})
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestLockStateTransitions(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	svc := NewService(repo)

	u, err := svc.Register(ctx, RegisterInput{Email: "a@example.com", Password: "x"})
	require.NoError(t, err)

	_, err = repo.UpdateLocked(ctx, u.Email, func(u *User) error {
		u.RecordFailure(1)
		return nil
	})
	require.NoError(t, err)

	unlocked, err := svc.Unlock(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, unlocked.Locked)
	assert.Zero(t, unlocked.FailedAttempts)

	blocked, err := svc.Block(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, blocked.Locked)

	_, err = svc.Unlock(ctx, 999)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestRecordFailure(t *testing.T) {
	u := &User{}

	assert.False(t, u.RecordFailure(3))
	assert.False(t, u.RecordFailure(3))
	assert.True(t, u.RecordFailure(3))
	assert.Equal(t, 3, u.FailedAttempts)

	u.Unlock()
	assert.False(t, u.Locked)
	assert.Zero(t, u.FailedAttempts)
}

func TestSyncStatusSummary(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	svc := NewService(repo)

	for _, email := range []string{"a@example.com", "b@example.com"} {
		_, err := svc.Register(ctx, RegisterInput{Email: email, Password: "x"})
		require.NoError(t, err)
	}
	_, err := repo.UpdateLocked(ctx, "b@example.com", func(u *User) error {
		u.ExternalSyncStatus = SyncSynced
		return nil
	})
	require.NoError(t, err)

	summary, err := svc.SyncStatusSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 1, summary.ByStatus[SyncNotSynced])
	assert.Equal(t, 1, summary.ByStatus[SyncSynced])
}
