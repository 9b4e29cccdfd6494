// AngelaMos | 2026
// repository_test.go

package user

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/roadwatch/internal/core"
)

var userRowColumns = []string{
	"id", "email", "password_hash", "role", "locked", "failed_attempts",
	"version",
}

func newMockRepo(t *testing.T) (Repository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewRepository(sqlx.NewDb(db, "pgx")), mock
}

func TestRepositoryFindByEmailNormalizes(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT .+ FROM users WHERE email = \$1$`).
		WithArgs("agent@example.com").
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow(1, "agent@example.com", "h", RoleManager, false, 0, 1))

	u, err := repo.FindByEmail(context.Background(), "  Agent@Example.COM ")
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.ID)
	assert.True(t, u.IsManager())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryFindByIDNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT .+ FROM users WHERE id = \$1`).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows(userRowColumns))

	_, err := repo.FindByID(context.Background(), 9)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestRepositoryInsertDuplicateEmail(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`INSERT INTO users`).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := repo.Save(context.Background(), &User{Email: "a@example.com", Role: RoleUser})
	assert.ErrorIs(t, err, core.ErrDuplicateKey)
}

func TestRepositoryInsertDefaultsSyncStatus(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs("a@example.com", "h", RoleUser, false, 0, nil, SyncNotSynced, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "version", "created_at", "updated_at"}).
			AddRow(4, 1, now, now))

	u := &User{Email: "A@example.com", PasswordHash: "h", Role: RoleUser}
	require.NoError(t, repo.Save(context.Background(), u))
	assert.Equal(t, int64(4), u.ID)
	assert.Equal(t, "a@example.com", u.Email)
	assert.Equal(t, SyncNotSynced, u.ExternalSyncStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryUpdateLockedCommits(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM users WHERE email = \$1 FOR UPDATE`).
		WithArgs("a@example.com").
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow(2, "a@example.com", "h", RoleUser, false, 2, 5))
	mock.ExpectQuery(`UPDATE users .+ WHERE id = \$1 AND version = \$2`).
		WithArgs(int64(2), 5, "h", RoleUser, true, 3, nil, "", nil).
		WillReturnRows(sqlmock.NewRows([]string{"version", "updated_at"}).AddRow(6, now))
	mock.ExpectCommit()

	u, err := repo.UpdateLocked(context.Background(), "a@example.com", func(u *User) error {
		u.RecordFailure(3)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, u.Locked)
	assert.Equal(t, 3, u.FailedAttempts)
	assert.Equal(t, 6, u.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryUpdateLockedRollsBackOnError(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow(2, "a@example.com", "h", RoleUser, false, 0, 1))
	mock.ExpectRollback()

	_, err := repo.UpdateLocked(context.Background(), "a@example.com", func(*User) error {
		return core.ErrForbidden
	})
	assert.ErrorIs(t, err, core.ErrForbidden)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryListEscapesSearch(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM users WHERE TRUE AND email ILIKE \$1 AND locked`).
		WithArgs(`%50\%\_off%`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`ORDER BY id ASC`).
		WithArgs(`%50\%\_off%`, 20, 0).
		WillReturnRows(sqlmock.NewRows(userRowColumns))

	out, total, err := repo.List(context.Background(), ListUsersParams{
		Search:     "50%_off",
		LockedOnly: true,
	})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, out)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryCountBySyncStatus(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`GROUP BY external_sync_status`).
		WillReturnRows(sqlmock.NewRows([]string{"status", "n"}).
			AddRow(SyncSynced, 4).
			AddRow(SyncError, 1))

	counts, err := repo.CountBySyncStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{SyncSynced: 4, SyncError: 1}, counts)
}
