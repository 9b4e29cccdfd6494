// AngelaMos | 2026
// repository.go

package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"github.com/carterperez-dev/roadwatch/internal/core"
)

// Repository is the credential store. UpdateLocked is the only path that
// mutates the lockout counters: it runs fn against a row that no other
// writer can touch until fn returns.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id int64) (*User, error)
	Save(ctx context.Context, user *User) error
	ExistsByRoleIgnoreCase(ctx context.Context, role string) (bool, error)
	UpdateLocked(
		ctx context.Context,
		email string,
		fn func(u *User) error,
	) (*User, error)
	List(ctx context.Context, params ListUsersParams) ([]User, int, error)
	CountBySyncStatus(ctx context.Context) (map[string]int, error)
}

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

const userColumns = `id, email, password_hash, role, locked, failed_attempts,
		       external_uid, external_sync_status, external_synced_at,
		       version, created_at, updated_at`

func (r *repository) FindByEmail(
	ctx context.Context,
	email string,
) (*User, error) {
	return findByEmail(ctx, r.db, email, false)
}

func findByEmail(
	ctx context.Context,
	db core.DBTX,
	email string,
	forUpdate bool,
) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var u User
	err := db.GetContext(ctx, &u, query, NormalizeEmail(email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find user by email: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find user by email: %w", err)
	}

	return &u, nil
}

func (r *repository) FindByID(ctx context.Context, id int64) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	var u User
	err := r.db.GetContext(ctx, &u, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find user: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}

	return &u, nil
}

// Save inserts a user with ID 0 and otherwise updates the row guarded by its
// version.
func (r *repository) Save(ctx context.Context, u *User) error {
	if u.ID == 0 {
		return insert(ctx, r.db, u)
	}
	return update(ctx, r.db, u)
}

func insert(ctx context.Context, db core.DBTX, u *User) error {
	if u.ExternalSyncStatus == "" {
		u.ExternalSyncStatus = SyncNotSynced
	}

	query := `
		INSERT INTO users (email, password_hash, role, locked, failed_attempts,
		                   external_uid, external_sync_status, external_synced_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, version, created_at, updated_at`

	err := db.QueryRowxContext(ctx, query,
		NormalizeEmail(u.Email),
		u.PasswordHash,
		u.Role,
		u.Locked,
		u.FailedAttempts,
		u.ExternalUID,
		u.ExternalSyncStatus,
		u.ExternalSyncedAt,
	).Scan(&u.ID, &u.Version, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("create user: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("create user: %w", err)
	}

	u.Email = NormalizeEmail(u.Email)
	return nil
}

func update(ctx context.Context, db core.DBTX, u *User) error {
	query := `
		UPDATE users
		SET password_hash = $3, role = $4, locked = $5, failed_attempts = $6,
		    external_uid = $7, external_sync_status = $8,
		    external_synced_at = $9, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $2
		RETURNING version, updated_at`

	err := db.QueryRowxContext(ctx, query,
		u.ID,
		u.Version,
		u.PasswordHash,
		u.Role,
		u.Locked,
		u.FailedAttempts,
		u.ExternalUID,
		u.ExternalSyncStatus,
		u.ExternalSyncedAt,
	).Scan(&u.Version, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update user %d: %w", u.ID, core.ErrStaleVersion)
	}
	if err != nil {
		return fmt.Errorf("update user %d: %w", u.ID, err)
	}

	return nil
}

func (r *repository) UpdateLocked(
	ctx context.Context,
	email string,
	fn func(u *User) error,
) (*User, error) {
	var out *User

	err := core.InTx(ctx, r.db, func(tx *sqlx.Tx) error {
		u, err := findByEmail(ctx, tx, email, true)
		if err != nil {
			return err
		}

		if err := fn(u); err != nil {
			return err
		}

		if err := update(ctx, tx, u); err != nil {
			return err
		}

		out = u
		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

func (r *repository) ExistsByRoleIgnoreCase(
	ctx context.Context,
	role string,
) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE LOWER(role) = LOWER($1))`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, role); err != nil {
		return false, fmt.Errorf("check role exists: %w", err)
	}

	return exists, nil
}

func (r *repository) List(
	ctx context.Context,
	params ListUsersParams,
) ([]User, int, error) {
	params.Normalize()

	conditions := []string{"TRUE"}
	var args []any
	argIdx := 1

	if params.Search != "" {
		conditions = append(conditions, fmt.Sprintf("email ILIKE $%d", argIdx))
		args = append(args, "%"+escapeLike(params.Search)+"%")
		argIdx++
	}

	if params.Role != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(role) = LOWER($%d)", argIdx))
		args = append(args, params.Role)
		argIdx++
	}

	if params.LockedOnly {
		conditions = append(conditions, "locked")
	}

	whereClause := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf(
		"SELECT COUNT(*) FROM users WHERE %s",
		whereClause,
	)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM users
		WHERE %s
		ORDER BY id ASC
		LIMIT $%d OFFSET $%d`,
		userColumns, whereClause, argIdx, argIdx+1)

	args = append(args, params.PageSize, params.Offset())

	var users []User
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	return users, total, nil
}

func (r *repository) CountBySyncStatus(
	ctx context.Context,
) (map[string]int, error) {
	query := `
		SELECT external_sync_status AS status, COUNT(*) AS n
		FROM users
		WHERE LOWER(role) = 'user'
		GROUP BY external_sync_status`

	var rows []struct {
		Status string `db:"status"`
		N      int    `db:"n"`
	}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("count sync status: %w", err)
	}

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.N
	}
	return counts, nil
}

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
}
