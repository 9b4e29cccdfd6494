// AngelaMos | 2026
// entity.go

package user

import (
	"strings"
	"time"
)

type User struct {
	ID                 int64      `db:"id"`
	Email              string     `db:"email"`
	PasswordHash       string     `db:"password_hash"`
	Role               string     `db:"role"`
	Locked             bool       `db:"locked"`
	FailedAttempts     int        `db:"failed_attempts"`
	ExternalUID        *string    `db:"external_uid"`
	ExternalSyncStatus string     `db:"external_sync_status"`
	ExternalSyncedAt   *time.Time `db:"external_synced_at"`
	Version            int        `db:"version"`
	CreatedAt          time.Time  `db:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at"`
}

const (
	RoleUser    = "user"
	RoleManager = "manager"
)

const (
	SyncNotSynced = "NOT_SYNCED"
	SyncSyncing   = "SYNCING"
	SyncSynced    = "SYNCED"
	SyncError     = "SYNC_ERROR"
)

func (u *User) IsManager() bool {
	return strings.EqualFold(u.Role, RoleManager)
}

// EligibleForExternalSync reports whether the account belongs on the mobile
// identity provider. Only citizen accounts are mirrored there.
func (u *User) EligibleForExternalSync() bool {
	return strings.EqualFold(u.Role, RoleUser)
}

// RecordFailure counts one wrong password and locks the account when the
// counter reaches threshold. It reports whether the account is now locked.
func (u *User) RecordFailure(threshold int) bool {
	u.FailedAttempts++
	if u.FailedAttempts >= threshold {
		u.Locked = true
	}
	return u.Locked
}

func (u *User) ResetFailures() {
	u.FailedAttempts = 0
}

func (u *User) Unlock() {
	u.Locked = false
	u.FailedAttempts = 0
}

func (u *User) Block() {
	u.Locked = true
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func NormalizeRole(role string) string {
	role = strings.ToLower(strings.TrimSpace(role))
	role = strings.TrimPrefix(role, "role_")
	if role == "" {
		return RoleUser
	}
	return role
}
