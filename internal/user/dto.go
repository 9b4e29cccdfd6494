// AngelaMos | 2026
// dto.go

package user

import (
	"time"
)

type UserResponse struct {
	ID                 int64      `json:"id"`
	Email              string     `json:"email"`
	Role               string     `json:"role"`
	Locked             bool       `json:"locked"`
	FailedAttempts     int        `json:"failed_attempts"`
	ExternalUID        *string    `json:"external_uid,omitempty"`
	ExternalSyncStatus string     `json:"external_sync_status"`
	ExternalSyncedAt   *time.Time `json:"external_synced_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

type ListUsersParams struct {
	Page       int    `json:"page"`
	PageSize   int    `json:"page_size"`
	Search     string `json:"search"`
	Role       string `json:"role"`
	LockedOnly bool   `json:"locked_only"`
}

func (p *ListUsersParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = 20
	}
	if p.PageSize > 100 {
		p.PageSize = 100
	}
}

func (p *ListUsersParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

type SyncStatusSummary struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"by_status"`
}

func ToUserResponse(u *User) UserResponse {
	return UserResponse{
		ID:                 u.ID,
		Email:              u.Email,
		Role:               u.Role,
		Locked:             u.Locked,
		FailedAttempts:     u.FailedAttempts,
		ExternalUID:        u.ExternalUID,
		ExternalSyncStatus: u.ExternalSyncStatus,
		ExternalSyncedAt:   u.ExternalSyncedAt,
		CreatedAt:          u.CreatedAt,
		UpdatedAt:          u.UpdatedAt,
	}
}

func ToUserResponseList(users []User) []UserResponse {
	responses := make([]UserResponse, 0, len(users))
	for i := range users {
		responses = append(responses, ToUserResponse(&users[i]))
	}
	return responses
}
