// AngelaMos | 2026
// memory.go

package user

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/carterperez-dev/roadwatch/internal/core"
)

// MemoryRepository is an embedded credential store. Lockout updates for one
// email are serialized with a per-email mutex.
type MemoryRepository struct {
	mu      sync.RWMutex
	byID    map[int64]*User
	byEmail map[string]int64
	nextID  int64
	locks   sync.Map
	now     func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:    make(map[int64]*User),
		byEmail: make(map[string]int64),
		now:     time.Now,
	}
}

func (m *MemoryRepository) emailLock(email string) *sync.Mutex {
	l, _ := m.locks.LoadOrStore(email, &sync.Mutex{})
	return l.(*sync.Mutex) //nolint:forcetypeassert // only *sync.Mutex stored
}

func (m *MemoryRepository) FindByEmail(
	_ context.Context,
	email string,
) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byEmail[NormalizeEmail(email)]
	if !ok {
		return nil, fmt.Errorf("find user by email: %w", core.ErrNotFound)
	}
	cp := *m.byID[id]
	return &cp, nil
}

func (m *MemoryRepository) FindByID(_ context.Context, id int64) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.byID[id]
	if !ok {
		return nil, fmt.Errorf("find user: %w", core.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (m *MemoryRepository) Save(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked(u)
}

func (m *MemoryRepository) saveLocked(u *User) error {
	now := m.now()

	if u.ID == 0 {
		email := NormalizeEmail(u.Email)
		if _, exists := m.byEmail[email]; exists {
			return fmt.Errorf("create user: %w", core.ErrDuplicateKey)
		}
		m.nextID++
		u.ID = m.nextID
		u.Email = email
		u.Version = 1
		u.CreatedAt = now
		u.UpdatedAt = now
		if u.ExternalSyncStatus == "" {
			u.ExternalSyncStatus = SyncNotSynced
		}
		cp := *u
		m.byID[u.ID] = &cp
		m.byEmail[email] = u.ID
		return nil
	}

	current, ok := m.byID[u.ID]
	if !ok {
		return fmt.Errorf("update user %d: %w", u.ID, core.ErrNotFound)
	}
	if current.Version != u.Version {
		return fmt.Errorf("update user %d: %w", u.ID, core.ErrStaleVersion)
	}

	u.Version++
	u.UpdatedAt = now
	u.Email = current.Email
	cp := *u
	m.byID[u.ID] = &cp
	return nil
}

func (m *MemoryRepository) UpdateLocked(
	ctx context.Context,
	email string,
	fn func(u *User) error,
) (*User, error) {
	email = NormalizeEmail(email)
	l := m.emailLock(email)
	l.Lock()
	defer l.Unlock()

	u, err := m.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if err := fn(u); err != nil {
		return nil, err
	}

	if err := m.Save(ctx, u); err != nil {
		return nil, err
	}

	return u, nil
}

func (m *MemoryRepository) ExistsByRoleIgnoreCase(
	_ context.Context,
	role string,
) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.byID {
		if strings.EqualFold(u.Role, role) {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryRepository) List(
	_ context.Context,
	params ListUsersParams,
) ([]User, int, error) {
	params.Normalize()

	m.mu.RLock()
	matched := make([]User, 0, len(m.byID))
	for _, u := range m.byID {
		if params.Search != "" &&
			!strings.Contains(u.Email, strings.ToLower(params.Search)) {
			continue
		}
		if params.Role != "" && !strings.EqualFold(u.Role, params.Role) {
			continue
		}
		if params.LockedOnly && !u.Locked {
			continue
		}
		matched = append(matched, *u)
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	total := len(matched)
	start := params.Offset()
	if start > total {
		start = total
	}
	end := start + params.PageSize
	if end > total {
		end = total
	}

	return matched[start:end], total, nil
}

func (m *MemoryRepository) CountBySyncStatus(
	_ context.Context,
) (map[string]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[string]int)
	for _, u := range m.byID {
		if u.EligibleForExternalSync() {
			counts[u.ExternalSyncStatus]++
		}
	}
	return counts, nil
}

var _ Repository = (*MemoryRepository)(nil)
