// AngelaMos | 2026
// memory.go

package signalement

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/carterperez-dev/roadwatch/internal/core"
)

type MemoryRepository struct {
	mu   sync.RWMutex
	rows map[string]Signalement
	now  func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		rows: make(map[string]Signalement),
		now:  time.Now,
	}
}

func (m *MemoryRepository) FindByID(
	_ context.Context,
	id string,
) (*Signalement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.rows[id]
	if !ok {
		return nil, fmt.Errorf("find signalement %s: %w", id, core.ErrNotFound)
	}
	cp := clone(s)
	return &cp, nil
}

func (m *MemoryRepository) FindAll(_ context.Context) ([]Signalement, error) {
	m.mu.RLock()
	out := make([]Signalement, 0, len(m.rows))
	for _, s := range m.rows {
		out = append(out, clone(s))
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryRepository) List(
	ctx context.Context,
	params ListParams,
) ([]Signalement, int, error) {
	params.Normalize()

	all, err := m.FindAll(ctx)
	if err != nil {
		return nil, 0, err
	}

	matched := all[:0]
	for _, s := range all {
		if params.Statut != "" && s.Statut != params.Statut {
			continue
		}
		if params.UserID != nil && (s.UserID == nil || *s.UserID != *params.UserID) {
			continue
		}
		matched = append(matched, s)
	}

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

func (m *MemoryRepository) Save(_ context.Context, s *Signalement) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	current, exists := m.rows[s.ID]

	if s.IsNew() {
		if exists {
			return fmt.Errorf("insert signalement %s: %w", s.ID, core.ErrDuplicateKey)
		}
		s.Version = 1
		s.CreatedAt = now
		s.UpdatedAt = now
		m.rows[s.ID] = clone(*s)
		return nil
	}

	if !exists || current.Version != s.Version {
		return fmt.Errorf("update signalement %s: %w", s.ID, core.ErrStaleVersion)
	}

	s.Version++
	s.UpdatedAt = now
	m.rows[s.ID] = clone(*s)
	return nil
}

func clone(s Signalement) Signalement {
	s.DateSignalement = clonePtr(s.DateSignalement)
	s.SurfaceM2 = clonePtr(s.SurfaceM2)
	s.Budget = clonePtr(s.Budget)
	s.Entreprise = clonePtr(s.Entreprise)
	s.Niveau = clonePtr(s.Niveau)
	s.DateNouveau = clonePtr(s.DateNouveau)
	s.DateEnCours = clonePtr(s.DateEnCours)
	s.DateTermine = clonePtr(s.DateTermine)
	s.UserID = clonePtr(s.UserID)
	return s
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

var _ Repository = (*MemoryRepository)(nil)
