// AngelaMos | 2026
// memory.go

package mirror

import (
	"context"
	"fmt"
	"sync"

	"github.com/carterperez-dev/roadwatch/internal/core"
)

// Memory is an in-process mirror used for development and tests.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]map[string]Fields
	reachable   bool
	failWrites  map[string]error
}

func NewMemory() *Memory {
	return &Memory{
		collections: make(map[string]map[string]Fields),
		reachable:   true,
		failWrites:  make(map[string]error),
	}
}

// SetReachable simulates the store going away or coming back.
func (m *Memory) SetReachable(reachable bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reachable = reachable
}

// FailWritesFor makes every write to document id fail with err. A nil err
// clears the failure.
func (m *Memory) FailWritesFor(id string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failWrites, id)
		return
	}
	m.failWrites[id] = err
}

func (m *Memory) Get(_ context.Context, collection, id string) (Fields, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.reachable {
		return nil, fmt.Errorf("mirror get %s/%s: %w", collection, id, core.ErrUnavailable)
	}

	doc, ok := m.collections[collection][id]
	if !ok {
		return nil, fmt.Errorf("mirror get %s/%s: %w", collection, id, core.ErrNotFound)
	}
	return doc.Clone(), nil
}

func (m *Memory) Set(
	_ context.Context,
	collection, id string,
	fields Fields,
	merge bool,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.writable(collection, id); err != nil {
		return err
	}

	coll := m.collection(collection)
	existing, ok := coll[id]
	if !merge || !ok {
		coll[id] = fields.Clone()
		return nil
	}

	for k, v := range fields {
		existing[k] = v
	}
	return nil
}

func (m *Memory) Update(
	_ context.Context,
	collection, id string,
	partial Fields,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.writable(collection, id); err != nil {
		return err
	}

	existing, ok := m.collections[collection][id]
	if !ok {
		return fmt.Errorf("mirror update %s/%s: %w", collection, id, core.ErrNotFound)
	}

	for k, v := range partial {
		existing[k] = v
	}
	return nil
}

func (m *Memory) Query(
	_ context.Context,
	collection string,
	p Predicate,
) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.reachable {
		return nil, fmt.Errorf("mirror query %s: %w", collection, core.ErrUnavailable)
	}

	var out []Record
	for id, doc := range m.collections[collection] {
		if p.Matches(doc) {
			out = append(out, Record{ID: id, Fields: doc.Clone()})
		}
	}
	SortByID(out)
	return out, nil
}

func (m *Memory) IsReachable(_ context.Context) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reachable
}

func (m *Memory) Close(_ context.Context) error {
	return nil
}

func (m *Memory) writable(collection, id string) error {
	if !m.reachable {
		return fmt.Errorf("mirror write %s/%s: %w", collection, id, core.ErrUnavailable)
	}
	if err := m.failWrites[id]; err != nil {
		return fmt.Errorf("mirror write %s/%s: %w", collection, id, err)
	}
	return nil
}

func (m *Memory) collection(name string) map[string]Fields {
	coll, ok := m.collections[name]
	if !ok {
		coll = make(map[string]Fields)
		m.collections[name] = coll
	}
	return coll
}

var _ Mirror = (*Memory)(nil)
