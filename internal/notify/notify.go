// AngelaMos | 2026
// notify.go

package notify

import (
	"context"
	"sync"
	"time"
)

const (
	SourceManager = "manager"
	SourceImport  = "import"
)

// StatusChange is published whenever a signalement moves to another status.
type StatusChange struct {
	SignalementID string    `json:"signalement_id"`
	From          string    `json:"from"`
	To            string    `json:"to"`
	Avancement    int       `json:"avancement"`
	Source        string    `json:"source"`
	ChangedBy     string    `json:"changed_by,omitempty"`
	ChangedAt     time.Time `json:"changed_at"`
}

type Publisher interface {
	PublishStatusChange(ctx context.Context, change StatusChange) error
	Close()
}

type Noop struct{}

func (Noop) PublishStatusChange(context.Context, StatusChange) error { return nil }

func (Noop) Close() {}

// Recorder keeps every published change in memory.
type Recorder struct {
	mu      sync.Mutex
	changes []StatusChange
}

func (r *Recorder) PublishStatusChange(_ context.Context, change StatusChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, change)
	return nil
}

func (r *Recorder) Close() {}

func (r *Recorder) Changes() []StatusChange {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]StatusChange, len(r.changes))
	copy(out, r.changes)
	return out
}
