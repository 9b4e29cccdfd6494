// AngelaMos | 2026
// service_test.go

package signalement

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/roadwatch/internal/core"
	"github.com/carterperez-dev/roadwatch/internal/notify"
	"github.com/carterperez-dev/roadwatch/internal/user"
)

type fakeOwners map[string]int64

func (f fakeOwners) GetByEmail(_ context.Context, email string) (*user.User, error) {
	id, ok := f[email]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", email, core.ErrNotFound)
	}
	return &user.User{ID: id, Email: email, Role: user.RoleUser}, nil
}

type recordingPusher struct {
	mu     sync.Mutex
	pushed []Signalement
}

func (p *recordingPusher) PushAsync(s Signalement) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushed = append(p.pushed, s)
}

func newTestService() (*Service, *MemoryRepository, *recordingPusher, *notify.Recorder) {
	repo := NewMemoryRepository()
	pusher := &recordingPusher{}
	rec := &notify.Recorder{}

	svc := NewService(ServiceConfig{
		Repo:      repo,
		IDs:       core.NewIDGenerator(1),
		Owners:    fakeOwners{"citoyen@example.com": 3},
		Pusher:    pusher,
		Publisher: rec,
	})
	svc.now = func() time.Time { return t2 }
	return svc, repo, pusher, rec
}

func TestServiceCreate(t *testing.T) {
	svc, repo, pusher, _ := newTestService()
	ctx := context.Background()

	got, err := svc.Create(ctx, CreateRequest{
		Titre:     "<b>Nid de poule</b>",
		Latitude:  -18.87,
		Longitude: 47.5,
		Niveau:    ptr(3),
	}, "citoyen@example.com")
	require.NoError(t, err)

	assert.NotEmpty(t, got.ID)
	assert.Equal(t, "Nid de poule", got.Titre)
	assert.Equal(t, StatusNouveau, got.Statut)
	assert.Equal(t, t2, *got.DateSignalement)
	assert.Equal(t, t2, *got.DateNouveau)
	assert.Equal(t, int64(3), *got.UserID)

	stored, err := repo.FindByID(ctx, got.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Version)

	require.Len(t, pusher.pushed, 1)
	assert.Equal(t, got.ID, pusher.pushed[0].ID)
}

func TestServiceCreateRejectsInvalidValues(t *testing.T) {
	svc, _, pusher, _ := newTestService()

	_, err := svc.Create(context.Background(), CreateRequest{
		Titre:    "x",
		Latitude: 120,
	}, "")
	assert.ErrorIs(t, err, core.ErrInvalidInput)
	assert.Empty(t, pusher.pushed)
}

func TestServiceCreateUnknownOwner(t *testing.T) {
	svc, _, _, _ := newTestService()

	_, err := svc.Create(context.Background(), CreateRequest{Titre: "x"}, "ghost@example.com")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestServiceChangeStatusPublishes(t *testing.T) {
	svc, repo, pusher, rec := newTestService()
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, &Signalement{
		ID:          "10",
		Titre:       "Fissure",
		Statut:      StatusNouveau,
		DateNouveau: &t0,
	}))

	got, err := svc.ChangeStatus(ctx, "10", "en cours", "manager@example.com")
	require.NoError(t, err)
	assert.Equal(t, StatusEnCours, got.Statut)
	assert.Equal(t, t2, *got.DateEnCours)
	assert.Equal(t, 2, got.Version)

	changes := rec.Changes()
	require.Len(t, changes, 1)
	assert.Equal(t, StatusNouveau, changes[0].From)
	assert.Equal(t, StatusEnCours, changes[0].To)
	assert.Equal(t, 50, changes[0].Avancement)
	assert.Equal(t, notify.SourceManager, changes[0].Source)
	assert.Len(t, pusher.pushed, 1)
}

func TestServiceUpdateWithoutStatusChangeDoesNotPublish(t *testing.T) {
	svc, repo, _, rec := newTestService()
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, &Signalement{ID: "10", Titre: "a", Statut: StatusNouveau}))

	got, err := svc.Update(ctx, "10", UpdateRequest{Budget: ptr(2500.0)}, "m")
	require.NoError(t, err)
	assert.Equal(t, "a", got.Titre)
	assert.Equal(t, 2500.0, *got.Budget)
	assert.Empty(t, rec.Changes())
}

func TestServiceUpdateMissing(t *testing.T) {
	svc, repo, _, _ := newTestService()

	_, err := svc.Update(context.Background(), "nope", UpdateRequest{Titre: ptr("x")}, "m")
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = repo.FindByID(context.Background(), "nope")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestServiceUpdateUnknownStatusLeavesRecord(t *testing.T) {
	svc, repo, _, _ := newTestService()
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, &Signalement{ID: "10", Titre: "a", Statut: StatusNouveau}))

	_, err := svc.Update(ctx, "10", UpdateRequest{
		Titre:  ptr("b"),
		Statut: ptr("archive"),
	}, "m")
	assert.ErrorIs(t, err, ErrUnknownStatus)

	stored, err := repo.FindByID(ctx, "10")
	require.NoError(t, err)
	assert.Equal(t, "a", stored.Titre)
	assert.Equal(t, 1, stored.Version)
}

func TestServiceListNormalizesStatusFilter(t *testing.T) {
	svc, repo, _, _ := newTestService()
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, &Signalement{ID: "1", Statut: StatusTermine}))
	require.NoError(t, repo.Save(ctx, &Signalement{ID: "2", Statut: StatusNouveau}))

	out, total, err := svc.List(ctx, ListParams{Statut: "Terminé"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "1", out[0].ID)

	_, _, err = svc.List(ctx, ListParams{Statut: "archive"})
	assert.ErrorIs(t, err, ErrUnknownStatus)
}
