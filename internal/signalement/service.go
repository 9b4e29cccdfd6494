// AngelaMos | 2026
// service.go

package signalement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/carterperez-dev/roadwatch/internal/core"
	"github.com/carterperez-dev/roadwatch/internal/notify"
	"github.com/carterperez-dev/roadwatch/internal/user"
)

// Pusher mirrors one record to the document store without blocking the
// caller.
type Pusher interface {
	PushAsync(s Signalement)
}

type Owners interface {
	GetByEmail(ctx context.Context, email string) (*user.User, error)
}

type Service struct {
	repo      Repository
	ids       *core.IDGenerator
	owners    Owners
	pusher    Pusher
	publisher notify.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

type ServiceConfig struct {
	Repo      Repository
	IDs       *core.IDGenerator
	Owners    Owners
	Pusher    Pusher
	Publisher notify.Publisher
	Logger    *slog.Logger
}

func NewService(cfg ServiceConfig) *Service {
	s := &Service{
		repo:      cfg.Repo,
		ids:       cfg.IDs,
		owners:    cfg.Owners,
		pusher:    cfg.Pusher,
		publisher: cfg.Publisher,
		logger:    cfg.Logger,
		now:       time.Now,
	}
	if s.publisher == nil {
		s.publisher = notify.Noop{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// SetPusher wires the mirror pusher once the reconcile engine exists.
func (s *Service) SetPusher(p Pusher) {
	s.pusher = p
}

func (s *Service) Get(ctx context.Context, id string) (*Signalement, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *Service) List(
	ctx context.Context,
	params ListParams,
) ([]Signalement, int, error) {
	if params.Statut != "" {
		norm, err := NormalizeStatus(params.Statut)
		if err != nil {
			return nil, 0, err
		}
		params.Statut = norm
	}
	return s.repo.List(ctx, params)
}

func (s *Service) All(ctx context.Context) ([]Signalement, error) {
	return s.repo.FindAll(ctx)
}

// Create stores a new report owned by ownerEmail with status nouveau.
func (s *Service) Create(
	ctx context.Context,
	req CreateRequest,
	ownerEmail string,
) (*Signalement, error) {
	now := s.now()

	rec := &Signalement{
		ID:        s.ids.NewID(),
		Statut:    StatusNouveau,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
	}

	patch := Patch{
		Titre:           &req.Titre,
		Description:     &req.Description,
		DateSignalement: req.DateSignalement,
		SurfaceM2:       req.SurfaceM2,
		Budget:          req.Budget,
		Entreprise:      req.Entreprise,
		Niveau:          req.Niveau,
	}.Sanitize()

	if err := patch.Validate(); err != nil {
		return nil, err
	}
	rec.ApplyPatch(patch)

	if rec.DateSignalement == nil {
		rec.DateSignalement = &now
	}
	rec.DateNouveau = &now

	if ownerEmail != "" && s.owners != nil {
		owner, err := s.owners.GetByEmail(ctx, ownerEmail)
		if err != nil {
			return nil, fmt.Errorf("create signalement: owner: %w", err)
		}
		rec.UserID = &owner.ID
	}

	if err := s.repo.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("create signalement: %w", err)
	}

	s.push(*rec)
	return rec, nil
}

// Update applies a manager edit: non-null fields win, an optional status
// goes through the workflow.
func (s *Service) Update(
	ctx context.Context,
	id string,
	req UpdateRequest,
	editor string,
) (*Signalement, error) {
	patch := req.Patch().Sanitize()
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	var from string
	rec, _, err := Upsert(ctx, s.repo, id, func(rec *Signalement, created bool) error {
		if created {
			return fmt.Errorf("update signalement %s: %w", id, core.ErrNotFound)
		}
		from = rec.Statut
		rec.ApplyPatch(patch)

		if req.Statut != nil {
			next, err := ApplyStatusChange(*rec, *req.Statut, s.now())
			if err != nil {
				return err
			}
			*rec = next
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterWrite(ctx, rec, from, editor)
	return rec, nil
}

func (s *Service) ChangeStatus(
	ctx context.Context,
	id, status, editor string,
) (*Signalement, error) {
	return s.Update(ctx, id, UpdateRequest{Statut: &status}, editor)
}

func (s *Service) afterWrite(
	ctx context.Context,
	rec *Signalement,
	from, editor string,
) {
	if from != rec.Statut {
		change := notify.StatusChange{
			SignalementID: rec.ID,
			From:          from,
			To:            rec.Statut,
			Avancement:    rec.Avancement(),
			Source:        notify.SourceManager,
			ChangedBy:     editor,
			ChangedAt:     s.now(),
		}
		if err := s.publisher.PublishStatusChange(ctx, change); err != nil {
			s.logger.WarnContext(ctx, "status change notification failed",
				"signalement_id", rec.ID,
				"error", err,
			)
		}
	}

	s.push(*rec)
}

func (s *Service) push(rec Signalement) {
	if s.pusher != nil {
		s.pusher.PushAsync(rec)
	}
}
