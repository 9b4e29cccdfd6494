// AngelaMos | 2026
// repository.go

package signalement

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/carterperez-dev/roadwatch/internal/core"
)

// Repository is the relational issue store. Save inserts when Version is 0
// and otherwise performs a version-checked update: a concurrent writer makes
// it fail with core.ErrStaleVersion, an id already taken on insert with
// core.ErrDuplicateKey.
type Repository interface {
	FindByID(ctx context.Context, id string) (*Signalement, error)
	FindAll(ctx context.Context) ([]Signalement, error)
	List(ctx context.Context, params ListParams) ([]Signalement, int, error)
	Save(ctx context.Context, s *Signalement) error
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const signalementColumns = `id, titre, description, latitude, longitude,
		       date_signalement, statut, surface_m2, budget, entreprise, niveau,
		       date_nouveau, date_en_cours, date_termine, user_id,
		       version, created_at, updated_at`

func (r *repository) FindByID(
	ctx context.Context,
	id string,
) (*Signalement, error) {
	query := `SELECT ` + signalementColumns + ` FROM signalements WHERE id = $1`

	var s Signalement
	err := r.db.GetContext(ctx, &s, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find signalement %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find signalement %s: %w", id, err)
	}

	return &s, nil
}

func (r *repository) FindAll(ctx context.Context) ([]Signalement, error) {
	query := `SELECT ` + signalementColumns + ` FROM signalements ORDER BY id ASC`

	var out []Signalement
	if err := r.db.SelectContext(ctx, &out, query); err != nil {
		return nil, fmt.Errorf("list all signalements: %w", err)
	}

	return out, nil
}

func (r *repository) List(
	ctx context.Context,
	params ListParams,
) ([]Signalement, int, error) {
	params.Normalize()

	conditions := []string{"TRUE"}
	var args []any
	argIdx := 1

	if params.Statut != "" {
		conditions = append(conditions, fmt.Sprintf("statut = $%d", argIdx))
		args = append(args, params.Statut)
		argIdx++
	}

	if params.UserID != nil {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", argIdx))
		args = append(args, *params.UserID)
		argIdx++
	}

	whereClause := strings.Join(conditions, " AND ")

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM signalements WHERE %s", whereClause)
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count signalements: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM signalements
		WHERE %s
		ORDER BY date_signalement DESC NULLS LAST, id DESC
		LIMIT $%d OFFSET $%d`,
		signalementColumns, whereClause, argIdx, argIdx+1)

	args = append(args, params.PageSize, params.Offset())

	var out []Signalement
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list signalements: %w", err)
	}

	return out, total, nil
}

func (r *repository) Save(ctx context.Context, s *Signalement) error {
	if s.IsNew() {
		return r.insert(ctx, s)
	}
	return r.update(ctx, s)
}

func (r *repository) insert(ctx context.Context, s *Signalement) error {
	query := `
		INSERT INTO signalements (id, titre, description, latitude, longitude,
		    date_signalement, statut, surface_m2, budget, entreprise, niveau,
		    date_nouveau, date_en_cours, date_termine, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO NOTHING
		RETURNING version, created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		s.ID,
		s.Titre,
		s.Description,
		s.Latitude,
		s.Longitude,
		s.DateSignalement,
		s.Statut,
		s.SurfaceM2,
		s.Budget,
		s.Entreprise,
		s.Niveau,
		s.DateNouveau,
		s.DateEnCours,
		s.DateTermine,
		s.UserID,
	).Scan(&s.Version, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("insert signalement %s: %w", s.ID, core.ErrDuplicateKey)
	}
	if err != nil {
		return fmt.Errorf("insert signalement %s: %w", s.ID, err)
	}

	return nil
}

func (r *repository) update(ctx context.Context, s *Signalement) error {
	query := `
		UPDATE signalements
		SET titre = $3, description = $4, latitude = $5, longitude = $6,
		    date_signalement = $7, statut = $8, surface_m2 = $9, budget = $10,
		    entreprise = $11, niveau = $12, date_nouveau = $13,
		    date_en_cours = $14, date_termine = $15, user_id = $16,
		    version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $2
		RETURNING version, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		s.ID,
		s.Version,
		s.Titre,
		s.Description,
		s.Latitude,
		s.Longitude,
		s.DateSignalement,
		s.Statut,
		s.SurfaceM2,
		s.Budget,
		s.Entreprise,
		s.Niveau,
		s.DateNouveau,
		s.DateEnCours,
		s.DateTermine,
		s.UserID,
	).Scan(&s.Version, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update signalement %s: %w", s.ID, core.ErrStaleVersion)
	}
	if err != nil {
		return fmt.Errorf("update signalement %s: %w", s.ID, err)
	}

	return nil
}

const maxUpsertAttempts = 3

// Upsert loads the row for id (or starts a fresh one carrying that id),
// lets fn mutate it and saves it, retrying when another writer got there
// first. created tells fn whether the row is new.
func Upsert(
	ctx context.Context,
	repo Repository,
	id string,
	fn func(s *Signalement, created bool) error,
) (*Signalement, bool, error) {
	var lastErr error

	for attempt := 0; attempt < maxUpsertAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}

		current, err := repo.FindByID(ctx, id)
		created := false
		switch {
		case errors.Is(err, core.ErrNotFound):
			current = &Signalement{ID: id}
			created = true
		case err != nil:
			return nil, false, err
		}

		if err := fn(current, created); err != nil {
			return nil, false, err
		}

		err = repo.Save(ctx, current)
		if err == nil {
			return current, created, nil
		}

		if !errors.Is(err, core.ErrStaleVersion) &&
			!errors.Is(err, core.ErrDuplicateKey) {
			return nil, false, err
		}
		lastErr = err
	}

	return nil, false, fmt.Errorf(
		"upsert signalement %s after %d attempts: %w",
		id,
		maxUpsertAttempts,
		lastErr,
	)
}
