// AngelaMos | 2026
// entity.go

package signalement

import (
	"time"
)

// Signalement is a reported road defect. ID is shared with the mirror and
// never re-minted once assigned.
type Signalement struct {
	ID              string     `db:"id"`
	Titre           string     `db:"titre"`
	Description     string     `db:"description"`
	Latitude        float64    `db:"latitude"`
	Longitude       float64    `db:"longitude"`
	DateSignalement *time.Time `db:"date_signalement"`
	Statut          string     `db:"statut"`
	SurfaceM2       *float64   `db:"surface_m2"`
	Budget          *float64   `db:"budget"`
	Entreprise      *string    `db:"entreprise"`
	Niveau          *int       `db:"niveau"`
	DateNouveau     *time.Time `db:"date_nouveau"`
	DateEnCours     *time.Time `db:"date_en_cours"`
	DateTermine     *time.Time `db:"date_termine"`
	UserID          *int64     `db:"user_id"`
	Version         int        `db:"version"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
}

func (s *Signalement) IsNew() bool {
	return s.Version == 0
}

func (s *Signalement) Avancement() int {
	return Avancement(s.Statut)
}

const (
	MinNiveau = 1
	MaxNiveau = 10
)
