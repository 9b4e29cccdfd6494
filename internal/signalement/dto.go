// AngelaMos | 2026
// dto.go

package signalement

import (
	"time"
)

type CreateRequest struct {
	Titre           string     `json:"titre"            validate:"required,min=1,max=255"`
	Description     string     `json:"description"      validate:"max=4000"`
	Latitude        float64    `json:"latitude"         validate:"latitude"`
	Longitude       float64    `json:"longitude"        validate:"longitude"`
	DateSignalement *time.Time `json:"date_signalement"`
	SurfaceM2       *float64   `json:"surface_m2"       validate:"omitempty,gte=0"`
	Budget          *float64   `json:"budget"           validate:"omitempty,gte=0"`
	Entreprise      *string    `json:"entreprise"       validate:"omitempty,max=255"`
	Niveau          *int       `json:"niveau"           validate:"omitempty,min=1,max=10"`
}

type UpdateRequest struct {
	Titre           *string    `json:"titre"            validate:"omitempty,min=1,max=255"`
	Description     *string    `json:"description"      validate:"omitempty,max=4000"`
	Latitude        *float64   `json:"latitude"         validate:"omitempty,latitude"`
	Longitude       *float64   `json:"longitude"        validate:"omitempty,longitude"`
	DateSignalement *time.Time `json:"date_signalement"`
	SurfaceM2       *float64   `json:"surface_m2"       validate:"omitempty,gte=0"`
	Budget          *float64   `json:"budget"           validate:"omitempty,gte=0"`
	Entreprise      *string    `json:"entreprise"       validate:"omitempty,max=255"`
	Niveau          *int       `json:"niveau"           validate:"omitempty,min=1,max=10"`
	Statut          *string    `json:"statut"           validate:"omitempty,max=32"`
}

func (r UpdateRequest) Patch() Patch {
	return Patch{
		Titre:           r.Titre,
		Description:     r.Description,
		Latitude:        r.Latitude,
		Longitude:       r.Longitude,
		DateSignalement: r.DateSignalement,
		SurfaceM2:       r.SurfaceM2,
		Budget:          r.Budget,
		Entreprise:      r.Entreprise,
		Niveau:          r.Niveau,
	}
}

type StatusRequest struct {
	Statut string `json:"statut" validate:"required,max=32"`
}

type Response struct {
	ID              string     `json:"id"`
	Titre           string     `json:"titre"`
	Description     string     `json:"description"`
	Latitude        float64    `json:"latitude"`
	Longitude       float64    `json:"longitude"`
	DateSignalement *time.Time `json:"date_signalement,omitempty"`
	Statut          string     `json:"statut"`
	Avancement      int        `json:"avancement"`
	SurfaceM2       *float64   `json:"surface_m2,omitempty"`
	Budget          *float64   `json:"budget,omitempty"`
	Entreprise      *string    `json:"entreprise,omitempty"`
	Niveau          *int       `json:"niveau,omitempty"`
	DateNouveau     *time.Time `json:"date_nouveau,omitempty"`
	DateEnCours     *time.Time `json:"date_en_cours,omitempty"`
	DateTermine     *time.Time `json:"date_termine,omitempty"`
	UserID          *int64     `json:"user_id,omitempty"`
	Version         int        `json:"version"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

type ListParams struct {
	Page     int
	PageSize int
	Statut   string
	UserID   *int64
}

func (p *ListParams) Normalize() {
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

func (p *ListParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

func ToResponse(s *Signalement) Response {
	return Response{
		ID:              s.ID,
		Titre:           s.Titre,
		Description:     s.Description,
		Latitude:        s.Latitude,
		Longitude:       s.Longitude,
		DateSignalement: s.DateSignalement,
		Statut:          s.Statut,
		Avancement:      s.Avancement(),
		SurfaceM2:       s.SurfaceM2,
		Budget:          s.Budget,
		Entreprise:      s.Entreprise,
		Niveau:          s.Niveau,
		DateNouveau:     s.DateNouveau,
		DateEnCours:     s.DateEnCours,
		DateTermine:     s.DateTermine,
		UserID:          s.UserID,
		Version:         s.Version,
		UpdatedAt:       s.UpdatedAt,
	}
}

func ToResponseList(rows []Signalement) []Response {
	out := make([]Response, 0, len(rows))
	for i := range rows {
		out = append(out, ToResponse(&rows[i]))
	}
	return out
}
