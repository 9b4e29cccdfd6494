// AngelaMos | 2026
// merge.go

package signalement

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/carterperez-dev/roadwatch/internal/core"
)

// Patch carries optional field values. A nil field means "keep what is
// there": a nil or absent incoming value never erases a stored one.
type Patch struct {
	Titre           *string
	Description     *string
	Latitude        *float64
	Longitude       *float64
	DateSignalement *time.Time
	SurfaceM2       *float64
	Budget          *float64
	Entreprise      *string
	Niveau          *int
	UserID          *int64
}

func (p Patch) IsEmpty() bool {
	return p == Patch{}
}

// Validate rejects values outside the domain ranges.
func (p Patch) Validate() error {
	if p.Latitude != nil && (*p.Latitude < -90 || *p.Latitude > 90) {
		return fmt.Errorf("latitude out of range: %w", core.ErrInvalidInput)
	}
	if p.Longitude != nil && (*p.Longitude < -180 || *p.Longitude > 180) {
		return fmt.Errorf("longitude out of range: %w", core.ErrInvalidInput)
	}
	if p.Niveau != nil && (*p.Niveau < MinNiveau || *p.Niveau > MaxNiveau) {
		return fmt.Errorf("niveau must be between %d and %d: %w",
			MinNiveau, MaxNiveau, core.ErrInvalidInput)
	}
	if p.SurfaceM2 != nil && *p.SurfaceM2 < 0 {
		return fmt.Errorf("surface must not be negative: %w", core.ErrInvalidInput)
	}
	if p.Budget != nil && *p.Budget < 0 {
		return fmt.Errorf("budget must not be negative: %w", core.ErrInvalidInput)
	}
	return nil
}

// ApplyPatch merges p into s field by field, non-null wins. It reports
// whether any stored value changed.
func (s *Signalement) ApplyPatch(p Patch) bool {
	changed := false

	changed = mergeValue(&s.Titre, p.Titre) || changed
	changed = mergeValue(&s.Description, p.Description) || changed
	changed = mergeValue(&s.Latitude, p.Latitude) || changed
	changed = mergeValue(&s.Longitude, p.Longitude) || changed
	changed = mergePtr(&s.SurfaceM2, p.SurfaceM2) || changed
	changed = mergePtr(&s.Budget, p.Budget) || changed
	changed = mergePtr(&s.Entreprise, p.Entreprise) || changed
	changed = mergePtr(&s.Niveau, p.Niveau) || changed
	changed = mergePtr(&s.UserID, p.UserID) || changed

	if p.DateSignalement != nil &&
		(s.DateSignalement == nil || !s.DateSignalement.Equal(*p.DateSignalement)) {
		t := *p.DateSignalement
		s.DateSignalement = &t
		changed = true
	}

	return changed
}

func mergeValue[T comparable](dst *T, src *T) bool {
	if src == nil || *dst == *src {
		return false
	}
	*dst = *src
	return true
}

func mergePtr[T comparable](dst **T, src *T) bool {
	if src == nil {
		return false
	}
	if *dst != nil && **dst == *src {
		return false
	}
	v := *src
	*dst = &v
	return true
}

var textPolicy = bluemonday.StrictPolicy()

const maxSanitizePasses = 4

// SanitizeText strips markup from free text coming from clients or the
// mirror. Entities are decoded so plain text survives round trips through
// the mirror unchanged, and the result is sanitized again until decoding no
// longer reveals markup. Input that keeps nesting entities past
// maxSanitizePasses is returned in bluemonday's escaped form.
func SanitizeText(s string) string {
	for range maxSanitizePasses {
		clean := html.UnescapeString(textPolicy.Sanitize(s))
		if clean == s {
			return strings.TrimSpace(clean)
		}
		s = clean
	}
	return strings.TrimSpace(textPolicy.Sanitize(s))
}

// Sanitize returns p with every free-text field stripped of markup.
func (p Patch) Sanitize() Patch {
	p.Titre = sanitizePtr(p.Titre)
	p.Description = sanitizePtr(p.Description)
	p.Entreprise = sanitizePtr(p.Entreprise)
	return p
}

func sanitizePtr(s *string) *string {
	if s == nil {
		return nil
	}
	clean := SanitizeText(*s)
	return &clean
}
