// AngelaMos | 2026
// workflow.go

package signalement

import (
	"fmt"
	"strings"
	"time"

	"github.com/carterperez-dev/roadwatch/internal/core"
)

const (
	StatusNouveau = "nouveau"
	StatusEnCours = "en cours"
	StatusTermine = "termine"
)

var ErrUnknownStatus = fmt.Errorf("unknown status: %w", core.ErrInvalidInput)

// NormalizeStatus folds case and the accented spelling of "terminé" onto
// the canonical stored values.
func NormalizeStatus(status string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case StatusNouveau:
		return StatusNouveau, nil
	case StatusEnCours:
		return StatusEnCours, nil
	case StatusTermine, "terminé":
		return StatusTermine, nil
	default:
		return "", fmt.Errorf("%q: %w", status, ErrUnknownStatus)
	}
}

// Avancement is the completion percentage derived from a status.
func Avancement(status string) int {
	norm, err := NormalizeStatus(status)
	if err != nil {
		return 0
	}

	switch norm {
	case StatusEnCours:
		return 50
	case StatusTermine:
		return 100
	default:
		return 0
	}
}

const (
	stageNouveau = iota
	stageEnCours
	stageTermine
)

// ApplyStatusChange moves s to newStatus and stamps the stage dates. Only
// unset stamps are written, and every written stamp is clamped between its
// neighbours so the (nouveau, en cours, termine) triple stays non-decreasing.
// Skipping a stage backfills the stages before it. Unknown statuses are
// rejected and s is returned untouched.
func ApplyStatusChange(
	s Signalement,
	newStatus string,
	now time.Time,
) (Signalement, error) {
	target, err := NormalizeStatus(newStatus)
	if err != nil {
		return s, err
	}

	if current, cerr := NormalizeStatus(s.Statut); cerr == nil && current == target {
		return s, nil
	}

	origin := now
	if s.DateSignalement != nil {
		origin = *s.DateSignalement
	}

	stamps := [3]**time.Time{&s.DateNouveau, &s.DateEnCours, &s.DateTermine}

	switch target {
	case StatusNouveau:
		stamp(stamps, stageNouveau, now)
	case StatusEnCours:
		stamp(stamps, stageNouveau, origin)
		stamp(stamps, stageEnCours, now)
	case StatusTermine:
		stamp(stamps, stageNouveau, origin)
		stamp(stamps, stageEnCours, now)
		stamp(stamps, stageTermine, now)
	}

	s.Statut = target
	return s, nil
}

func stamp(stamps [3]**time.Time, stage int, candidate time.Time) {
	if *stamps[stage] != nil {
		return
	}

	t := candidate
	for i := stage - 1; i >= 0; i-- {
		if prev := *stamps[i]; prev != nil {
			if t.Before(*prev) {
				t = *prev
			}
			break
		}
	}
	for i := stage + 1; i < len(stamps); i++ {
		if next := *stamps[i]; next != nil {
			if t.After(*next) {
				t = *next
			}
			break
		}
	}

	*stamps[stage] = &t
}
