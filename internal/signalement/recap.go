// AngelaMos | 2026
// recap.go

package signalement

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
)

const recapSheet = "Signalements"

var recapHeaders = []any{
	"ID", "Titre", "Statut", "Avancement (%)", "Niveau", "Surface (m2)",
	"Budget", "Entreprise", "Latitude", "Longitude", "Date signalement",
	"Date nouveau", "Date en cours", "Date termine",
}

// RecapWorkbook renders the manager recap as an xlsx file: one row per
// signalement plus a totals row.
func RecapWorkbook(rows []Signalement) ([]byte, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(recapSheet)
	if err != nil {
		f.Close() //nolint:errcheck // closing on the error path
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	//nolint:errcheck // the default sheet always exists
	_ = f.DeleteSheet("Sheet1")

	if err := writeRecap(f, rows); err != nil {
		f.Close() //nolint:errcheck // closing on the error path
		return nil, err
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close() //nolint:errcheck // closing on the error path
		return nil, fmt.Errorf("write workbook: %w", err)
	}

	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close workbook: %w", err)
	}

	return buf.Bytes(), nil
}

func writeRecap(f *excelize.File, rows []Signalement) error {
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	if err := f.SetSheetRow(recapSheet, "A1", &recapHeaders); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	lastCol, err := excelize.ColumnNumberToName(len(recapHeaders))
	if err != nil {
		return fmt.Errorf("header range: %w", err)
	}
	if err := f.SetCellStyle(recapSheet, "A1", lastCol+"1", headerStyle); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	var totalSurface, totalBudget float64
	for i, s := range rows {
		if s.SurfaceM2 != nil {
			totalSurface += *s.SurfaceM2
		}
		if s.Budget != nil {
			totalBudget += *s.Budget
		}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		values := recapRow(s)
		if err := f.SetSheetRow(recapSheet, cell, &values); err != nil {
			return fmt.Errorf("write row %s: %w", s.ID, err)
		}
	}

	totalCell, err := excelize.CoordinatesToCellName(1, len(rows)+2)
	if err != nil {
		return fmt.Errorf("totals row: %w", err)
	}
	totals := []any{"TOTAL", len(rows), "", "", "", totalSurface, totalBudget}
	if err := f.SetSheetRow(recapSheet, totalCell, &totals); err != nil {
		return fmt.Errorf("write totals: %w", err)
	}

	return f.SetPanes(recapSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func recapRow(s Signalement) []any {
	return []any{
		s.ID,
		s.Titre,
		s.Statut,
		s.Avancement(),
		derefOr(s.Niveau, ""),
		derefOr(s.SurfaceM2, ""),
		derefOr(s.Budget, ""),
		derefOr(s.Entreprise, ""),
		s.Latitude,
		s.Longitude,
		formatTime(s.DateSignalement),
		formatTime(s.DateNouveau),
		formatTime(s.DateEnCours),
		formatTime(s.DateTermine),
	}
}

func derefOr[T any](p *T, fallback any) any {
	if p == nil {
		return fallback
	}
	return *p
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.DateTime)
}
