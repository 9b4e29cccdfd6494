// AngelaMos | 2026
// document.go

package mirror

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/carterperez-dev/roadwatch/internal/signalement"
)

// SchemaVersion is written into every exported document.
//
//	1: original field set (idSignalement .. id_user)
//	2: adds avancement, the three stage dates, niveau and schemaVersion
//	3: adds version, the relational row version the document was built from
const SchemaVersion = 3

const (
	FieldID              = "idSignalement"
	FieldTitre           = "titre"
	FieldDescription     = "description"
	FieldLatitude        = "latitude"
	FieldLongitude       = "longitude"
	FieldDateSignalement = "dateSignalement"
	FieldStatut          = "statut"
	FieldSurfaceM2       = "surfaceM2"
	FieldBudget          = "budget"
	FieldEntreprise      = "entreprise"
	FieldNiveau          = "niveau"
	FieldUserID          = "id_user"
	FieldAvancement      = "avancement"
	FieldDateNouveau     = "dateNouveau"
	FieldDateEnCours     = "dateEnCours"
	FieldDateTermine     = "dateTermine"
	FieldSchemaVersion   = "schemaVersion"
	FieldUpdatedAt       = "updatedAt"
	FieldVersion         = "version"

	// Mirror-only fields. The relational side never stores them and export
	// never writes them.
	FieldImportedToSQL = "importedToSQL"
	FieldImportedAt    = "importedAt"
)

// Document is the typed view of a signalement in the mirror. Every field is
// optional: nil means the document does not carry it.
type Document struct {
	ID              string
	Titre           *string
	Description     *string
	Latitude        *float64
	Longitude       *float64
	DateSignalement *time.Time
	Statut          *string
	SurfaceM2       *float64
	Budget          *float64
	Entreprise      *string
	Niveau          *int
	UserID          *int64
	Avancement      *int
	DateNouveau     *time.Time
	DateEnCours     *time.Time
	DateTermine     *time.Time
	Version         *int
	ImportedToSQL   *bool
}

type DecodeWarning struct {
	Field  string
	Raw    any
	Reason string
}

func (w DecodeWarning) String() string {
	return fmt.Sprintf("%s=%v: %s", w.Field, w.Raw, w.Reason)
}

// EncodeDocument builds the export payload for s. Nil optional fields are
// left out so a merge write never blanks data already in the mirror.
func EncodeDocument(s signalement.Signalement, now time.Time) Fields {
	f := Fields{
		FieldID:            s.ID,
		FieldTitre:         s.Titre,
		FieldDescription:   s.Description,
		FieldLatitude:      s.Latitude,
		FieldLongitude:     s.Longitude,
		FieldStatut:        s.Statut,
		FieldAvancement:    s.Avancement(),
		FieldSchemaVersion: SchemaVersion,
		FieldUpdatedAt:     formatTime(now),
	}

	putTime(f, FieldDateSignalement, s.DateSignalement)
	putTime(f, FieldDateNouveau, s.DateNouveau)
	putTime(f, FieldDateEnCours, s.DateEnCours)
	putTime(f, FieldDateTermine, s.DateTermine)

	if s.SurfaceM2 != nil {
		f[FieldSurfaceM2] = *s.SurfaceM2
	}
	if s.Budget != nil {
		f[FieldBudget] = *s.Budget
	}
	if s.Entreprise != nil {
		f[FieldEntreprise] = *s.Entreprise
	}
	if s.Niveau != nil {
		f[FieldNiveau] = *s.Niveau
	}
	if s.UserID != nil {
		f[FieldUserID] = *s.UserID
	}
	if s.Version > 0 {
		f[FieldVersion] = s.Version
	}

	return f
}

func putTime(f Fields, key string, t *time.Time) {
	if t != nil {
		f[key] = formatTime(*t)
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// DecodeDocument is the single read path from mirror fields to a Document.
// Numbers may arrive as any numeric kind or as numeric strings, dates as
// native times, RFC 3339, SQL date-time, date-only or epoch values. A field
// that cannot be read is dropped with a warning; an unreadable creation
// date falls back to now so the record is never lost.
func DecodeDocument(rec Record, now time.Time) (Document, []DecodeWarning) {
	d := &decoder{fields: rec.Fields, now: now}

	doc := Document{
		ID:              d.id(rec.ID),
		Titre:           d.text(FieldTitre),
		Description:     d.text(FieldDescription),
		Latitude:        d.float(FieldLatitude),
		Longitude:       d.float(FieldLongitude),
		DateSignalement: d.date(FieldDateSignalement, true),
		Statut:          d.text(FieldStatut),
		SurfaceM2:       d.float(FieldSurfaceM2),
		Budget:          d.float(FieldBudget),
		Entreprise:      d.text(FieldEntreprise),
		Niveau:          d.niveau(),
		UserID:          d.userID(),
		Avancement:      d.integer(FieldAvancement),
		DateNouveau:     d.date(FieldDateNouveau, false),
		DateEnCours:     d.date(FieldDateEnCours, false),
		DateTermine:     d.date(FieldDateTermine, false),
		Version:         d.integer(FieldVersion),
		ImportedToSQL:   d.boolean(FieldImportedToSQL),
	}

	return doc, d.warnings
}

// Patch turns the document's editable fields into a non-null-wins patch.
func (doc Document) Patch() signalement.Patch {
	return signalement.Patch{
		Titre:           doc.Titre,
		Description:     doc.Description,
		Latitude:        doc.Latitude,
		Longitude:       doc.Longitude,
		DateSignalement: doc.DateSignalement,
		SurfaceM2:       doc.SurfaceM2,
		Budget:          doc.Budget,
		Entreprise:      doc.Entreprise,
		Niveau:          doc.Niveau,
		UserID:          doc.UserID,
	}
}

type decoder struct {
	fields   Fields
	now      time.Time
	warnings []DecodeWarning
}

func (d *decoder) warn(field string, raw any, reason string) {
	d.warnings = append(d.warnings, DecodeWarning{Field: field, Raw: raw, Reason: reason})
}

func (d *decoder) lookup(field string) (any, bool) {
	v, ok := d.fields[field]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

func (d *decoder) id(fallback string) string {
	raw, ok := d.lookup(FieldID)
	if !ok {
		return fallback
	}

	switch v := raw.(type) {
	case string:
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	default:
		if f, ok := toFloat(v); ok && f == math.Trunc(f) {
			return strconv.FormatInt(int64(f), 10)
		}
	}

	d.warn(FieldID, raw, "unusable id, using document key")
	return fallback
}

func (d *decoder) text(field string) *string {
	raw, ok := d.lookup(field)
	if !ok {
		return nil
	}

	s, ok := raw.(string)
	if !ok {
		d.warn(field, raw, "not a string")
		return nil
	}
	return &s
}

func (d *decoder) float(field string) *float64 {
	raw, ok := d.lookup(field)
	if !ok {
		return nil
	}

	f, ok := toFloat(raw)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		d.warn(field, raw, "not a number")
		return nil
	}
	return &f
}

func (d *decoder) integer(field string) *int {
	f := d.float(field)
	if f == nil {
		return nil
	}
	if *f != math.Trunc(*f) {
		d.warn(field, *f, "not an integer")
		return nil
	}
	n := int(*f)
	return &n
}

func (d *decoder) niveau() *int {
	n := d.integer(FieldNiveau)
	if n == nil {
		return nil
	}
	if *n < signalement.MinNiveau || *n > signalement.MaxNiveau {
		d.warn(FieldNiveau, *n, "out of range 1..10")
		return nil
	}
	return n
}

func (d *decoder) userID() *int64 {
	raw, ok := d.lookup(FieldUserID)
	if !ok {
		return nil
	}

	f, ok := toFloat(raw)
	if !ok || f != math.Trunc(f) || f <= 0 {
		d.warn(FieldUserID, raw, "not a user id")
		return nil
	}
	id := int64(f)
	return &id
}

func (d *decoder) boolean(field string) *bool {
	raw, ok := d.lookup(field)
	if !ok {
		return nil
	}

	switch v := raw.(type) {
	case bool:
		return &v
	case string:
		b, err := strconv.ParseBool(v)
		if err == nil {
			return &b
		}
	}

	d.warn(field, raw, "not a boolean")
	return nil
}

// date reads a timestamp. With fallbackNow an unreadable value becomes now
// rather than being dropped.
func (d *decoder) date(field string, fallbackNow bool) *time.Time {
	raw, ok := d.lookup(field)
	if !ok {
		return nil
	}

	if t, ok := parseTime(raw); ok {
		return &t
	}

	if fallbackNow {
		d.warn(field, raw, "unparseable date, using import time")
		now := d.now
		return &now
	}

	d.warn(field, raw, "unparseable date")
	return nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	time.DateOnly,
}

func parseTime(raw any) (time.Time, bool) {
	switch v := raw.(type) {
	case time.Time:
		return v.UTC(), true
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), true
			}
		}
		return time.Time{}, false
	case map[string]any:
		return parseTimestampMap(v)
	default:
		if f, ok := toFloat(v); ok && f > 0 {
			return time.UnixMilli(int64(f)).UTC(), true
		}
		return time.Time{}, false
	}
}

// parseTimestampMap reads {seconds, nanoseconds} objects as written by
// mobile SDKs that serialize their native timestamp type.
func parseTimestampMap(m map[string]any) (time.Time, bool) {
	secRaw, ok := m["seconds"]
	if !ok {
		secRaw, ok = m["_seconds"]
	}
	if !ok {
		return time.Time{}, false
	}

	sec, ok := toFloat(secRaw)
	if !ok {
		return time.Time{}, false
	}

	var nanos float64
	for _, key := range []string{"nanoseconds", "_nanoseconds", "nanos"} {
		if n, ok := toFloat(m[key]); ok {
			nanos = n
			break
		}
	}

	return time.Unix(int64(sec), int64(nanos)).UTC(), true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
