// AngelaMos | 2026
// document_test.go

package mirror

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/roadwatch/internal/signalement"
)

var testNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T {
	return &v
}

func TestEncodeDocumentGolden(t *testing.T) {
	reported := time.Date(2026, 2, 10, 8, 30, 0, 0, time.UTC)
	started := time.Date(2026, 2, 12, 14, 0, 0, 0, time.UTC)

	s := signalement.Signalement{
		ID:              "1790000000000000001",
		Titre:           "Nid de poule",
		Description:     "Route nationale 7, sortie sud",
		Latitude:        -18.8792,
		Longitude:       47.5079,
		DateSignalement: &reported,
		Statut:          signalement.StatusEnCours,
		SurfaceM2:       ptr(12.5),
		Budget:          ptr(1500000.0),
		Entreprise:      ptr("Colas"),
		Niveau:          ptr(7),
		DateNouveau:     &reported,
		DateEnCours:     &started,
		UserID:          ptr(int64(3)),
		Version:         4,
	}

	out, err := json.MarshalIndent(EncodeDocument(s, testNow), "", "  ")
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "encode_en_cours", out)
}

func TestEncodeDocumentOmitsNilFields(t *testing.T) {
	s := signalement.Signalement{
		ID:     "S1",
		Titre:  "Fissure",
		Statut: signalement.StatusNouveau,
	}

	f := EncodeDocument(s, testNow)

	for _, key := range []string{
		FieldSurfaceM2, FieldBudget, FieldEntreprise, FieldNiveau,
		FieldUserID, FieldDateSignalement, FieldDateEnCours, FieldDateTermine,
		FieldImportedToSQL, FieldImportedAt, FieldVersion,
	} {
		assert.NotContains(t, f, key)
	}
	assert.Equal(t, 0, f[FieldAvancement])
	assert.Equal(t, SchemaVersion, f[FieldSchemaVersion])
}

func TestDecodeDocumentNumbers(t *testing.T) {
	rec := Record{
		ID: "doc-1",
		Fields: Fields{
			FieldLatitude:  int64(-18),
			FieldLongitude: "47.5",
			FieldSurfaceM2: float32(3.5),
			FieldBudget:    int32(2000),
			FieldNiveau:    float64(4),
			FieldUserID:    "12",
		},
	}

	doc, warnings := DecodeDocument(rec, testNow)

	assert.Empty(t, warnings)
	assert.Equal(t, "doc-1", doc.ID)
	assert.Equal(t, -18.0, *doc.Latitude)
	assert.Equal(t, 47.5, *doc.Longitude)
	assert.Equal(t, 3.5, *doc.SurfaceM2)
	assert.Equal(t, 2000.0, *doc.Budget)
	assert.Equal(t, 4, *doc.Niveau)
	assert.Equal(t, int64(12), *doc.UserID)
	assert.Nil(t, doc.Titre)
}

func TestDecodeDocumentID(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want string
	}{
		{"string", "abc", "abc"},
		{"numeric", int64(42), "42"},
		{"float", float64(7), "7"},
		{"blank falls back to key", "  ", "key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, _ := DecodeDocument(Record{ID: "key", Fields: Fields{FieldID: tt.raw}}, testNow)
			assert.Equal(t, tt.want, doc.ID)
		})
	}
}

func TestDecodeDocumentDates(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want time.Time
	}{
		{"rfc3339", "2026-02-10T08:30:00+03:00", time.Date(2026, 2, 10, 5, 30, 0, 0, time.UTC)},
		{"sql datetime", "2026-02-10 08:30:00", time.Date(2026, 2, 10, 8, 30, 0, 0, time.UTC)},
		{"sql datetime fraction", "2026-02-10 08:30:00.5", time.Date(2026, 2, 10, 8, 30, 0, 500000000, time.UTC)},
		{"local iso", "2026-02-10T08:30:00", time.Date(2026, 2, 10, 8, 30, 0, 0, time.UTC)},
		{"date only", "2026-02-10", time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)},
		{"native", time.Date(2026, 2, 10, 8, 30, 0, 0, time.UTC), time.Date(2026, 2, 10, 8, 30, 0, 0, time.UTC)},
		{"timestamp map", map[string]any{"seconds": int64(1770712200), "nanoseconds": int64(0)}, time.Unix(1770712200, 0).UTC()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, warnings := DecodeDocument(
				Record{ID: "d", Fields: Fields{FieldDateSignalement: tt.raw}},
				testNow,
			)
			assert.Empty(t, warnings)
			require.NotNil(t, doc.DateSignalement)
			assert.True(t, tt.want.Equal(*doc.DateSignalement), "got %s", doc.DateSignalement)
		})
	}
}

func TestDecodeDocumentUnparseableCreationDateFallsBackToNow(t *testing.T) {
	doc, warnings := DecodeDocument(
		Record{ID: "d", Fields: Fields{
			FieldDateSignalement: "le 10 fevrier",
			FieldDateEnCours:     "hier",
		}},
		testNow,
	)

	require.NotNil(t, doc.DateSignalement)
	assert.True(t, testNow.Equal(*doc.DateSignalement))
	assert.Nil(t, doc.DateEnCours)
	assert.Len(t, warnings, 2)
}

func TestDecodeDocumentRejectsBadValues(t *testing.T) {
	doc, warnings := DecodeDocument(
		Record{ID: "d", Fields: Fields{
			FieldNiveau:   11,
			FieldTitre:    42,
			FieldLatitude: "north",
			FieldUserID:   -1,
		}},
		testNow,
	)

	assert.Nil(t, doc.Niveau)
	assert.Nil(t, doc.Titre)
	assert.Nil(t, doc.Latitude)
	assert.Nil(t, doc.UserID)
	assert.Len(t, warnings, 4)
}

func TestDecodeDocumentRoundTrip(t *testing.T) {
	reported := time.Date(2026, 2, 10, 8, 30, 0, 0, time.UTC)
	s := signalement.Signalement{
		ID:              "S9",
		Titre:           "Affaissement",
		Latitude:        1,
		Longitude:       2,
		DateSignalement: &reported,
		Statut:          signalement.StatusNouveau,
		Niveau:          ptr(3),
	}

	doc, warnings := DecodeDocument(Record{ID: "S9", Fields: EncodeDocument(s, testNow)}, testNow)

	assert.Empty(t, warnings)
	assert.Equal(t, "S9", doc.ID)
	assert.Equal(t, "Affaissement", *doc.Titre)
	assert.True(t, reported.Equal(*doc.DateSignalement))
	assert.Equal(t, 3, *doc.Niveau)
	assert.Equal(t, 0, *doc.Avancement)
	assert.Nil(t, doc.ImportedToSQL)

	p := doc.Patch()
	assert.Equal(t, "Affaissement", *p.Titre)
	assert.Nil(t, p.Budget)
}
