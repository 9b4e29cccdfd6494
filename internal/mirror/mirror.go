// AngelaMos | 2026
// mirror.go

package mirror

import (
	"context"
	"reflect"
	"slices"
	"sort"
)

// Collection holds the signalement documents read by mobile clients.
const Collection = "signalements"

// Fields is one document's field map as stored in the mirror.
type Fields map[string]any

type Record struct {
	ID     string
	Fields Fields
}

type Op int

const (
	OpAll Op = iota
	OpEquals
	OpMissing
)

type Predicate struct {
	Field string
	Op    Op
	Value any
}

func All() Predicate {
	return Predicate{Op: OpAll}
}

func Equals(field string, value any) Predicate {
	return Predicate{Field: field, Op: OpEquals, Value: value}
}

func Missing(field string) Predicate {
	return Predicate{Field: field, Op: OpMissing}
}

// Mirror is the gateway to the external document store. Set with merge
// only touches the given fields; without merge it replaces the document.
// Get and Update fail with core.ErrNotFound for an absent document, and any
// call on an unreachable store fails with core.ErrUnavailable.
type Mirror interface {
	Get(ctx context.Context, collection, id string) (Fields, error)
	Set(ctx context.Context, collection, id string, fields Fields, merge bool) error
	Update(ctx context.Context, collection, id string, partial Fields) error
	Query(ctx context.Context, collection string, p Predicate) ([]Record, error)
	IsReachable(ctx context.Context) bool
	Close(ctx context.Context) error
}

// Matches evaluates p against a document's fields.
func (p Predicate) Matches(f Fields) bool {
	switch p.Op {
	case OpAll:
		return true
	case OpEquals:
		v, ok := f[p.Field]
		if !ok {
			return false
		}
		if want, isBool := p.Value.(bool); isBool {
			if s, isString := v.(string); isString {
				return slices.Contains(boolSpellings(want), s)
			}
		}
		return reflect.DeepEqual(v, p.Value)
	case OpMissing:
		_, ok := f[p.Field]
		return !ok
	default:
		return false
	}
}

// boolSpellings lists the string forms strconv.ParseBool reads as b. Mobile
// clients sometimes write flags as strings, and an equality query on a
// boolean must still find them.
func boolSpellings(b bool) []string {
	if b {
		return []string{"1", "t", "T", "TRUE", "true", "True"}
	}
	return []string{"0", "f", "F", "FALSE", "false", "False"}
}

func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

func SortByID(records []Record) {
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
}
