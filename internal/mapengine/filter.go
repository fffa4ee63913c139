package mapengine

import (
	"fmt"
	"strings"

	"github.com/signalsfoundry/sites-fouilles-map/model"
)

// FilterOp is the kind of id filter applied to a layer.
type FilterOp int

const (
	// FilterIDIn keeps features whose id is in IDs. An empty IDs keeps nothing.
	FilterIDIn FilterOp = iota
	// FilterIDEquals keeps the single feature IDs[0].
	FilterIDEquals
	// FilterNothing keeps no feature.
	FilterNothing
)

// Filter is a layer display filter over feature ids. A nil *Filter means no
// filter: every feature is shown.
type Filter struct {
	Op  FilterOp
	IDs []model.FeatureID
}

// IDIn keeps only the given ids.
func IDIn(ids ...model.FeatureID) *Filter {
	return &Filter{Op: FilterIDIn, IDs: append([]model.FeatureID(nil), ids...)}
}

// IDEquals keeps exactly one id.
func IDEquals(id model.FeatureID) *Filter {
	return &Filter{Op: FilterIDEquals, IDs: []model.FeatureID{id}}
}

// MatchNothing hides every feature.
func MatchNothing() *Filter {
	return &Filter{Op: FilterNothing}
}

// Matches reports whether a feature id passes the filter. A nil filter
// matches everything.
func (f *Filter) Matches(id model.FeatureID) bool {
	if f == nil {
		return true
	}
	switch f.Op {
	case FilterIDEquals:
		return len(f.IDs) == 1 && f.IDs[0] == id
	case FilterIDIn:
		for _, candidate := range f.IDs {
			if candidate == id {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// String renders the filter as a style expression, for logs.
func (f *Filter) String() string {
	if f == nil {
		return "null"
	}
	switch f.Op {
	case FilterIDEquals:
		if len(f.IDs) == 1 {
			return fmt.Sprintf(`["==",["id"],%d]`, f.IDs[0])
		}
		return `["==",["id"],""]`
	case FilterIDIn:
		if len(f.IDs) == 0 {
			return `["in",["id"],""]`
		}
		parts := make([]string, len(f.IDs))
		for i, id := range f.IDs {
			parts[i] = id.String()
		}
		return fmt.Sprintf(`["in",["id"],["literal",[%s]]]`, strings.Join(parts, ","))
	default:
		return `["==",["id"],""]`
	}
}
