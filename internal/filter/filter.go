// Package filter is the non-language filter path: per-field numeric ranges
// and categorical selections combined with AND.
package filter

import (
	"errors"
	"fmt"

	"github.com/pavelength/pavelength/internal/dataset"
	"github.com/pavelength/pavelength/internal/schema"
)

var ErrUnmappedField = errors.New("filter on unmapped field")

// Range bounds are inclusive; a nil bound is not applied.
type Range struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

func (r Range) unset() bool { return r.Min == nil && r.Max == nil }

// Selector keeps records whose value is one of Values. Empty is not applied.
type Selector struct {
	Values []string `json:"values,omitempty"`
}

// Criteria holds predicates keyed by expected field.
type Criteria struct {
	Ranges    map[schema.Field]Range    `json:"ranges,omitempty"`
	Selectors map[schema.Field]Selector `json:"selectors,omitempty"`
}

// IsNoop reports whether every predicate is unset.
func (c Criteria) IsNoop() bool {
	for _, r := range c.Ranges {
		if !r.unset() {
			return false
		}
	}
	for _, s := range c.Selectors {
		if len(s.Values) > 0 {
			return false
		}
	}
	return true
}

// Resolver maps an expected field to the standardized column holding it.
type Resolver interface {
	Column(f schema.Field) (string, bool)
}

// Apply returns the records of ds matching every set predicate. ok is false
// when c is a no-op so callers can keep their current view.
func Apply(ds *dataset.Dataset, cols Resolver, c Criteria) (view dataset.View, ok bool, err error) {
	if c.IsNoop() {
		return dataset.All(ds), false, nil
	}

	type rangePred struct {
		col string
		r   Range
	}
	type setPred struct {
		col string
		in  map[string]bool
	}
	var ranges []rangePred
	var sets []setPred
	for f, r := range c.Ranges {
		if r.unset() {
			continue
		}
		col, found := cols.Column(f)
		if !found {
			return dataset.View{}, false, fmt.Errorf("%w: range on %q", ErrUnmappedField, f)
		}
		ranges = append(ranges, rangePred{col, r})
	}
	for f, s := range c.Selectors {
		if len(s.Values) == 0 {
			continue
		}
		col, found := cols.Column(f)
		if !found {
			return dataset.View{}, false, fmt.Errorf("%w: selector on %q", ErrUnmappedField, f)
		}
		in := make(map[string]bool, len(s.Values))
		for _, v := range s.Values {
			in[v] = true
		}
		sets = append(sets, setPred{col, in})
	}

	view, err = dataset.Select(ds, func(rec dataset.Record) (bool, error) {
		for _, p := range ranges {
			v, isNum := rec.Get(p.col).Float()
			if !isNum {
				return false, nil
			}
			if p.r.Min != nil && v < *p.r.Min {
				return false, nil
			}
			if p.r.Max != nil && v > *p.r.Max {
				return false, nil
			}
		}
		for _, p := range sets {
			cell := rec.Get(p.col)
			if cell.IsNull() || !p.in[cell.String()] {
				return false, nil
			}
		}
		return true, nil
	})
	if err != nil {
		return dataset.View{}, false, err
	}
	return view, true, nil
}

// Options lists the distinct values of a categorical field in first-seen
// order, for building selectors.
func Options(ds *dataset.Dataset, column string) []string {
	seen := map[string]bool{}
	var out []string
	for i := 0; i < ds.Len(); i++ {
		v := ds.Record(i).Get(column)
		if v.IsNull() {
			continue
		}
		s := v.String()
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
