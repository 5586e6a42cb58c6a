package dataset

import (
	"errors"
	"fmt"

	"github.com/pavelength/pavelength/internal/schema"
)

// Standardized is the dataset every query, filter and adapter works on once a
// mapping is submitted. Source columns stay queryable; expected-field aliases
// are added next to them.
type Standardized struct {
	*Dataset

	mapping map[schema.Field]string

	// PCIColumn is empty when PCI is unmapped; adapters fall back to default coloring.
	PCIColumn     string
	SegmentColumn string

	DroppedGeometry int
	DroppedPCI      int
	Warnings        []string
}

var ErrMissingColumn = errors.New("mapped column not in dataset")

// Standardize projects raw through a confirmed field->column mapping:
// aliases are copied (never moved), mapped numeric fields are coerced to
// numbers, rows without a numeric PCI are dropped, and records whose geometry
// is missing or invalid are dropped. raw is left untouched.
func Standardize(raw *Dataset, reg *schema.Registry, confirmed map[schema.Field]string) (*Standardized, error) {
	mapping := make(map[schema.Field]string, len(confirmed))
	for f, col := range confirmed {
		if col == "" {
			continue
		}
		if !raw.HasColumn(col) {
			return nil, fmt.Errorf("%w: %s -> %q", ErrMissingColumn, f, col)
		}
		mapping[f] = col
	}

	s := &Standardized{mapping: mapping}

	columns := raw.Columns()
	type alias struct{ from, to string }
	var aliases []alias
	numeric := make(map[string]bool)
	for _, f := range reg.Fields() {
		col, ok := mapping[f]
		if !ok {
			continue
		}
		if reg.IsNumeric(f) {
			numeric[col] = true
		}
		name := string(f)
		if name == col {
			continue
		}
		if raw.HasColumn(name) {
			s.Warnings = append(s.Warnings, fmt.Sprintf("source column %q kept as is; %s reads from %q", name, f, col))
			continue
		}
		aliases = append(aliases, alias{from: col, to: name})
		columns = append(columns, name)
	}

	if col, ok := mapping[schema.PCI]; ok {
		s.PCIColumn = col
	} else {
		s.Warnings = append(s.Warnings, "PCI is not mapped; default coloring will be used")
	}
	s.SegmentColumn = mapping[reg.Mandatory()]

	records := make([]Record, 0, raw.Len())
	for _, r := range raw.records {
		if !ValidGeometry(r.Geometry) {
			s.DroppedGeometry++
			continue
		}
		values := make(map[string]Value, len(columns))
		for k, v := range r.Values {
			if numeric[k] {
				v = ParseNumber(v)
			}
			values[k] = v
		}
		if s.PCIColumn != "" && values[s.PCIColumn].IsNull() {
			s.DroppedPCI++
			continue
		}
		for _, a := range aliases {
			values[a.to] = values[a.from]
		}
		records = append(records, Record{Values: values, Geometry: r.Geometry})
	}

	s.Dataset = build(columns, records, raw.projection)
	return s, nil
}

// Column returns the actual column mapped to f.
func (s *Standardized) Column(f schema.Field) (string, bool) {
	c, ok := s.mapping[f]
	return c, ok
}

// Mapping returns a copy of the field->column mapping the dataset was built from.
func (s *Standardized) Mapping() map[schema.Field]string {
	out := make(map[schema.Field]string, len(s.mapping))
	for k, v := range s.mapping {
		out[k] = v
	}
	return out
}
