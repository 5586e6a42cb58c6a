// Package render turns the active view into payloads for the map, the
// table, the CSV download and the condition charts.
package render

import (
	"github.com/pavelength/pavelength/internal/dataset"
	"github.com/pavelength/pavelength/internal/mapping"
	"github.com/pavelength/pavelength/internal/schema"
)

// Source is everything an adapter reads. PCIColumn and SegmentColumn are the
// resolved columns used for coloring and labeling; PCIColumn may be empty.
type Source struct {
	View          dataset.View
	Registry      *schema.Registry
	Mapping       mapping.Confirmed
	PCIColumn     string
	SegmentColumn string
}

// NewSource binds a view of std to the mapping it was standardized with.
func NewSource(view dataset.View, std *dataset.Standardized, reg *schema.Registry) Source {
	return Source{
		View:          view,
		Registry:      reg,
		Mapping:       mapping.Confirmed(std.Mapping()),
		PCIColumn:     std.PCIColumn,
		SegmentColumn: std.SegmentColumn,
	}
}

// Condition classes shared by the map coloring and the condition chart.
const (
	Good    = "Good"
	Fair    = "Fair"
	Poor    = "Poor"
	Unrated = "Unrated"
)

// Classify buckets a PCI value the way the map colors it.
func Classify(pci dataset.Value) string {
	v, ok := pci.Float()
	switch {
	case !ok:
		return Unrated
	case v > 70:
		return Good
	case v > 40:
		return Fair
	default:
		return Poor
	}
}

var colors = map[string]string{
	Good:    "green",
	Fair:    "orange",
	Poor:    "red",
	Unrated: "gray",
}

// mappedColumns returns field/column pairs in registry order, skipping
// columns absent from the view and columns already claimed by an earlier
// field.
func (s Source) mappedColumns() (fields []schema.Field, cols []string) {
	if s.View.IsZero() {
		return nil, nil
	}
	ds := s.View.Dataset()
	seen := map[string]bool{}
	for _, f := range s.Registry.Fields() {
		col, ok := s.Mapping[f]
		if !ok || seen[col] || !ds.HasColumn(col) {
			continue
		}
		seen[col] = true
		fields = append(fields, f)
		cols = append(cols, col)
	}
	return fields, cols
}
