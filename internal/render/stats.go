package render

import (
	"sort"

	"github.com/pavelength/pavelength/internal/schema"
)

// Bucket is one bar or slice of a chart.
type Bucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Stats is the data behind the condition pie and the category bar chart.
type Stats struct {
	Total      int          `json:"total"`
	Condition  []Bucket     `json:"condition"`
	Field      schema.Field `json:"field,omitempty"`
	Categories []Bucket     `json:"categories,omitempty"`
}

// ConditionStats counts the view per condition class and, when category is
// mapped, per distinct value of that field ordered by count.
func ConditionStats(src Source, category schema.Field) Stats {
	st := Stats{}
	if src.View.IsZero() {
		return st
	}
	st.Total = src.View.Len()

	counts := map[string]int{}
	for _, rec := range src.View.Records() {
		class := Unrated
		if src.PCIColumn != "" {
			class = Classify(rec.Get(src.PCIColumn))
		}
		counts[class]++
	}
	for _, class := range []string{Good, Fair, Poor, Unrated} {
		if counts[class] > 0 || class != Unrated {
			st.Condition = append(st.Condition, Bucket{Label: class, Count: counts[class]})
		}
	}

	col, ok := src.Mapping[category]
	if category == "" || !ok || !src.View.Dataset().HasColumn(col) {
		return st
	}
	st.Field = category
	values := map[string]int{}
	for _, rec := range src.View.Records() {
		v := rec.Get(col)
		if v.IsNull() {
			continue
		}
		values[v.String()]++
	}
	for label, n := range values {
		st.Categories = append(st.Categories, Bucket{Label: label, Count: n})
	}
	sort.Slice(st.Categories, func(i, j int) bool {
		a, b := st.Categories[i], st.Categories[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Label < b.Label
	})
	return st
}
