package dataset

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"golang.org/x/text/unicode/norm"
)

// Row is one loaded record before it is bound to column names.
type Row struct {
	Values   []Value
	Geometry orb.Geometry
}

// Record is one segment: attribute cells keyed by column name plus geometry.
type Record struct {
	Values   map[string]Value
	Geometry orb.Geometry
}

// Get returns the cell for column, null when absent.
func (r Record) Get(column string) Value {
	return r.Values[column]
}

// Dataset is a tabular-with-geometry table with unique column names.
// It is never mutated after construction; derived datasets are new values.
type Dataset struct {
	columns    []string
	index      map[string]int
	records    []Record
	projection string
}

// New binds rows to columns. Column names are trimmed, NFC-normalized and
// made unique by suffixing, so two source columns named Width become Width
// and Width_1.
func New(columns []string, rows []Row, projection string) (*Dataset, error) {
	names := UniqueColumns(columns)
	records := make([]Record, len(rows))
	for i, row := range rows {
		if len(row.Values) != len(names) {
			return nil, fmt.Errorf("row %d has %d values, want %d", i+1, len(row.Values), len(names))
		}
		values := make(map[string]Value, len(names))
		for j, name := range names {
			values[name] = row.Values[j]
		}
		records[i] = Record{Values: values, Geometry: row.Geometry}
	}
	return build(names, records, projection), nil
}

func build(columns []string, records []Record, projection string) *Dataset {
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		index[c] = i
	}
	return &Dataset{columns: columns, index: index, records: records, projection: projection}
}

// UniqueColumns normalizes names and resolves collisions by appending _1,
// _2, ... to later occurrences. A generated name that collides with another
// column keeps counting.
func UniqueColumns(columns []string) []string {
	out := make([]string, len(columns))
	taken := make(map[string]bool, len(columns))
	for i, c := range columns {
		out[i] = norm.NFC.String(strings.TrimSpace(c))
		if out[i] == "" {
			out[i] = "column_" + strconv.Itoa(i+1)
		}
	}
	// First occurrences keep their name even when a later suffix would clash.
	first := make(map[string]int, len(out))
	for i, c := range out {
		if _, ok := first[c]; !ok {
			first[c] = i
			taken[c] = true
		}
	}
	counters := make(map[string]int)
	for i, c := range out {
		if first[c] == i {
			continue
		}
		n := counters[c]
		for {
			n++
			candidate := c + "_" + strconv.Itoa(n)
			if !taken[candidate] {
				out[i] = candidate
				taken[candidate] = true
				break
			}
		}
		counters[c] = n
	}
	return out
}

func (d *Dataset) Columns() []string   { return append([]string(nil), d.columns...) }
func (d *Dataset) Len() int            { return len(d.records) }
func (d *Dataset) Projection() string  { return d.projection }
func (d *Dataset) Record(i int) Record { return d.records[i] }

func (d *Dataset) HasColumn(name string) bool {
	_, ok := d.index[name]
	return ok
}

// Sample returns up to n leading records.
func (d *Dataset) Sample(n int) []Record {
	if n < 0 || n > len(d.records) {
		n = len(d.records)
	}
	return append([]Record(nil), d.records[:n]...)
}

// DuplicateRows counts records whose cells and geometry repeat an earlier record.
func (d *Dataset) DuplicateRows() int {
	seen := make(map[string]struct{}, len(d.records))
	dups := 0
	var b strings.Builder
	for _, r := range d.records {
		b.Reset()
		for _, c := range d.columns {
			v := r.Values[c]
			b.WriteByte(byte('0' + v.kind))
			b.WriteString(v.String())
			b.WriteByte(0)
		}
		if r.Geometry != nil {
			b.WriteString(wkt.MarshalString(r.Geometry))
		}
		key := b.String()
		if _, ok := seen[key]; ok {
			dups++
			continue
		}
		seen[key] = struct{}{}
	}
	return dups
}
