package render

import (
	"encoding/csv"
	"errors"
	"io"

	"github.com/pavelength/pavelength/internal/dataset"
)

// FallbackRows is the number of raw rows shown when nothing is mapped.
const FallbackRows = 20

// ExportFilename is the download name of the CSV export.
const ExportFilename = "filtered_segments.csv"

var ErrNothingToExport = errors.New("no mapped columns to export")

// Table is the tabular payload. Columns are expected field labels unless
// Fallback is set, in which case they are the raw column names.
type Table struct {
	Columns  []string          `json:"columns"`
	Rows     [][]dataset.Value `json:"rows"`
	Total    int               `json:"total"`
	Fallback bool              `json:"fallback"`
}

// BuildTable re-aliases the view to expected field labels. Columns outside
// the mapping are left out.
func BuildTable(src Source) Table {
	if src.View.IsZero() {
		return Table{Columns: []string{}, Rows: [][]dataset.Value{}}
	}
	fields, cols := src.mappedColumns()
	if len(cols) == 0 {
		return rawTable(src.View, FallbackRows)
	}

	t := Table{
		Columns: make([]string, len(fields)),
		Rows:    make([][]dataset.Value, 0, src.View.Len()),
		Total:   src.View.Len(),
	}
	for i, f := range fields {
		t.Columns[i] = string(f)
	}
	for _, rec := range src.View.Records() {
		row := make([]dataset.Value, len(cols))
		for i, c := range cols {
			row[i] = rec.Get(c)
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// RawTable is the first n rows of view under their source column names.
func RawTable(view dataset.View, n int) Table {
	if view.IsZero() {
		return Table{Columns: []string{}, Rows: [][]dataset.Value{}}
	}
	return rawTable(view, n)
}

func rawTable(view dataset.View, n int) Table {
	cols := view.Dataset().Columns()
	head := view.Head(n)
	t := Table{Columns: cols, Total: view.Len(), Fallback: true, Rows: make([][]dataset.Value, 0, head.Len())}
	for _, rec := range head.Records() {
		row := make([]dataset.Value, len(cols))
		for i, c := range cols {
			row[i] = rec.Get(c)
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// WriteCSV writes the re-aliased table. Raw fallback tables are not exported.
func WriteCSV(w io.Writer, t Table) error {
	if t.Fallback || len(t.Columns) == 0 {
		return ErrNothingToExport
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	record := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i, v := range row {
			record[i] = v.String()
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
