package dataset

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelength/pavelength/internal/schema"
)

var line = orb.LineString{{-86.5, 39.1}, {-86.4, 39.2}}

func TestUniqueColumnsSuffixesDuplicates(t *testing.T) {
	got := UniqueColumns([]string{"Width", "PCI", "Width", " Width ", ""})
	assert.Equal(t, []string{"Width", "PCI", "Width_1", "Width_2", "column_5"}, got)
}

func TestUniqueColumnsAvoidsExistingSuffix(t *testing.T) {
	got := UniqueColumns([]string{"Width", "Width", "Width_1"})
	assert.Equal(t, []string{"Width", "Width_2", "Width_1"}, got)
}

func TestUniqueColumnsNormalizesUnicode(t *testing.T) {
	// Composed and decomposed forms collapse to the same name.
	got := UniqueColumns([]string{"Zon\u00e9", "Zone\u0301"})
	assert.Equal(t, []string{"Zon\u00e9", "Zon\u00e9_1"}, got)
}

func TestNewKeepsBothDuplicateColumns(t *testing.T) {
	ds, err := New([]string{"Width", "Width"}, []Row{
		{Values: []Value{Number(12), Number(14)}, Geometry: line},
	}, "")
	require.NoError(t, err)

	assert.Equal(t, []string{"Width", "Width_1"}, ds.Columns())
	rec := ds.Record(0)
	w, _ := rec.Get("Width").Float()
	w1, _ := rec.Get("Width_1").Float()
	assert.Equal(t, 12.0, w)
	assert.Equal(t, 14.0, w1)
}

func TestNewRejectsRaggedRows(t *testing.T) {
	_, err := New([]string{"A", "B"}, []Row{{Values: []Value{Text("x")}}}, "")
	assert.Error(t, err)
}

func TestDuplicateRows(t *testing.T) {
	ds, err := New([]string{"ID"}, []Row{
		{Values: []Value{Text("1")}, Geometry: line},
		{Values: []Value{Text("1")}, Geometry: line},
		{Values: []Value{Text("1")}, Geometry: orb.LineString{{0, 0}, {1, 1}}},
		{Values: []Value{Number(1)}, Geometry: line},
	}, "")
	require.NoError(t, err)
	assert.Equal(t, 1, ds.DuplicateRows())
}

func TestValidGeometry(t *testing.T) {
	ring := orb.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 0}}
	cases := []struct {
		name string
		g    orb.Geometry
		want bool
	}{
		{"nil", nil, false},
		{"point", orb.Point{1, 2}, true},
		{"nan point", orb.Point{math.NaN(), 2}, false},
		{"line", line, true},
		{"short line", orb.LineString{{0, 0}}, false},
		{"polygon", orb.Polygon{ring}, true},
		{"open ring", orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 1}}}, false},
		{"empty multiline", orb.MultiLineString{}, false},
		{"multiline", orb.MultiLineString{line, line}, true},
		{"multipolygon with bad part", orb.MultiPolygon{{ring}, {{{0, 0}}}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ValidGeometry(tc.g))
		})
	}
}

func TestParseNumber(t *testing.T) {
	f, ok := ParseNumber(Text(" 42.5 ")).Float()
	assert.True(t, ok)
	assert.Equal(t, 42.5, f)
	assert.True(t, ParseNumber(Text("n/a")).IsNull())
	assert.True(t, ParseNumber(Text("NaN")).IsNull())
	assert.True(t, ParseNumber(Null()).IsNull())
}

func TestStandardizeAliasesCoercesAndDrops(t *testing.T) {
	raw, err := New([]string{"SEG_ID", "PCI_SCORE", "ZONE"}, []Row{
		{Values: []Value{Text("1"), Text("90"), Text("North")}, Geometry: line},
		{Values: []Value{Text("2"), Text("bad"), Text("North")}, Geometry: line},
		{Values: []Value{Text("3"), Number(40), Text("South")}, Geometry: nil},
		{Values: []Value{Text("4"), Number(60), Text("South")}, Geometry: line},
	}, "GEOGCS[\"WGS 84\"]")
	require.NoError(t, err)

	std, err := Standardize(raw, schema.Default(), map[schema.Field]string{
		schema.SegmentID: "SEG_ID",
		schema.PCI:       "PCI_SCORE",
		schema.Zone:      "ZONE",
		schema.Width:     "",
	})
	require.NoError(t, err)

	assert.Equal(t, 2, std.Len())
	assert.Equal(t, 1, std.DroppedPCI)
	assert.Equal(t, 1, std.DroppedGeometry)
	assert.Equal(t, "PCI_SCORE", std.PCIColumn)
	assert.Equal(t, "SEG_ID", std.SegmentColumn)
	assert.Equal(t, raw.Projection(), std.Projection())

	for _, c := range []string{"SEG_ID", "PCI_SCORE", "ZONE", "Segment_ID", "PCI", "Zone"} {
		assert.True(t, std.HasColumn(c), c)
	}
	pci, ok := std.Record(0).Get("PCI").Float()
	require.True(t, ok)
	assert.Equal(t, 90.0, pci)
	_, ok = std.Record(0).Get("PCI_SCORE").Float()
	assert.True(t, ok)

	// The raw dataset still holds text cells and all four rows.
	assert.Equal(t, 4, raw.Len())
	_, isText := raw.Record(0).Get("PCI_SCORE").Str()
	assert.True(t, isText)
	assert.False(t, raw.HasColumn("PCI"))
}

func TestStandardizeKeepsExistingExpectedNameColumn(t *testing.T) {
	raw, err := New([]string{"ID", "PCI", "pci_score"}, []Row{
		{Values: []Value{Text("1"), Number(10), Number(80)}, Geometry: line},
	}, "")
	require.NoError(t, err)

	std, err := Standardize(raw, schema.Default(), map[schema.Field]string{
		schema.SegmentID: "ID",
		schema.PCI:       "pci_score",
	})
	require.NoError(t, err)

	old, _ := std.Record(0).Get("PCI").Float()
	assert.Equal(t, 10.0, old, "source PCI column must not be overwritten")
	assert.Equal(t, "pci_score", std.PCIColumn)
	assert.NotEmpty(t, std.Warnings)
}

func TestStandardizeWithoutPCIKeepsRows(t *testing.T) {
	raw, err := New([]string{"ID"}, []Row{{Values: []Value{Text("1")}, Geometry: line}}, "")
	require.NoError(t, err)

	std, err := Standardize(raw, schema.Default(), map[schema.Field]string{schema.SegmentID: "ID"})
	require.NoError(t, err)
	assert.Equal(t, 1, std.Len())
	assert.Empty(t, std.PCIColumn)
}

func TestStandardizeRejectsUnknownColumn(t *testing.T) {
	raw, err := New([]string{"ID"}, nil, "")
	require.NoError(t, err)
	_, err = Standardize(raw, schema.Default(), map[schema.Field]string{schema.SegmentID: "nope"})
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestViewSelectAndHead(t *testing.T) {
	raw, err := New([]string{"ID"}, []Row{
		{Values: []Value{Number(1)}, Geometry: line},
		{Values: []Value{Number(2)}, Geometry: line},
		{Values: []Value{Number(3)}, Geometry: line},
	}, "")
	require.NoError(t, err)

	all := All(raw)
	assert.Equal(t, 3, all.Len())
	assert.Equal(t, 2, all.Head(2).Len())
	assert.Equal(t, 3, all.Head(10).Len())

	odd, err := Select(raw, func(r Record) (bool, error) {
		f, _ := r.Get("ID").Float()
		return int(f)%2 == 1, nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, odd.Len())
	f, _ := odd.Record(1).Get("ID").Float()
	assert.Equal(t, 3.0, f)
}
