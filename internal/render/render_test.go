package render

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelength/pavelength/internal/dataset"
	"github.com/pavelength/pavelength/internal/mapping"
	"github.com/pavelength/pavelength/internal/schema"
)

func source(t *testing.T) Source {
	t.Helper()
	rows := []dataset.Row{
		{Values: []dataset.Value{dataset.Text("1"), dataset.Number(90), dataset.Text("North"), dataset.Text("a")},
			Geometry: orb.LineString{{0, 0}, {0.00001, 0.000005}, {2, 0}}},
		{Values: []dataset.Value{dataset.Text("2"), dataset.Number(50), dataset.Text("North"), dataset.Text("b")},
			Geometry: orb.LineString{{0, 2}, {2, 2}}},
		{Values: []dataset.Value{dataset.Text("3"), dataset.Number(10), dataset.Text("South & East"), dataset.Text("c")},
			Geometry: orb.Point{4, 4}},
	}
	raw, err := dataset.New([]string{"SEG_ID", "COND", "DIST", "NOTE"}, rows, "")
	require.NoError(t, err)
	std, err := dataset.Standardize(raw, schema.Default(), map[schema.Field]string{
		schema.SegmentID:   "SEG_ID",
		schema.SegmentName: "SEG_ID",
		schema.PCI:         "COND",
		schema.Zone:        "DIST",
	})
	require.NoError(t, err)
	return NewSource(dataset.All(std.Dataset), std, schema.Default())
}

func TestMapColorsAndPopups(t *testing.T) {
	layer := Map(source(t))
	require.Len(t, layer.Features.Features, 3)
	assert.Equal(t, "COND", layer.PCIColumn)
	assert.Equal(t, "SEG_ID", layer.SegmentColumn)
	assert.Equal(t, 12, layer.Zoom)

	var got []string
	for _, f := range layer.Features.Features {
		got = append(got, f.Properties.MustString("color"))
	}
	assert.Equal(t, []string{"green", "orange", "red"}, got)

	popup := layer.Features.Features[2].Properties.MustString("popup")
	assert.Equal(t, "<b>Segment_ID:</b> 3<br><b>PCI:</b> 10<br><b>Zone:</b> South &amp; East", popup)

	// The near-collinear vertex is simplified away.
	ls, ok := layer.Features.Features[0].Geometry.(orb.LineString)
	require.True(t, ok)
	assert.Len(t, ls, 2)

	_, err := json.Marshal(layer)
	assert.NoError(t, err)
}

func TestMapEmptyView(t *testing.T) {
	src := source(t)
	empty, err := dataset.Select(src.View.Dataset(), func(dataset.Record) (bool, error) { return false, nil })
	require.NoError(t, err)
	src.View = empty

	layer := Map(src)
	assert.Empty(t, layer.Features.Features)
	assert.Equal(t, orb.Point{0, 0}, layer.Center)
}

func TestMapWithoutPCIUsesDefaultColor(t *testing.T) {
	src := source(t)
	src.PCIColumn = ""
	layer := Map(src)
	assert.Equal(t, "gray", layer.Features.Features[0].Properties.MustString("color"))
}

func TestTableReAliasesAndExports(t *testing.T) {
	table := BuildTable(source(t))
	assert.False(t, table.Fallback)
	// Segment name shares SEG_ID with Segment_ID; the first field wins.
	assert.Equal(t, []string{"Segment_ID", "PCI", "Zone"}, table.Columns)
	assert.Equal(t, 3, table.Total)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, table))
	assert.Equal(t, "Segment_ID,PCI,Zone\n1,90,North\n2,50,North\n3,10,South & East\n", buf.String())
	assert.NotContains(t, buf.String(), "NOTE")
}

func TestTableFallsBackToRawSample(t *testing.T) {
	src := source(t)
	src.Mapping = mapping.Confirmed{schema.SegmentID: "missing"}
	table := BuildTable(src)
	assert.True(t, table.Fallback)
	assert.Contains(t, table.Columns, "NOTE")
	assert.Len(t, table.Rows, 3)
	assert.ErrorIs(t, WriteCSV(&bytes.Buffer{}, table), ErrNothingToExport)
}

func TestConditionStats(t *testing.T) {
	st := ConditionStats(source(t), schema.Zone)
	assert.Equal(t, 3, st.Total)
	assert.Equal(t, []Bucket{{Good, 1}, {Fair, 1}, {Poor, 1}}, st.Condition)
	assert.Equal(t, schema.Zone, st.Field)
	assert.Equal(t, []Bucket{{"North", 2}, {"South & East", 1}}, st.Categories)

	st = ConditionStats(source(t), schema.PavementType)
	assert.Empty(t, st.Categories)
}

func TestClassifyBoundaries(t *testing.T) {
	assert.Equal(t, Fair, Classify(dataset.Number(70)))
	assert.Equal(t, Good, Classify(dataset.Number(70.5)))
	assert.Equal(t, Poor, Classify(dataset.Number(40)))
	assert.Equal(t, Unrated, Classify(dataset.Text("n/a")))
}
