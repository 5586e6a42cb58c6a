package filter

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelength/pavelength/internal/dataset"
	"github.com/pavelength/pavelength/internal/schema"
)

func fixture(t *testing.T) *dataset.Standardized {
	t.Helper()
	line := orb.LineString{{0, 0}, {1, 1}}
	rows := []dataset.Row{}
	for i, z := range []string{"North", "South", "North", "East"} {
		rows = append(rows, dataset.Row{
			Values:   []dataset.Value{dataset.Number(float64(i + 1)), dataset.Number(float64(20 * (i + 1))), dataset.Text(z)},
			Geometry: line,
		})
	}
	raw, err := dataset.New([]string{"ID", "COND", "DIST"}, rows, "")
	require.NoError(t, err)
	std, err := dataset.Standardize(raw, schema.Default(), map[schema.Field]string{
		schema.SegmentID: "ID",
		schema.PCI:       "COND",
		schema.Zone:      "DIST",
	})
	require.NoError(t, err)
	return std
}

func ptr(f float64) *float64 { return &f }

func TestUnsetCriteriaIsNoop(t *testing.T) {
	std := fixture(t)
	for _, c := range []Criteria{
		{},
		{Ranges: map[schema.Field]Range{schema.PCI: {}, schema.AADT: {}}},
		{Selectors: map[schema.Field]Selector{schema.Zone: {}}},
	} {
		view, ok, err := Apply(std.Dataset, std, c)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, std.Len(), view.Len())
	}
}

func TestRangeIsInclusive(t *testing.T) {
	std := fixture(t)
	view, ok, err := Apply(std.Dataset, std, Criteria{
		Ranges: map[schema.Field]Range{schema.PCI: {Min: ptr(40), Max: ptr(60)}},
	})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, view.Len())

	view, _, err = Apply(std.Dataset, std, Criteria{
		Ranges: map[schema.Field]Range{schema.PCI: {Min: ptr(61)}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, view.Len())
}

func TestRangeAndSelectorCompose(t *testing.T) {
	std := fixture(t)
	view, ok, err := Apply(std.Dataset, std, Criteria{
		Ranges:    map[schema.Field]Range{schema.PCI: {Max: ptr(60)}},
		Selectors: map[schema.Field]Selector{schema.Zone: {Values: []string{"North"}}},
	})
	require.NoError(t, err)
	assert.True(t, ok)
	require.Equal(t, 2, view.Len())
	for _, r := range view.Records() {
		assert.Equal(t, "North", r.Get("DIST").String())
	}
}

func TestUnmappedFieldIsAnError(t *testing.T) {
	std := fixture(t)
	_, _, err := Apply(std.Dataset, std, Criteria{
		Ranges: map[schema.Field]Range{schema.AADT: {Min: ptr(1)}},
	})
	assert.ErrorIs(t, err, ErrUnmappedField)
}

func TestOptions(t *testing.T) {
	std := fixture(t)
	assert.Equal(t, []string{"North", "South", "East"}, Options(std.Dataset, "DIST"))
}
