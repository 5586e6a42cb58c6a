package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	r := Default()

	fields := r.Fields()
	require.Len(t, fields, 13)
	assert.Equal(t, SegmentID, fields[0])
	assert.Equal(t, SegmentArea, fields[len(fields)-1])
	assert.Equal(t, SegmentID, r.Mandatory())

	assert.True(t, r.IsNumeric(PCI))
	assert.True(t, r.IsNumeric(LastRehab))
	assert.False(t, r.IsNumeric(Zone))
	assert.Equal(t, []string{"pci", "pavement condition index"}, r.Hints(PCI))
	assert.Nil(t, r.Hints("Functional class"))
}

func TestHintsAreCopies(t *testing.T) {
	r := Default()
	h := r.Hints(Zone)
	h[0] = "mutated"
	assert.Equal(t, "zone", r.Hints(Zone)[0])
}

func TestParseRejectsBadDocuments(t *testing.T) {
	cases := map[string]string{
		"no fields":      "fields: []",
		"no mandatory":   "fields:\n  - name: PCI\n",
		"two mandatory":  "fields:\n  - name: A\n    mandatory: true\n  - name: B\n    mandatory: true\n",
		"duplicate name": "fields:\n  - name: A\n    mandatory: true\n  - name: A\n",
		"unknown kind":   "fields:\n  - name: A\n    mandatory: true\n    kind: blob\n",
		"blank name":     "fields:\n  - name: \"  \"\n    mandatory: true\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestParseDefaultsKindToText(t *testing.T) {
	r, err := Parse([]byte("fields:\n  - name: Asset\n    mandatory: true\n    hints: [asset id]\n"))
	require.NoError(t, err)
	d, ok := r.Lookup("Asset")
	require.True(t, ok)
	assert.Equal(t, KindText, d.Kind)
	assert.Equal(t, Field("Asset"), r.Mandatory())
}

func TestLoadEmptyPathIsDefault(t *testing.T) {
	r, err := Load("")
	require.NoError(t, err)
	assert.Same(t, Default(), r)
}
