package loader

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	shp "github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeRoads creates roads.shp with its sidecars in dir.
func writeRoads(t *testing.T, dir string) {
	t.Helper()
	w, err := shp.Create(filepath.Join(dir, "roads.shp"), shp.POLYLINE)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{
		shp.StringField("SEG_ID", 10),
		shp.NumberField("PCI_SCORE", 5),
		shp.StringField("ZONE", 16),
		shp.StringField("ZONE", 16),
	}))

	rows := []struct {
		id   string
		pci  int
		zone string
		dup  string
	}{
		{"A1", 90, "North", "x"},
		{"A2", 35, "Zon\xe9", "y"},
	}
	for i, r := range rows {
		line := shp.NewPolyLine([][]shp.Point{{{X: float64(i), Y: 0}, {X: float64(i) + 1, Y: 1}}})
		n := int(w.Write(line))
		require.NoError(t, w.WriteAttribute(n, 0, r.id))
		require.NoError(t, w.WriteAttribute(n, 1, r.pci))
		require.NoError(t, w.WriteAttribute(n, 2, r.zone))
		require.NoError(t, w.WriteAttribute(n, 3, r.dup))
	}
	w.Close()
	// go-shp names the table by appending "dbf" to the stripped base name.
	if _, err := os.Stat(filepath.Join(dir, "roadsdbf")); err == nil {
		require.NoError(t, os.Rename(filepath.Join(dir, "roadsdbf"), filepath.Join(dir, "roads.dbf")))
	}
	require.FileExists(t, filepath.Join(dir, "roads.dbf"))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "roads.cpg"), []byte("1252\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "roads.prj"), []byte(`GEOGCS["GCS_WGS_1984"]`), 0o644))
}

// zipDir packs the files of dir under prefix, upper-casing the .dbf
// extension the way some desktop tools do.
func zipDir(t *testing.T, dir, prefix string, extra map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		require.NoError(t, err)
		name := e.Name()
		if filepath.Ext(name) == ".dbf" {
			name = name[:len(name)-4] + ".DBF"
		}
		f, err := zw.Create(prefix + name)
		require.NoError(t, err)
		_, err = f.Write(data)
		require.NoError(t, err)
	}
	for name, body := range extra {
		f, err := zw.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestLoadShapefileArchive(t *testing.T) {
	src := t.TempDir()
	writeRoads(t, src)
	archive := zipDir(t, src, "survey/", map[string]string{"__MACOSX/survey/._roads.shp": "junk"})

	res, err := Loader{TempDir: t.TempDir()}.Load(bytes.NewReader(archive), int64(len(archive)))
	require.NoError(t, err)

	assert.Equal(t, "survey/roads.shp", res.Shapefile)
	ds := res.Dataset
	assert.Equal(t, []string{"SEG_ID", "PCI_SCORE", "ZONE", "ZONE_1"}, ds.Columns())
	assert.Equal(t, 2, ds.Len())
	assert.Equal(t, `GEOGCS["GCS_WGS_1984"]`, ds.Projection())
	assert.Empty(t, res.Warnings)

	first := ds.Record(0)
	id, _ := first.Get("SEG_ID").Str()
	assert.Equal(t, "A1", id)
	pci, ok := first.Get("PCI_SCORE").Float()
	require.True(t, ok)
	assert.Equal(t, 90.0, pci)
	assert.Equal(t, "x", first.Get("ZONE_1").String())
	assert.Equal(t, orb.LineString{{0, 0}, {1, 1}}, first.Geometry)

	zone, _ := ds.Record(1).Get("ZONE").Str()
	assert.Equal(t, "Zoné", zone)
}

func TestLoadRejectsNonZip(t *testing.T) {
	data := []byte("definitely not a zip")
	_, err := Loader{}.Load(bytes.NewReader(data), int64(len(data)))
	var le *LoadError
	assert.ErrorAs(t, err, &le)
}

func TestLoadWithoutShapefile(t *testing.T) {
	archive := zipDir(t, t.TempDir(), "", map[string]string{"readme.txt": "hello"})
	_, err := Loader{TempDir: t.TempDir()}.Load(bytes.NewReader(archive), int64(len(archive)))
	assert.ErrorIs(t, err, ErrNoShapefile)
}

func TestLoadRejectsUnsafePaths(t *testing.T) {
	archive := zipDir(t, t.TempDir(), "", map[string]string{"../evil.shp": "x"})
	_, err := Loader{TempDir: t.TempDir()}.Load(bytes.NewReader(archive), int64(len(archive)))
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Contains(t, le.Reason, "unsafe path")
}

func TestLoadEnforcesExtractLimit(t *testing.T) {
	archive := zipDir(t, t.TempDir(), "", map[string]string{"big.shp": string(make([]byte, 4096))})
	_, err := Loader{TempDir: t.TempDir(), MaxExtract: 1024}.Load(bytes.NewReader(archive), int64(len(archive)))
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Contains(t, le.Reason, "too large")
}

func TestMissingDBF(t *testing.T) {
	src := t.TempDir()
	writeRoads(t, src)
	require.NoError(t, os.Remove(filepath.Join(src, "roads.dbf")))
	archive := zipDir(t, src, "", nil)
	_, err := Loader{TempDir: t.TempDir()}.Load(bytes.NewReader(archive), int64(len(archive)))
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Contains(t, le.Reason, ".dbf")
}

func TestPolygonRingsGroupIntoPolygons(t *testing.T) {
	outer := []shp.Point{{X: 0, Y: 0}, {X: 0, Y: 10}, {X: 10, Y: 10}, {X: 10, Y: 0}, {X: 0, Y: 0}}
	hole := []shp.Point{{X: 2, Y: 2}, {X: 4, Y: 2}, {X: 4, Y: 4}, {X: 2, Y: 4}, {X: 2, Y: 2}}
	other := []shp.Point{{X: 20, Y: 0}, {X: 20, Y: 5}, {X: 25, Y: 5}, {X: 25, Y: 0}, {X: 20, Y: 0}}

	pts := append(append(append([]shp.Point{}, outer...), hole...), other...)
	g := polygons([]int32{0, 5, 10}, pts)
	mp, ok := g.(orb.MultiPolygon)
	require.True(t, ok, "got %T", g)
	require.Len(t, mp, 2)
	assert.Len(t, mp[0], 2)
	assert.Len(t, mp[1], 1)
}

func TestCodePageNames(t *testing.T) {
	for _, name := range []string{"1252", "CP1252", "windows-1252", "ANSI 1252"} {
		assert.Equal(t, "1252", normalizeCodePage(name), name)
	}
	assert.Equal(t, "88591", normalizeCodePage("ISO-8859-1"))
	assert.Equal(t, "UTF8", normalizeCodePage("utf-8"))
	assert.Equal(t, "Zoné", fallbackDecode("Zon\xe9"))
}
