package loader

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pavelength/pavelength/internal/dataset"
)

// LoadError is fatal to an upload: the archive has to be fixed and sent again.
type LoadError struct {
	Reason string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("load archive: %s: %v", e.Reason, e.Err)
	}
	return "load archive: " + e.Reason
}

func (e *LoadError) Unwrap() error { return e.Err }

var ErrNoShapefile = errors.New("no .shp file found in archive")

// DefaultMaxExtract caps the uncompressed size of an archive.
const DefaultMaxExtract int64 = 1 << 30

// Loader extracts zipped shapefiles into temporary directories.
type Loader struct {
	TempDir    string
	MaxExtract int64
}

// Result is a loaded archive.
type Result struct {
	Dataset   *dataset.Dataset
	Shapefile string // path inside the archive
	Warnings  []string
}

// Load reads the first shapefile in the zip archive held by r.
func (l Loader) Load(r io.ReaderAt, size int64) (*Result, error) {
	zr, err := zip.NewReader(r, size)
	if errors.Is(err, zip.ErrInsecurePath) {
		return nil, &LoadError{Reason: "unsafe path in archive", Err: err}
	}
	if err != nil {
		return nil, &LoadError{Reason: "not a zip archive", Err: err}
	}

	dir, err := os.MkdirTemp(l.TempDir, "pavelength-*")
	if err != nil {
		return nil, &LoadError{Reason: "create temp dir", Err: err}
	}
	defer os.RemoveAll(dir)

	if err := l.extract(zr, dir); err != nil {
		return nil, err
	}

	shpPath, err := findShapefile(dir)
	if err != nil {
		return nil, err
	}
	rel, _ := filepath.Rel(dir, shpPath)

	ds, warnings, err := readShapefile(shpPath)
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		log.Printf("[loader] %s: %s", rel, w)
	}
	return &Result{Dataset: ds, Shapefile: filepath.ToSlash(rel), Warnings: warnings}, nil
}

// LoadFile is Load for an archive on disk.
func (l Loader) LoadFile(path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Reason: "open archive", Err: err}
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, &LoadError{Reason: "stat archive", Err: err}
	}
	return l.Load(f, info.Size())
}

// extract writes every regular file of zr below dir. Extensions are lower
// cased so sidecar lookups work for archives made on case-insensitive
// file systems.
func (l Loader) extract(zr *zip.Reader, dir string) error {
	budget := l.MaxExtract
	if budget <= 0 {
		budget = DefaultMaxExtract
	}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := filepath.FromSlash(f.Name)
		if clean := filepath.Clean(name); filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
			return &LoadError{Reason: fmt.Sprintf("unsafe path %q in archive", f.Name)}
		}
		ext := filepath.Ext(name)
		name = strings.TrimSuffix(name, ext) + strings.ToLower(ext)
		dst := filepath.Join(dir, name)

		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return &LoadError{Reason: "extract archive", Err: err}
		}
		n, err := copyEntry(f, dst, budget)
		if err != nil {
			return err
		}
		budget -= n
	}
	return nil
}

func copyEntry(f *zip.File, dst string, budget int64) (int64, error) {
	rc, err := f.Open()
	if err != nil {
		return 0, &LoadError{Reason: fmt.Sprintf("read %s", f.Name), Err: err}
	}
	defer rc.Close()

	out, err := os.Create(dst)
	if err != nil {
		return 0, &LoadError{Reason: "extract archive", Err: err}
	}
	defer out.Close()

	n, err := io.Copy(out, io.LimitReader(rc, budget+1))
	if err != nil {
		return n, &LoadError{Reason: fmt.Sprintf("read %s", f.Name), Err: err}
	}
	if n > budget {
		return n, &LoadError{Reason: "archive is too large once extracted"}
	}
	return n, nil
}

// findShapefile returns the first .shp below dir in lexical path order.
func findShapefile(dir string) (string, error) {
	var found []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && strings.HasPrefix(d.Name(), "__MACOSX") {
			return filepath.SkipDir
		}
		if !d.IsDir() && filepath.Ext(path) == ".shp" && !strings.HasPrefix(d.Name(), "._") {
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		return "", &LoadError{Reason: "scan archive", Err: err}
	}
	if len(found) == 0 {
		return "", &LoadError{Reason: "missing shapefile", Err: ErrNoShapefile}
	}
	sort.Strings(found)
	return found[0], nil
}
