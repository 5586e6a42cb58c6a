package schema

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
)

// Field is an expected semantic role in the pavement survey schema.
type Field string

// Fields referenced by the query synonym rules and the presentation adapters.
const (
	SegmentID    Field = "Segment_ID"
	SegmentName  Field = "Segment name"
	RoadName     Field = "Road name"
	PCI          Field = "PCI"
	Width        Field = "Width"
	Thickness    Field = "Thickness"
	AADT         Field = "AADT"
	Length       Field = "Length"
	LastRehab    Field = "Last rehab year"
	PavementAge  Field = "Pavement age"
	PavementType Field = "Pavement type"
	Zone         Field = "Zone"
	SegmentArea  Field = "Segment area"
)

// Kind tells standardization whether a mapped column is parsed as a number.
type Kind string

const (
	KindText    Kind = "text"
	KindNumeric Kind = "numeric"
)

// Definition describes one expected field.
type Definition struct {
	Name      Field    `yaml:"name" json:"name"`
	Mandatory bool     `yaml:"mandatory" json:"mandatory"`
	Kind      Kind     `yaml:"kind" json:"kind"`
	Hints     []string `yaml:"hints" json:"hints"`
}

type document struct {
	Fields []Definition `yaml:"fields"`
}

//go:embed fields.yaml
var defaultDocument []byte

var ErrNoMandatory = errors.New("schema: exactly one mandatory field is required")

// Registry is the fixed, ordered list of expected fields. It is immutable
// after construction and safe for concurrent use.
type Registry struct {
	defs      []Definition
	index     map[Field]int
	mandatory Field
}

var defaultRegistry = mustParse(defaultDocument)

// Default returns the built-in pavement schema.
func Default() *Registry { return defaultRegistry }

// Load reads a registry document from path. An empty path yields Default().
func Load(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema %s: %w", path, err)
	}
	return Parse(data)
}

// Parse builds a registry from a YAML document.
func Parse(data []byte) (*Registry, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	if len(doc.Fields) == 0 {
		return nil, errors.New("schema: no fields defined")
	}

	r := &Registry{index: make(map[Field]int, len(doc.Fields))}
	mandatory := 0
	for i, d := range doc.Fields {
		d.Name = Field(strings.TrimSpace(string(d.Name)))
		if d.Name == "" {
			return nil, fmt.Errorf("schema: field %d has no name", i+1)
		}
		if _, dup := r.index[d.Name]; dup {
			return nil, fmt.Errorf("schema: duplicate field %q", d.Name)
		}
		switch d.Kind {
		case "":
			d.Kind = KindText
		case KindText, KindNumeric:
		default:
			return nil, fmt.Errorf("schema: field %q has unknown kind %q", d.Name, d.Kind)
		}
		if d.Mandatory {
			mandatory++
			r.mandatory = d.Name
		}
		r.index[d.Name] = len(r.defs)
		r.defs = append(r.defs, d)
	}
	if mandatory != 1 {
		return nil, ErrNoMandatory
	}
	return r, nil
}

func mustParse(data []byte) *Registry {
	r, err := Parse(data)
	if err != nil {
		panic(err)
	}
	return r
}

// Fields returns the expected fields in display order.
func (r *Registry) Fields() []Field {
	out := make([]Field, len(r.defs))
	for i, d := range r.defs {
		out[i] = d.Name
	}
	return out
}

// Definitions returns a copy of every field definition in display order.
func (r *Registry) Definitions() []Definition {
	out := make([]Definition, len(r.defs))
	for i, d := range r.defs {
		d.Hints = append([]string(nil), d.Hints...)
		out[i] = d
	}
	return out
}

func (r *Registry) Lookup(f Field) (Definition, bool) {
	i, ok := r.index[f]
	if !ok {
		return Definition{}, false
	}
	return r.defs[i], true
}

func (r *Registry) Has(f Field) bool {
	_, ok := r.index[f]
	return ok
}

// Mandatory is the field that must be mapped before a mapping can be submitted.
func (r *Registry) Mandatory() Field { return r.mandatory }

func (r *Registry) IsNumeric(f Field) bool {
	d, ok := r.Lookup(f)
	return ok && d.Kind == KindNumeric
}

// Hints returns the lexical hints for f, or nil for unknown fields.
func (r *Registry) Hints(f Field) []string {
	d, ok := r.Lookup(f)
	if !ok {
		return nil
	}
	return append([]string(nil), d.Hints...)
}
