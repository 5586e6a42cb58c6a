package mapping

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/pavelength/pavelength/internal/schema"
)

// State of the mapping workflow for one dataset.
type State string

const (
	Unmapped           State = "unmapped"
	Suggested          State = "suggested"
	PartiallyConfirmed State = "partially_confirmed"
	Submitted          State = "submitted"
)

// Confirmed is the submitted field->column mapping every downstream stage
// reads. Unmapped fields are absent.
type Confirmed map[schema.Field]string

func (c Confirmed) clone() Confirmed {
	out := make(Confirmed, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Columns returns the mapped actual columns, deduplicated and sorted.
func (c Confirmed) Columns() []string {
	seen := make(map[string]bool, len(c))
	out := make([]string, 0, len(c))
	for _, col := range c {
		if !seen[col] {
			seen[col] = true
			out = append(out, col)
		}
	}
	sort.Strings(out)
	return out
}

var (
	ErrSuggestionExists  = errors.New("a suggestion already exists; discard it to request a new one")
	ErrSuggestionPending = errors.New("a suggestion is already being computed")
	ErrNotSubmitted      = errors.New("column mapping has not been submitted")
	ErrFrozen            = errors.New("column mapping is submitted and can no longer change")
	ErrUnknownField      = errors.New("unknown field")
	ErrUnknownColumn     = errors.New("column not in dataset")
)

// MappingIncomplete rejects a submission that lacks mandatory fields.
type MappingIncomplete struct {
	Missing []schema.Field
}

func (e *MappingIncomplete) Error() string {
	names := make([]string, len(e.Missing))
	for i, f := range e.Missing {
		names[i] = string(f)
	}
	return "mapping incomplete: " + strings.Join(names, ", ") + " must be mapped"
}

// Reconciler merges an automatic suggestion with human selections for one
// dataset and gates everything downstream on an explicit submission.
type Reconciler struct {
	mu sync.Mutex

	reg     *schema.Registry
	columns []string
	known   map[string]bool

	state      State
	pending    bool
	suggestion Suggestion // nil until a suggestion is applied

	selections map[schema.Field]string
	human      map[schema.Field]bool
	confirmed  Confirmed
}

func NewReconciler(reg *schema.Registry, columns []string) *Reconciler {
	known := make(map[string]bool, len(columns))
	for _, c := range columns {
		known[c] = true
	}
	return &Reconciler{
		reg:        reg,
		columns:    append([]string(nil), columns...),
		known:      known,
		state:      Unmapped,
		selections: make(map[schema.Field]string),
		human:      make(map[schema.Field]bool),
	}
}

// BeginSuggest reserves the single suggestion slot. Callers that get nil
// must finish with ApplySuggestion or AbortSuggest.
func (r *Reconciler) BeginSuggest() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case r.state == Submitted:
		return ErrFrozen
	case r.pending:
		return ErrSuggestionPending
	case r.suggestion != nil:
		return ErrSuggestionExists
	}
	r.pending = true
	return nil
}

// AbortSuggest releases the slot without changing any mapping state.
func (r *Reconciler) AbortSuggest() {
	r.mu.Lock()
	r.pending = false
	r.mu.Unlock()
}

// ApplySuggestion records s and pre-fills every field the user has not
// touched. Values outside the dataset columns are ignored.
func (r *Reconciler) ApplySuggestion(s Suggestion) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = false
	if r.state == Submitted {
		return ErrFrozen
	}
	if r.suggestion != nil {
		return ErrSuggestionExists
	}

	r.suggestion = make(Suggestion, len(s))
	for f, col := range s {
		if !r.reg.Has(f) || !r.known[col] {
			continue
		}
		r.suggestion[f] = col
		if !r.human[f] {
			r.selections[f] = col
		}
	}
	r.refresh()
	return nil
}

// DiscardSuggestion drops the suggestion and the values it pre-filled.
// Human selections stay.
func (r *Reconciler) DiscardSuggestion() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == Submitted {
		return ErrFrozen
	}
	for f := range r.suggestion {
		if !r.human[f] {
			delete(r.selections, f)
		}
	}
	r.suggestion = nil
	r.refresh()
	return nil
}

// Select records a human choice for field. An empty column clears it.
func (r *Reconciler) Select(field schema.Field, column string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == Submitted {
		return ErrFrozen
	}
	if !r.reg.Has(field) {
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	if column != "" && !r.known[column] {
		return fmt.Errorf("%w: %q", ErrUnknownColumn, column)
	}

	r.human[field] = true
	if column == "" {
		delete(r.selections, field)
	} else {
		r.selections[field] = column
	}
	r.state = PartiallyConfirmed
	return nil
}

// Submit freezes the current selections once the mandatory field is mapped.
func (r *Reconciler) Submit() (Confirmed, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == Submitted {
		return r.confirmed.clone(), nil
	}
	if missing := r.missing(); len(missing) > 0 {
		return nil, &MappingIncomplete{Missing: missing}
	}
	r.confirmed = Confirmed(r.selections).clone()
	r.state = Submitted
	return r.confirmed.clone(), nil
}

// Confirmed is the downstream gate: it fails with ErrNotSubmitted until
// Submit succeeds.
func (r *Reconciler) Confirmed() (Confirmed, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Submitted {
		return nil, ErrNotSubmitted
	}
	return r.confirmed.clone(), nil
}

func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// refresh derives the pre-submission state from the current selections.
func (r *Reconciler) refresh() {
	switch {
	case len(r.human) > 0:
		r.state = PartiallyConfirmed
	case r.suggestion != nil:
		r.state = Suggested
	default:
		r.state = Unmapped
	}
}

func (r *Reconciler) missing() []schema.Field {
	var out []schema.Field
	for _, d := range r.reg.Definitions() {
		if d.Mandatory && r.selections[d.Name] == "" {
			out = append(out, d.Name)
		}
	}
	return out
}

// FieldChoice is one row of the manual mapping form.
type FieldChoice struct {
	Field     schema.Field `json:"field"`
	Mandatory bool         `json:"mandatory"`
	Column    string       `json:"column"`
	Suggested string       `json:"suggested,omitempty"`
	Human     bool         `json:"human"`
}

// Snapshot is the mapping workflow as shown to the user.
type Snapshot struct {
	State      State          `json:"state"`
	Pending    bool           `json:"pending"`
	Suggestion Suggestion     `json:"suggestion"`
	Fields     []FieldChoice  `json:"fields"`
	Options    []string       `json:"options"`
	Missing    []schema.Field `json:"missing"`
}

func (r *Reconciler) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Snapshot{
		State:   r.state,
		Pending: r.pending,
		Options: append([]string{""}, r.columns...),
		Missing: r.missing(),
	}
	if r.suggestion != nil {
		s.Suggestion = r.suggestion.clone()
	}
	selections := r.selections
	if r.state == Submitted {
		selections = r.confirmed
	}
	for _, d := range r.reg.Definitions() {
		s.Fields = append(s.Fields, FieldChoice{
			Field:     d.Name,
			Mandatory: d.Mandatory,
			Column:    selections[d.Name],
			Suggested: r.suggestion[d.Name],
			Human:     r.human[d.Name],
		})
	}
	return s
}
