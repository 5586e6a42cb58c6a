// Package session holds the per-upload state: the loaded dataset, the
// mapping workflow, the standardized dataset and the active view. All
// mutation goes through the methods below.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/pavelength/pavelength/internal/audit"
	"github.com/pavelength/pavelength/internal/dataset"
	"github.com/pavelength/pavelength/internal/filter"
	"github.com/pavelength/pavelength/internal/loader"
	"github.com/pavelength/pavelength/internal/mapping"
	"github.com/pavelength/pavelength/internal/query"
	"github.com/pavelength/pavelength/internal/render"
	"github.com/pavelength/pavelength/internal/schema"
)

var (
	ErrBusy     = errors.New("a previous request for this step is still running")
	ErrNotFound = errors.New("session not found")
)

// Slots guarding in-flight work.
const (
	SlotSuggest = "suggest"
	SlotFilter  = "filter"
)

// SampleRows is the default sample size of a freshly loaded dataset.
const SampleRows = 20

// Deps are the collaborators shared by every session.
type Deps struct {
	Registry   *schema.Registry
	Resolver   *mapping.Resolver
	Translator *query.Translator
	Recorder   audit.Recorder
	// Timeout bounds each language-model call. Zero means no extra bound.
	Timeout time.Duration
}

// Session is the explorer state of one uploaded archive.
type Session struct {
	ID string

	deps      Deps
	raw       *dataset.Dataset
	shapefile string
	warnings  []string
	rec       *mapping.Reconciler
	events    *hub

	mu         sync.Mutex
	busy       map[string]bool
	std        *dataset.Standardized
	view       dataset.View
	expression string
	touched    time.Time
}

func newSession(id string, deps Deps, res *loader.Result, now time.Time) *Session {
	if deps.Recorder == nil {
		deps.Recorder = audit.Nop{}
	}
	return &Session{
		ID:        id,
		deps:      deps,
		raw:       res.Dataset,
		shapefile: res.Shapefile,
		warnings:  append([]string(nil), res.Warnings...),
		rec:       mapping.NewReconciler(deps.Registry, res.Dataset.Columns()),
		events:    newHub(),
		busy:      make(map[string]bool),
		touched:   now,
	}
}

// Summary describes the loaded dataset.
type Summary struct {
	ID            string   `json:"session_id"`
	Shapefile     string   `json:"shapefile"`
	Rows          int      `json:"rows"`
	DuplicateRows int      `json:"duplicate_rows"`
	Projection    string   `json:"projection"`
	Columns       []string `json:"columns"`
	Warnings      []string `json:"warnings,omitempty"`
}

func (s *Session) Summary() Summary {
	return Summary{
		ID:            s.ID,
		Shapefile:     s.shapefile,
		Rows:          s.raw.Len(),
		DuplicateRows: s.raw.DuplicateRows(),
		Projection:    s.raw.Projection(),
		Columns:       s.raw.Columns(),
		Warnings:      s.warnings,
	}
}

// Sample returns the first n raw records.
func (s *Session) Sample(n int) render.Table {
	return render.RawTable(dataset.All(s.raw), n)
}

func (s *Session) Mapping() mapping.Snapshot { return s.rec.Snapshot() }

// Events streams slot status changes until cancel is called.
func (s *Session) Events() (<-chan Event, func()) { return s.events.subscribe() }

func (s *Session) publish(slot, status, msg string) {
	s.events.publish(Event{Slot: slot, Status: status, Message: msg, At: time.Now()})
}

func (s *Session) acquire(slot string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy[slot] {
		return ErrBusy
	}
	s.busy[slot] = true
	return nil
}

func (s *Session) release(slot string) {
	s.mu.Lock()
	delete(s.busy, slot)
	s.mu.Unlock()
}

func (s *Session) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.deps.Timeout > 0 {
		return context.WithTimeout(ctx, s.deps.Timeout)
	}
	return context.WithCancel(ctx)
}

// Suggest asks the resolver for a mapping suggestion. A failed call leaves
// the mapping exactly as it was and returns the *mapping.SuggestionError.
func (s *Session) Suggest(ctx context.Context) (mapping.Snapshot, error) {
	if err := s.rec.BeginSuggest(); err != nil {
		return s.rec.Snapshot(), err
	}
	s.publish(SlotSuggest, StatusWorking, "")

	cctx, cancel := s.callContext(ctx)
	suggestion, err := s.deps.Resolver.Suggest(cctx, s.raw.Columns())
	cancel()
	if err != nil {
		s.rec.AbortSuggest()
		log.Printf("[session] %s: %v", s.ID, err)
		s.publish(SlotSuggest, StatusError, err.Error())
		return s.rec.Snapshot(), err
	}
	if err := s.rec.ApplySuggestion(suggestion); err != nil {
		s.publish(SlotSuggest, StatusError, err.Error())
		return s.rec.Snapshot(), err
	}
	s.publish(SlotSuggest, StatusIdle, "")
	return s.rec.Snapshot(), nil
}

// DiscardSuggestion drops the current suggestion. The resolver cache is
// cleared too, so the next Suggest is a fresh model call.
func (s *Session) DiscardSuggestion() (mapping.Snapshot, error) {
	if err := s.rec.DiscardSuggestion(); err != nil {
		return s.rec.Snapshot(), err
	}
	s.deps.Resolver.Forget(s.raw.Columns())
	return s.rec.Snapshot(), nil
}

func (s *Session) Select(field schema.Field, column string) (mapping.Snapshot, error) {
	err := s.rec.Select(field, column)
	return s.rec.Snapshot(), err
}

// Submit freezes the mapping and builds the standardized dataset. The full
// standardized dataset becomes the active view.
func (s *Session) Submit(ctx context.Context) (mapping.Snapshot, error) {
	confirmed, err := s.rec.Submit()
	if err != nil {
		return s.rec.Snapshot(), err
	}

	s.mu.Lock()
	if s.std != nil {
		s.mu.Unlock()
		return s.rec.Snapshot(), nil
	}
	std, err := dataset.Standardize(s.raw, s.deps.Registry, confirmed)
	if err != nil {
		s.mu.Unlock()
		return s.rec.Snapshot(), fmt.Errorf("standardize: %w", err)
	}
	s.std = std
	s.view = dataset.All(std.Dataset)
	s.mu.Unlock()

	for _, w := range std.Warnings {
		log.Printf("[session] %s: %s", s.ID, w)
	}

	fields := make([]string, 0, len(confirmed))
	for f := range confirmed {
		fields = append(fields, string(f))
	}
	sort.Strings(fields)
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = confirmed[schema.Field(f)]
	}
	if err := s.deps.Recorder.MappingSubmitted(ctx, &audit.MappingSubmission{
		SessionID: s.ID,
		Shapefile: s.shapefile,
		Rows:      std.Len(),
		Fields:    fields,
		Columns:   columns,
	}); err != nil {
		log.Printf("[session] %s: record mapping: %v", s.ID, err)
	}
	return s.rec.Snapshot(), nil
}

// Standardized returns the standardized dataset, or ErrNotSubmitted.
func (s *Session) Standardized() (*dataset.Standardized, error) {
	if _, err := s.rec.Confirmed(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.std == nil {
		return nil, mapping.ErrNotSubmitted
	}
	return s.std, nil
}

// ViewState reports the active view after a filter operation.
type ViewState struct {
	Expression string `json:"expression"`
	Fallback   bool   `json:"fallback,omitempty"`
	Noop       bool   `json:"noop,omitempty"`
	Rows       int    `json:"rows"`
	Total      int    `json:"total"`
}

func (s *Session) viewState() ViewState {
	return ViewState{Expression: s.expression, Rows: s.view.Len(), Total: s.std.Len()}
}

// Query translates q and, when it validates and evaluates, makes the result
// the active view. Any error leaves the active view untouched.
func (s *Session) Query(ctx context.Context, q string) (ViewState, error) {
	std, err := s.Standardized()
	if err != nil {
		return ViewState{}, err
	}
	confirmed, _ := s.rec.Confirmed()
	if err := s.acquire(SlotFilter); err != nil {
		return ViewState{}, err
	}
	defer s.release(SlotFilter)
	s.publish(SlotFilter, StatusWorking, q)

	attempt := &audit.TranslationAttempt{SessionID: s.ID, Query: q}
	defer func() {
		if err := s.deps.Recorder.TranslationAttempted(context.WithoutCancel(ctx), attempt); err != nil {
			log.Printf("[session] %s: record translation: %v", s.ID, err)
		}
	}()

	cctx, cancel := s.callContext(ctx)
	expr, err := s.deps.Translator.Translate(cctx, q, confirmed, std.Columns())
	cancel()
	if err != nil {
		attempt.Outcome, attempt.Error = audit.OutcomeRejected, err.Error()
		if !errors.As(err, new(*query.TranslationError)) {
			attempt.Outcome = audit.OutcomeFailed
		}
		s.publish(SlotFilter, StatusError, err.Error())
		return s.currentView(), err
	}
	attempt.Expression = expr.String()
	attempt.Columns = expr.Columns

	view, err := query.Evaluate(std.Dataset, expr)
	if err != nil {
		attempt.Outcome, attempt.Error = audit.OutcomeFailed, err.Error()
		s.publish(SlotFilter, StatusError, err.Error())
		return s.currentView(), err
	}

	attempt.Outcome, attempt.Rows = audit.OutcomeApplied, view.Len()
	if expr.Fallback {
		attempt.Outcome = audit.OutcomeFallback
	}
	s.mu.Lock()
	s.view = view
	s.expression = expr.String()
	state := s.viewState()
	s.mu.Unlock()
	state.Fallback = expr.Fallback

	s.publish(SlotFilter, StatusIdle, "")
	return state, nil
}

// Filter applies range and selector criteria. Unset criteria are a no-op
// that keeps the active view.
func (s *Session) Filter(c filter.Criteria) (ViewState, error) {
	std, err := s.Standardized()
	if err != nil {
		return ViewState{}, err
	}
	if err := s.acquire(SlotFilter); err != nil {
		return ViewState{}, err
	}
	defer s.release(SlotFilter)

	view, ok, err := filter.Apply(std.Dataset, std, c)
	if err != nil {
		return s.currentView(), err
	}
	if !ok {
		state := s.currentView()
		state.Noop = true
		return state, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view = view
	s.expression = ""
	return s.viewState(), nil
}

// ResetFilter makes the full standardized dataset the active view.
func (s *Session) ResetFilter() (ViewState, error) {
	std, err := s.Standardized()
	if err != nil {
		return ViewState{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view = dataset.All(std.Dataset)
	s.expression = ""
	return s.viewState(), nil
}

func (s *Session) currentView() ViewState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.std == nil {
		return ViewState{}
	}
	return s.viewState()
}

// source binds the active view for the presentation adapters.
func (s *Session) source() (render.Source, error) {
	std, err := s.Standardized()
	if err != nil {
		return render.Source{}, err
	}
	s.mu.Lock()
	view := s.view
	s.mu.Unlock()
	return render.NewSource(view, std, s.deps.Registry), nil
}

func (s *Session) Table() (render.Table, error) {
	src, err := s.source()
	if err != nil {
		return render.Table{}, err
	}
	return render.BuildTable(src), nil
}

func (s *Session) Map() (*render.MapLayer, error) {
	src, err := s.source()
	if err != nil {
		return nil, err
	}
	return render.Map(src), nil
}

func (s *Session) Stats(category schema.Field) (render.Stats, error) {
	src, err := s.source()
	if err != nil {
		return render.Stats{}, err
	}
	return render.ConditionStats(src, category), nil
}

// ExportCSV writes the active view re-aliased to expected field labels.
func (s *Session) ExportCSV(w io.Writer) error {
	t, err := s.Table()
	if err != nil {
		return err
	}
	return render.WriteCSV(w, t)
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.touched = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touched
}

func (s *Session) close() { s.events.close() }
