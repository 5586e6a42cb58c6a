package explorer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pavelength/pavelength/internal/filter"
	"github.com/pavelength/pavelength/internal/loader"
	"github.com/pavelength/pavelength/internal/mapping"
	"github.com/pavelength/pavelength/internal/query"
	"github.com/pavelength/pavelength/internal/render"
	"github.com/pavelength/pavelength/internal/schema"
	"github.com/pavelength/pavelength/internal/session"
	"github.com/pavelength/pavelength/internal/utils"
)

const (
	maxSample       = 1000
	artifactTimeout = 30 * time.Second
)

type errorResponse struct {
	Error   string         `json:"error"`
	Query   string         `json:"query,omitempty"`
	Missing []schema.Field `json:"missing,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[explorer] encode response: %v", err)
	}
}

// writeError maps the error taxonomy onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	resp := errorResponse{Error: err.Error()}
	status := http.StatusInternalServerError

	var (
		le *loader.LoadError
		mi *mapping.MappingIncomplete
		te *query.TranslationError
		ee *query.EvaluationError
	)
	switch {
	case errors.As(err, &le):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &mi):
		status = http.StatusConflict
		resp.Missing = mi.Missing
	case errors.As(err, &te):
		status = http.StatusUnprocessableEntity
		resp.Query = te.Query
	case errors.As(err, &ee):
		status = http.StatusUnprocessableEntity
		resp.Query = ee.Expression
	case errors.Is(err, session.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, mapping.ErrNotSubmitted),
		errors.Is(err, mapping.ErrFrozen),
		errors.Is(err, mapping.ErrSuggestionExists),
		errors.Is(err, mapping.ErrSuggestionPending),
		errors.Is(err, session.ErrBusy),
		errors.Is(err, render.ErrNothingToExport):
		status = http.StatusConflict
	case errors.Is(err, mapping.ErrUnknownField),
		errors.Is(err, mapping.ErrUnknownColumn),
		errors.Is(err, filter.ErrUnmappedField),
		errors.Is(err, query.ErrEmptyQuery):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		log.Printf("[explorer] %v", err)
	}
	writeJSON(w, status, resp)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body: " + err.Error()})
		return false
	}
	return true
}

func current(r *http.Request) *session.Session {
	s, _ := utils.GetSessionFromContext(r.Context())
	return s
}

func (h *Handler) putArtifact(ctx context.Context, id, name, contentType string, data []byte) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), artifactTimeout)
	defer cancel()
	if err := h.artifacts().Put(ctx, id, name, contentType, data); err != nil {
		log.Printf("[explorer] %s: store %s: %v", id, name, err)
	}
}

func (h *Handler) SchemaHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Registry.Definitions())
}

type uploadResponse struct {
	SessionID string          `json:"session_id"`
	Summary   session.Summary `json:"summary"`
}

// UploadHandler loads a zipped shapefile into a new session. A "replace"
// form value names a prior session to discard.
func (h *Handler) UploadHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload())
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: fmt.Sprintf("archive exceeds %d bytes", mbe.Limit)})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid multipart form: " + err.Error()})
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, hdr, err := r.FormFile("archive")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing archive file"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "read archive: " + err.Error()})
		return
	}

	res, err := h.Loader.Load(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		writeError(w, err)
		return
	}

	s := h.Sessions.Create(res, r.FormValue("replace"))
	h.putArtifact(r.Context(), s.ID, "archive/"+filepath.Base(hdr.Filename), "application/zip", data)

	writeJSON(w, http.StatusCreated, uploadResponse{SessionID: s.ID, Summary: s.Summary()})
}

func (h *Handler) SummaryHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, current(r).Summary())
}

func (h *Handler) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	h.Sessions.Delete(current(r).ID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) SampleHandler(w http.ResponseWriter, r *http.Request) {
	n := session.SampleRows
	if v := r.URL.Query().Get("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "n must be a non-negative integer"})
			return
		}
		n = min(parsed, maxSample)
	}
	writeJSON(w, http.StatusOK, current(r).Sample(n))
}

func (h *Handler) MappingHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, current(r).Mapping())
}

type suggestResponse struct {
	Mapping mapping.Snapshot `json:"mapping"`
	Warning string           `json:"warning,omitempty"`
}

// SuggestHandler runs the resolver. A failed suggestion is not an HTTP
// error: the mapping is returned unchanged with a warning.
func (h *Handler) SuggestHandler(w http.ResponseWriter, r *http.Request) {
	snap, err := current(r).Suggest(r.Context())
	var se *mapping.SuggestionError
	switch {
	case errors.As(err, &se):
		writeJSON(w, http.StatusOK, suggestResponse{Mapping: snap, Warning: se.Error()})
	case err != nil:
		writeError(w, err)
	default:
		writeJSON(w, http.StatusOK, suggestResponse{Mapping: snap})
	}
}

func (h *Handler) DiscardSuggestionHandler(w http.ResponseWriter, r *http.Request) {
	snap, err := current(r).DiscardSuggestion()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type selectRequest struct {
	Column string `json:"column"`
}

func (h *Handler) SelectFieldHandler(w http.ResponseWriter, r *http.Request) {
	field := chi.URLParam(r, "field")
	if f, err := url.PathUnescape(field); err == nil {
		field = f
	}
	var req selectRequest
	if !decode(w, r, &req) {
		return
	}
	snap, err := current(r).Select(schema.Field(field), req.Column)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) SubmitHandler(w http.ResponseWriter, r *http.Request) {
	snap, err := current(r).Submit(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type queryRequest struct {
	Query string `json:"query"`
}

type viewResponse struct {
	session.ViewState
	Message string `json:"message,omitempty"`
}

func (h *Handler) QueryHandler(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if !decode(w, r, &req) {
		return
	}
	state, err := current(r).Query(r.Context(), req.Query)
	if err != nil {
		var te *query.TranslationError
		if errors.As(err, &te) && te.Query == "" {
			te.Query = req.Query
		}
		writeError(w, err)
		return
	}
	resp := viewResponse{ViewState: state, Message: "Filter applied: " + state.Expression}
	if state.Fallback {
		resp.Message = "Query could not be translated; showing all segments"
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) FilterHandler(w http.ResponseWriter, r *http.Request) {
	var c filter.Criteria
	if !decode(w, r, &c) {
		return
	}
	state, err := current(r).Filter(c)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewResponse{ViewState: state})
}

func (h *Handler) ResetFilterHandler(w http.ResponseWriter, r *http.Request) {
	state, err := current(r).ResetFilter()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewResponse{ViewState: state})
}

// OptionsHandler lists the distinct values of a mapped field for selectors.
func (h *Handler) OptionsHandler(w http.ResponseWriter, r *http.Request) {
	field := chi.URLParam(r, "field")
	if f, err := url.PathUnescape(field); err == nil {
		field = f
	}
	std, err := current(r).Standardized()
	if err != nil {
		writeError(w, err)
		return
	}
	col, ok := std.Column(schema.Field(field))
	if !ok {
		writeError(w, fmt.Errorf("%w: %q", filter.ErrUnmappedField, field))
		return
	}
	values := filter.Options(std.Dataset, col)
	if values == nil {
		values = []string{}
	}
	writeJSON(w, http.StatusOK, values)
}

func (h *Handler) TableHandler(w http.ResponseWriter, r *http.Request) {
	t, err := current(r).Table()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handler) MapHandler(w http.ResponseWriter, r *http.Request) {
	layer, err := current(r).Map()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, layer)
}

func (h *Handler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	field := schema.Zone
	if v := r.URL.Query().Get("field"); v != "" {
		field = schema.Field(v)
	}
	st, err := current(r).Stats(field)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) ExportHandler(w http.ResponseWriter, r *http.Request) {
	s := current(r)
	var buf bytes.Buffer
	if err := s.ExportCSV(&buf); err != nil {
		writeError(w, err)
		return
	}
	h.putArtifact(r.Context(), s.ID, "exports/"+time.Now().UTC().Format("20060102T150405Z")+"-"+render.ExportFilename, "text/csv", buf.Bytes())

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+render.ExportFilename+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		log.Printf("[explorer] %s: write export: %v", s.ID, err)
	}
}
