package mapping

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/pavelength/pavelength/internal/llm"
	"github.com/pavelength/pavelength/internal/schema"
)

// Suggestion is an automatic field->column proposal. Fields the model was
// not confident about are absent.
type Suggestion map[schema.Field]string

func (s Suggestion) clone() Suggestion {
	out := make(Suggestion, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// SuggestionError reports why a suggestion came back empty. It never
// carries a partial mapping.
type SuggestionError struct {
	Reason string
	Err    error
}

func (e *SuggestionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("column suggestion failed: %s: %v", e.Reason, e.Err)
	}
	return "column suggestion failed: " + e.Reason
}

func (e *SuggestionError) Unwrap() error { return e.Err }

// Resolver asks the language model for a column mapping and validates the
// answer against the registry and the actual columns.
type Resolver struct {
	client llm.Client
	reg    *schema.Registry
	cache  *lru.Cache[string, Suggestion]
}

func NewResolver(client llm.Client, reg *schema.Registry) *Resolver {
	cache, _ := lru.New[string, Suggestion](256)
	return &Resolver{client: client, reg: reg, cache: cache}
}

// Suggest returns a non-nil suggestion whose keys are registry fields and
// whose values are members of columns. On any failure the suggestion is
// empty and the error is a *SuggestionError.
func (r *Resolver) Suggest(ctx context.Context, columns []string) (Suggestion, error) {
	key := cacheKey(columns)
	if s, ok := r.cache.Get(key); ok {
		return s.clone(), nil
	}

	reply, err := r.client.Complete(ctx, llm.Request{
		Purpose: "suggest",
		Prompt:  SuggestPrompt(r.reg, columns),
		JSON:    true,
	})
	if err != nil {
		return Suggestion{}, &SuggestionError{Reason: "model call", Err: err}
	}

	s, err := ParseSuggestion(reply, r.reg, columns)
	if err != nil {
		return Suggestion{}, err
	}
	if len(s) > 0 {
		r.cache.Add(key, s.clone())
	}
	return s, nil
}

// Forget drops the cached suggestion for columns so the next Suggest asks
// the model again.
func (r *Resolver) Forget(columns []string) {
	r.cache.Remove(cacheKey(columns))
}

func cacheKey(columns []string) string {
	sorted := append([]string(nil), columns...)
	sort.Strings(sorted)
	return strings.Join(sorted, "\x00")
}

// SuggestPrompt builds the mapping request for columns.
func SuggestPrompt(reg *schema.Registry, columns []string) string {
	quoted, _ := json.Marshal(columns)

	var b strings.Builder
	fmt.Fprintf(&b, "You are given a list of actual column names from a shapefile: %s\n\n", quoted)
	b.WriteString("Your task is to map each of the following expected field roles (used internally in our pavement condition system) to the correct actual column name from this list.\n\n")
	b.WriteString("Expected fields and example synonyms:\n")
	for _, d := range reg.Definitions() {
		fmt.Fprintf(&b, "- %s: %s\n", d.Name, strings.Join(d.Hints, ", "))
	}
	b.WriteString(`
Respond in valid JSON where:
- The keys are the expected field roles from our system
- The values are the best-matching actual column names from the list above, copied exactly

Respond like this:
{
  "PCI": "pci_score",
  "Length": "segment_len"
}

Only include mappings you are confident about. Do not guess if unclear.
`)
	return b.String()
}

// ParseSuggestion decodes a model reply. Keys that are not registry fields,
// non-string values and values outside columns are dropped.
func ParseSuggestion(reply string, reg *schema.Registry, columns []string) (Suggestion, error) {
	body := extractObject(reply)
	if body == "" {
		return Suggestion{}, &SuggestionError{Reason: "no JSON object in reply"}
	}
	var raw map[string]any
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return Suggestion{}, &SuggestionError{Reason: "malformed JSON", Err: err}
	}

	known := make(map[string]bool, len(columns))
	for _, c := range columns {
		known[c] = true
	}

	// Exact-case keys win over case-insensitive matches.
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ei, ej := reg.Has(schema.Field(strings.TrimSpace(keys[i]))), reg.Has(schema.Field(strings.TrimSpace(keys[j])))
		if ei != ej {
			return ei
		}
		return keys[i] < keys[j]
	})

	out := make(Suggestion)
	for _, k := range keys {
		v := raw[k]
		field, ok := lookupField(reg, k)
		if !ok {
			continue
		}
		if _, seen := out[field]; seen {
			continue
		}
		col, ok := v.(string)
		if !ok || !known[col] {
			if ok && col != "" {
				log.Printf("[mapping] dropped suggested column %q for %s: not in dataset", col, field)
			}
			continue
		}
		out[field] = col
	}
	return out, nil
}

func lookupField(reg *schema.Registry, key string) (schema.Field, bool) {
	key = strings.TrimSpace(key)
	if reg.Has(schema.Field(key)) {
		return schema.Field(key), true
	}
	for _, f := range reg.Fields() {
		if strings.EqualFold(string(f), key) {
			return f, true
		}
	}
	return "", false
}

// extractObject returns the outermost {...} of reply, ignoring code fences
// and surrounding prose.
func extractObject(reply string) string {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return ""
	}
	return reply[start : end+1]
}
