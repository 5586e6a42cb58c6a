package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/pavelength/pavelength/internal/llm"
	"github.com/pavelength/pavelength/internal/mapping"
	"github.com/pavelength/pavelength/internal/schema"
)

var ErrEmptyQuery = errors.New("query is empty")

// TranslationError reports a query that could not be turned into a safe
// filter. Query is the user's text; Response is what the model returned.
type TranslationError struct {
	Query    string
	Response string
	Reason   string
	Err      error
}

func (e *TranslationError) Error() string {
	msg := fmt.Sprintf("could not translate %q: %s", e.Query, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TranslationError) Unwrap() error { return e.Err }

// Translator turns natural-language questions into validated expressions.
type Translator struct {
	client   llm.Client
	reg      *schema.Registry
	fallback bool
	cache    *lru.Cache[string, *Expression]
}

type Option func(*Translator)

// WithSelectAllFallback makes a failed translation return a select-all
// expression flagged Fallback instead of an error.
func WithSelectAllFallback() Option {
	return func(t *Translator) { t.fallback = true }
}

func NewTranslator(client llm.Client, reg *schema.Registry, opts ...Option) *Translator {
	cache, _ := lru.New[string, *Expression](512)
	t := &Translator{client: client, reg: reg, cache: cache}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Translate asks the model for a filter and validates the reply against the
// confirmed mapping and the dataset columns. The returned expression only
// references mapped columns present in columns.
func (t *Translator) Translate(ctx context.Context, q string, confirmed mapping.Confirmed, columns []string) (*Expression, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, ErrEmptyQuery
	}
	if len(confirmed) == 0 {
		return nil, mapping.ErrNotSubmitted
	}

	key := translateKey(q, confirmed, columns)
	if e, ok := t.cache.Get(key); ok {
		return e, nil
	}

	reply, err := t.client.Complete(ctx, llm.Request{
		Purpose: "translate",
		Prompt:  TranslatePrompt(t.reg, confirmed, q),
	})
	if err != nil {
		return t.fail(&TranslationError{Query: q, Reason: "model call failed", Err: err})
	}

	expr, err := Validate(reply, t.reg, confirmed, columns)
	if err != nil {
		var te *TranslationError
		if errors.As(err, &te) {
			te.Query = q
		}
		return t.fail(err)
	}
	t.cache.Add(key, expr)
	return expr, nil
}

func (t *Translator) fail(err error) (*Expression, error) {
	if !t.fallback {
		return nil, err
	}
	log.Printf("[query] falling back to select all: %v", err)
	return &Expression{Fallback: true}, nil
}

// Validate cleans a model reply, parses it and resolves every column
// reference. Expected field names are rewritten to their mapped column.
func Validate(reply string, reg *schema.Registry, confirmed mapping.Confirmed, columns []string) (*Expression, error) {
	cleaned := Clean(reply)
	if cleaned == "" {
		return nil, &TranslationError{Response: reply, Reason: "empty filter expression"}
	}
	root, err := Parse(cleaned)
	if err != nil {
		return nil, &TranslationError{Response: reply, Reason: "unsafe or malformed expression", Err: err}
	}

	present := make(map[string]bool, len(columns))
	for _, c := range columns {
		present[c] = true
	}
	mapped := make(map[string]bool, len(confirmed))
	for _, c := range confirmed {
		mapped[c] = true
	}

	var bad error
	resolve := func(o *Operand) {
		if o.Kind != ColumnRef || bad != nil {
			return
		}
		col, ok := resolveColumn(o.Column, reg, confirmed, mapped)
		switch {
		case !ok:
			bad = fmt.Errorf("column %q is not in the confirmed mapping", o.Column)
		case !present[col]:
			bad = fmt.Errorf("column %q is not in the dataset", col)
		default:
			o.Column = col
		}
	}
	walk(root, func(c *Comparison) {
		resolve(&c.Left)
		resolve(&c.Right)
	})
	if bad != nil {
		return nil, &TranslationError{Response: reply, Reason: "unknown column", Err: bad}
	}
	return &Expression{Root: root, Columns: referencedColumns(root)}, nil
}

func resolveColumn(name string, reg *schema.Registry, confirmed mapping.Confirmed, mapped map[string]bool) (string, bool) {
	if col, ok := confirmed[schema.Field(name)]; ok {
		return col, true
	}
	if mapped[name] {
		return name, true
	}
	for _, f := range reg.Fields() {
		if strings.EqualFold(string(f), name) {
			col, ok := confirmed[f]
			return col, ok
		}
	}
	return "", false
}

func translateKey(q string, confirmed mapping.Confirmed, columns []string) string {
	pairs := make([]string, 0, len(confirmed))
	for f, c := range confirmed {
		pairs = append(pairs, string(f)+"="+c)
	}
	sort.Strings(pairs)
	cols := append([]string(nil), columns...)
	sort.Strings(cols)
	return q + "\x00" + strings.Join(pairs, "\x01") + "\x00" + strings.Join(cols, "\x01")
}

// FailedThreshold is the PCI bound below which a segment counts as failed,
// worst or bad.
const FailedThreshold = 25

// TranslatePrompt builds the filter request for q.
func TranslatePrompt(reg *schema.Registry, confirmed mapping.Confirmed, q string) string {
	var b strings.Builder
	b.WriteString("You are a pavement condition analysis assistant. Your task is to convert user queries into filter expressions.\n\n")
	b.WriteString("Available fields (expected field: actual column):\n")
	for _, f := range reg.Fields() {
		if col, ok := confirmed[f]; ok {
			quoted, _ := json.Marshal(col)
			fmt.Fprintf(&b, "- %s: %s\n", f, quoted)
		}
	}
	fmt.Fprintf(&b, `
Pavement Engineering Context:
- ASTM D6433 PCI Classification:
  - Excellent: PCI >= 85
  - Very Good: 70 <= PCI < 85
  - Good: 55 <= PCI < 70
  - Fair: 40 <= PCI < 55
  - Poor: 25 <= PCI < 40
  - Very Poor: 10 <= PCI < 25

- FAA Runway Standards (if zone or surface type includes runway/taxiway/apron):
  - Runway Excellent: PCI >= 85
  - Taxiway/Apron Satisfactory: PCI >= 70
  - Serious Condition: 10 <= PCI < 25

- Synonyms to recognize:
  - "excellent condition" = PCI >= 85
  - "very good condition" = PCI >= 70 and PCI < 85
  - "good" = PCI >= 55 and PCI < 70
  - "fair" = PCI >= 40 and PCI < 55
  - "poor" = PCI >= 25 and PCI < 40
  - "very poor" = PCI >= 10 and PCI < 25
  - "serious" = PCI >= 10 and PCI < 25
  - "failed", "worst segments" or "bad roads" = PCI < %d
  - "recently rehabilitated" = `+"`Last rehab year`"+` >= 2020
  - "AC" or "asphalt" = `+"`Pavement type`"+` == "Asphalt"
  - "concrete" = `+"`Pavement type`"+` == "Concrete"
  - "high traffic" = AADT > 5000
  - "low traffic" = AADT < 1000

Rules:
- Output only the filter expression on one line. No explanation.
- Use only the comparison operators <, <=, >, >=, ==, !=.
- Combine conditions with and / or, using parentheses to group them.
- Quote string values with double quotes.
- Wrap any column with spaces or special characters in backticks.
- Use only fields from the list above. Do not assign, call functions or reference variables.

Examples:
1. Show segments in excellent condition
→ PCI >= 85

2. Taxiways in serious condition
→ Zone == "Taxiway" and PCI >= 10 and PCI < 25

3. Recently rehabilitated AC roads with PCI > 55
→ `+"`Last rehab year`"+` >= 2020 and `+"`Pavement type`"+` == "Asphalt" and PCI > 55

4. Roads with good PCI and AADT > 5000
→ PCI >= 55 and PCI < 70 and AADT > 5000

User query:
%s
`, FailedThreshold, q)
	return b.String()
}
