package dataset

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ValueKind tags the content of a Value.
type ValueKind uint8

const (
	KindNull ValueKind = iota
	KindText
	KindNumber
)

// Value is a single attribute cell.
type Value struct {
	kind ValueKind
	text string
	num  float64
}

func Null() Value            { return Value{} }
func Text(s string) Value    { return Value{kind: KindText, text: s} }
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

func (v Value) Kind() ValueKind { return v.kind }
func (v Value) IsNull() bool    { return v.kind == KindNull }

// Float returns the numeric content. Text cells are not coerced.
func (v Value) Float() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.num, true
}

// Str returns the text content of a text cell.
func (v Value) Str() (string, bool) {
	if v.kind != KindText {
		return "", false
	}
	return v.text, true
}

// String renders the cell for tables, popups and CSV export. Null renders empty.
func (v Value) String() string {
	switch v.kind {
	case KindText:
		return v.text
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	default:
		return ""
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindText:
		return json.Marshal(v.text)
	case KindNumber:
		return json.Marshal(v.num)
	default:
		return []byte("null"), nil
	}
}

// ParseNumber coerces a cell to a number the way standardization does:
// numbers pass through, text is parsed after trimming, anything else is null.
func ParseNumber(v Value) Value {
	switch v.kind {
	case KindNumber:
		return v
	case KindText:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.text), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return Null()
		}
		return Number(f)
	default:
		return Null()
	}
}
