package query

import (
	"fmt"

	"github.com/pavelength/pavelength/internal/dataset"
)

// EvaluationError reports an expression that passed validation but could
// not be applied to the dataset.
type EvaluationError struct {
	Expression string
	Reason     string
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("cannot evaluate %q: %s", e.Expression, e.Reason)
}

// Evaluate returns the records of ds matching expr. A nil root selects
// every record; no matches is an empty view, not an error. ds is never
// modified.
func Evaluate(ds *dataset.Dataset, expr *Expression) (dataset.View, error) {
	if expr == nil || expr.Root == nil {
		return dataset.All(ds), nil
	}
	for _, c := range referencedColumns(expr.Root) {
		if !ds.HasColumn(c) {
			return dataset.View{}, &EvaluationError{Expression: expr.String(), Reason: fmt.Sprintf("unknown column %q", c)}
		}
	}
	view, err := dataset.Select(ds, func(r dataset.Record) (bool, error) {
		return match(expr.Root, r)
	})
	if err != nil {
		return dataset.View{}, &EvaluationError{Expression: expr.String(), Reason: err.Error()}
	}
	return view, nil
}

func match(n Node, r dataset.Record) (bool, error) {
	switch n := n.(type) {
	case *Logical:
		left, err := match(n.Left, r)
		if err != nil {
			return false, err
		}
		if n.Or && left {
			return true, nil
		}
		if !n.Or && !left {
			return false, nil
		}
		return match(n.Right, r)
	case *Not:
		ok, err := match(n.X, r)
		return !ok, err
	case *Comparison:
		return compare(value(n.Left, r), n.Op, value(n.Right, r))
	default:
		return false, fmt.Errorf("unsupported node %T", n)
	}
}

func value(o Operand, r dataset.Record) dataset.Value {
	switch o.Kind {
	case ColumnRef:
		return r.Get(o.Column)
	case NumberLit:
		return dataset.Number(o.Number)
	default:
		return dataset.Text(o.Text)
	}
}

// compare applies op with exact semantics. Nulls never match; text and
// numbers are never coerced into each other.
func compare(a dataset.Value, op Op, b dataset.Value) (bool, error) {
	if a.IsNull() || b.IsNull() {
		return false, nil
	}
	if x, ok := a.Float(); ok {
		if y, ok := b.Float(); ok {
			return compareOrdered(x, op, y), nil
		}
	}
	if x, ok := a.Str(); ok {
		if y, ok := b.Str(); ok {
			switch op {
			case Equal:
				return x == y, nil
			case NotEqual:
				return x != y, nil
			}
			return false, fmt.Errorf("operator %s is not defined for text values %q and %q", op, x, y)
		}
	}
	switch op {
	case Equal:
		return false, nil
	case NotEqual:
		return true, nil
	}
	return false, fmt.Errorf("operator %s cannot compare text with a number (%s, %s)", op, a, b)
}

func compareOrdered(x float64, op Op, y float64) bool {
	switch op {
	case Less:
		return x < y
	case LessEqual:
		return x <= y
	case Greater:
		return x > y
	case GreaterEqual:
		return x >= y
	case Equal:
		return x == y
	case NotEqual:
		return x != y
	}
	return false
}
