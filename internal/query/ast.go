package query

import (
	"sort"
	"strconv"
	"strings"
)

// Node is a boolean predicate in the filter grammar.
type Node interface {
	write(b *strings.Builder, parent int)
}

// Logical joins two predicates with and/or.
type Logical struct {
	Or          bool
	Left, Right Node
}

// Not negates a predicate.
type Not struct {
	X Node
}

// Op is a comparison operator.
type Op string

const (
	Less         Op = "<"
	LessEqual    Op = "<="
	Greater      Op = ">"
	GreaterEqual Op = ">="
	Equal        Op = "=="
	NotEqual     Op = "!="
)

// Comparison is the only leaf of the grammar.
type Comparison struct {
	Left  Operand
	Op    Op
	Right Operand
}

type OperandKind int

const (
	ColumnRef OperandKind = iota
	NumberLit
	StringLit
)

// Operand is a column reference or a literal.
type Operand struct {
	Kind   OperandKind
	Column string
	Number float64
	Text   string
}

func Column(name string) Operand { return Operand{Kind: ColumnRef, Column: name} }
func Number(f float64) Operand   { return Operand{Kind: NumberLit, Number: f} }
func String(s string) Operand    { return Operand{Kind: StringLit, Text: s} }
func And(l, r Node) *Logical     { return &Logical{Left: l, Right: r} }
func Or(l, r Node) *Logical      { return &Logical{Or: true, Left: l, Right: r} }

func Compare(l Operand, op Op, r Operand) *Comparison {
	return &Comparison{Left: l, Op: op, Right: r}
}

// Expression is a validated filter. A nil Root selects every record.
type Expression struct {
	Root     Node
	Columns  []string
	Fallback bool
}

// String renders the canonical form reported back to the user.
func (e *Expression) String() string {
	if e == nil || e.Root == nil {
		return ""
	}
	var b strings.Builder
	e.Root.write(&b, precNone)
	return b.String()
}

const (
	precNone = iota
	precOr
	precAnd
	precNot
)

func (l *Logical) write(b *strings.Builder, parent int) {
	prec, word := precAnd, " and "
	if l.Or {
		prec, word = precOr, " or "
	}
	if parent > prec {
		b.WriteByte('(')
	}
	l.Left.write(b, prec)
	b.WriteString(word)
	// Right-nested chains of the same operator keep their grouping.
	l.Right.write(b, prec+1)
	if parent > prec {
		b.WriteByte(')')
	}
}

func (n *Not) write(b *strings.Builder, parent int) {
	b.WriteString("not ")
	if _, ok := n.X.(*Comparison); ok {
		n.X.write(b, precNot)
		return
	}
	b.WriteByte('(')
	n.X.write(b, precNone)
	b.WriteByte(')')
}

func (c *Comparison) write(b *strings.Builder, _ int) {
	c.Left.write(b)
	b.WriteByte(' ')
	b.WriteString(string(c.Op))
	b.WriteByte(' ')
	c.Right.write(b)
}

func (o Operand) write(b *strings.Builder) {
	switch o.Kind {
	case ColumnRef:
		if isIdentifier(o.Column) {
			b.WriteString(o.Column)
		} else {
			b.WriteByte('`')
			b.WriteString(o.Column)
			b.WriteByte('`')
		}
	case NumberLit:
		b.WriteString(strconv.FormatFloat(o.Number, 'f', -1, 64))
	case StringLit:
		b.WriteByte('"')
		b.WriteString(strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(o.Text))
		b.WriteByte('"')
	}
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	switch strings.ToLower(s) {
	case "and", "or", "not":
		return false
	}
	for i, r := range s {
		if i == 0 && !isIdentStart(r) {
			return false
		}
		if !isIdentRune(r) {
			return false
		}
	}
	return true
}

func walk(n Node, visit func(*Comparison)) {
	switch n := n.(type) {
	case *Logical:
		walk(n.Left, visit)
		walk(n.Right, visit)
	case *Not:
		walk(n.X, visit)
	case *Comparison:
		visit(n)
	}
}

func referencedColumns(n Node) []string {
	seen := map[string]bool{}
	var out []string
	walk(n, func(c *Comparison) {
		for _, o := range []Operand{c.Left, c.Right} {
			if o.Kind == ColumnRef && !seen[o.Column] {
				seen[o.Column] = true
				out = append(out, o.Column)
			}
		}
	})
	sort.Strings(out)
	return out
}
