package query

import (
	"fmt"
	"strconv"
)

// Parse reads one predicate in the filter grammar. It never evaluates
// anything; column names are returned as written.
func Parse(src string) (Node, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	n, err := p.or()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, &syntaxError{t.pos, fmt.Sprintf("unexpected %s", t)}
	}
	return n, nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) or() (Node, error) {
	left, err := p.and()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOr {
		p.next()
		right, err := p.and()
		if err != nil {
			return nil, err
		}
		left = Or(left, right)
	}
	return left, nil
}

func (p *parser) and() (Node, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokAnd {
		p.next()
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		left = And(left, right)
	}
	return left, nil
}

func (p *parser) unary() (Node, error) {
	if p.peek().kind == tokNot {
		p.next()
		x, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &Not{X: x}, nil
	}
	return p.primary()
}

func (p *parser) primary() (Node, error) {
	if p.peek().kind == tokLParen {
		open := p.next()
		n, err := p.or()
		if err != nil {
			return nil, err
		}
		if t := p.next(); t.kind != tokRParen {
			return nil, &syntaxError{open.pos, "unbalanced parenthesis"}
		}
		return n, nil
	}
	return p.comparison()
}

func (p *parser) comparison() (Node, error) {
	left, err := p.operand()
	if err != nil {
		return nil, err
	}
	t := p.next()
	if t.kind != tokCompare {
		return nil, &syntaxError{t.pos, fmt.Sprintf("expected comparison operator, got %s", t)}
	}
	right, err := p.operand()
	if err != nil {
		return nil, err
	}
	if left.Kind != ColumnRef && right.Kind != ColumnRef {
		return nil, &syntaxError{t.pos, "comparison must reference a column"}
	}
	return Compare(left, Op(t.text), right), nil
}

func (p *parser) operand() (Operand, error) {
	t := p.next()
	switch t.kind {
	case tokIdent, tokColumn:
		return Column(t.text), nil
	case tokString:
		return String(t.text), nil
	case tokNumber:
		return parseNumber(t, false)
	case tokMinus:
		n := p.next()
		if n.kind != tokNumber {
			return Operand{}, &syntaxError{t.pos, "minus must precede a number"}
		}
		return parseNumber(n, true)
	default:
		return Operand{}, &syntaxError{t.pos, fmt.Sprintf("expected column or value, got %s", t)}
	}
}

func parseNumber(t token, negative bool) (Operand, error) {
	f, err := strconv.ParseFloat(t.text, 64)
	if err != nil {
		return Operand{}, &syntaxError{t.pos, "malformed number"}
	}
	if negative {
		f = -f
	}
	return Number(f), nil
}
