package query

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokColumn // `quoted column`
	tokNumber
	tokString
	tokCompare
	tokAnd
	tokOr
	tokNot
	tokMinus
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func (t token) String() string {
	if t.kind == tokEOF {
		return "end of input"
	}
	return fmt.Sprintf("%q", t.text)
}

// syntaxError is raised by the lexer and parser; Translate wraps it in a
// TranslationError.
type syntaxError struct {
	pos int
	msg string
}

func (e *syntaxError) Error() string {
	return fmt.Sprintf("%s at offset %d", e.msg, e.pos)
}

func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		r, w := utf8.DecodeRuneInString(src[i:])
		if unicode.IsSpace(r) {
			i += w
			continue
		}
		start := i
		switch {
		case r == '(':
			if n := len(toks); n > 0 && (toks[n-1].kind == tokIdent || toks[n-1].kind == tokColumn) {
				return nil, &syntaxError{start, "function calls are not allowed"}
			}
			toks = append(toks, token{tokLParen, "(", start})
			i++
		case r == ')':
			toks = append(toks, token{tokRParen, ")", start})
			i++
		case r == '<' || r == '>':
			op := string(r)
			if i+1 < len(src) && src[i+1] == '=' {
				op += "="
			}
			toks = append(toks, token{tokCompare, op, start})
			i += len(op)
		case r == '=':
			if i+1 < len(src) && src[i+1] == '=' {
				toks = append(toks, token{tokCompare, "==", start})
				i += 2
				continue
			}
			return nil, &syntaxError{start, "assignment is not allowed"}
		case r == '!':
			if i+1 < len(src) && src[i+1] == '=' {
				toks = append(toks, token{tokCompare, "!=", start})
				i += 2
				continue
			}
			toks = append(toks, token{tokNot, "!", start})
			i++
		case r == '&':
			i++
			if i < len(src) && src[i] == '&' {
				i++
			}
			toks = append(toks, token{tokAnd, "and", start})
		case r == '|':
			i++
			if i < len(src) && src[i] == '|' {
				i++
			}
			toks = append(toks, token{tokOr, "or", start})
		case r == '~':
			toks = append(toks, token{tokNot, "not", start})
			i++
		case r == '-':
			toks = append(toks, token{tokMinus, "-", start})
			i++
		case r == ';':
			return nil, &syntaxError{start, "statement separators are not allowed"}
		case r == '@':
			return nil, &syntaxError{start, "variable references are not allowed"}
		case r == '`':
			end := strings.IndexByte(src[i+1:], '`')
			if end < 0 {
				return nil, &syntaxError{start, "unterminated backtick column"}
			}
			name := src[i+1 : i+1+end]
			if strings.TrimSpace(name) == "" {
				return nil, &syntaxError{start, "empty column name"}
			}
			toks = append(toks, token{tokColumn, name, start})
			i += end + 2
			if err := noAttribute(src, i); err != nil {
				return nil, err
			}
		case r == '"' || r == '\'':
			s, n, err := lexString(src[i:], byte(r))
			if err != nil {
				return nil, &syntaxError{start, err.Error()}
			}
			toks = append(toks, token{tokString, s, start})
			i += n
		case isDigit(r) || (r == '.' && i+1 < len(src) && isDigit(rune(src[i+1]))):
			n := lexNumber(src[i:])
			toks = append(toks, token{tokNumber, src[i : i+n], start})
			i += n
			if i < len(src) && isIdentRune(rune(src[i])) {
				return nil, &syntaxError{i, "malformed number"}
			}
		case isIdentStart(r):
			for i < len(src) {
				r, w := utf8.DecodeRuneInString(src[i:])
				if !isIdentRune(r) {
					break
				}
				i += w
			}
			word := src[start:i]
			switch strings.ToLower(word) {
			case "and":
				toks = append(toks, token{tokAnd, "and", start})
			case "or":
				toks = append(toks, token{tokOr, "or", start})
			case "not":
				toks = append(toks, token{tokNot, "not", start})
			default:
				toks = append(toks, token{tokIdent, word, start})
				if err := noAttribute(src, i); err != nil {
					return nil, err
				}
			}
		default:
			return nil, &syntaxError{start, fmt.Sprintf("unexpected character %q", r)}
		}
	}
	return append(toks, token{tokEOF, "", len(src)}), nil
}

func noAttribute(src string, i int) error {
	if i < len(src) && src[i] == '.' {
		return &syntaxError{i, "attribute access is not allowed"}
	}
	if i < len(src) && src[i] == '[' {
		return &syntaxError{i, "indexing is not allowed"}
	}
	return nil
}

func lexString(src string, quote byte) (string, int, error) {
	var b strings.Builder
	for i := 1; i < len(src); i++ {
		c := src[i]
		switch c {
		case '\\':
			if i+1 >= len(src) {
				return "", 0, fmt.Errorf("unterminated string")
			}
			i++
			b.WriteByte(src[i])
		case quote:
			return b.String(), i + 1, nil
		default:
			b.WriteByte(c)
		}
	}
	return "", 0, fmt.Errorf("unterminated string")
}

func lexNumber(src string) int {
	i := 0
	for i < len(src) && isDigit(rune(src[i])) {
		i++
	}
	if i < len(src) && src[i] == '.' {
		i++
		for i < len(src) && isDigit(rune(src[i])) {
			i++
		}
	}
	if i < len(src) && (src[i] == 'e' || src[i] == 'E') {
		j := i + 1
		if j < len(src) && (src[j] == '+' || src[j] == '-') {
			j++
		}
		if j < len(src) && isDigit(rune(src[j])) {
			i = j
			for i < len(src) && isDigit(rune(src[i])) {
				i++
			}
		}
	}
	return i
}

func isDigit(r rune) bool      { return r >= '0' && r <= '9' }
func isIdentStart(r rune) bool { return r == '_' || unicode.IsLetter(r) }
func isIdentRune(r rune) bool  { return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) }
