package marker

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokString
	tokOp
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
}

// comparison operators, longest first so "===" wins over "==".
var comparisonOps = []string{"===", "==", "!=", "<=", ">=", "~=", "<", ">"}

func tokenize(s string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c == '(':
			toks = append(toks, token{kind: tokLParen, text: "("})
			i++
		case c == ')':
			toks = append(toks, token{kind: tokRParen, text: ")"})
			i++
		case c == '"' || c == '\'':
			end := strings.IndexByte(s[i+1:], c)
			if end < 0 {
				return nil, fmt.Errorf("unterminated string in marker %q", s)
			}
			toks = append(toks, token{kind: tokString, text: s[i+1 : i+1+end]})
			i += end + 2
		case strings.ContainsRune("=!<>~", rune(c)):
			op := ""
			for _, candidate := range comparisonOps {
				if strings.HasPrefix(s[i:], candidate) {
					op = candidate
					break
				}
			}
			if op == "" {
				return nil, fmt.Errorf("invalid operator at %q in marker", s[i:])
			}
			toks = append(toks, token{kind: tokOp, text: op})
			i += len(op)
		case isIdentByte(c):
			j := i
			for j < len(s) && (isIdentByte(s[j]) || s[j] == '.') {
				j++
			}
			toks = append(toks, token{kind: tokIdent, text: s[i:j]})
			i = j
		default:
			return nil, fmt.Errorf("unexpected character %q in marker", c)
		}
	}
	return toks, nil
}

func isIdentByte(c byte) bool {
	return c == '_' || unicode.IsLetter(rune(c)) || unicode.IsDigit(rune(c))
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) done() bool { return p.pos >= len(p.toks) }

func (p *parser) peek() token {
	if p.done() {
		return token{}
	}
	return p.toks[p.pos]
}

func (p *parser) next() token {
	t := p.peek()
	p.pos++
	return t
}

func (p *parser) isKeyword(word string) bool {
	t := p.peek()
	return !p.done() && t.kind == tokIdent && t.text == word
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("or") {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &boolNode{op: "or", left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("and") {
		p.next()
		right, err := p.parseAtom()
		if err != nil {
			return nil, err
		}
		left = &boolNode{op: "and", left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAtom() (node, error) {
	if p.done() {
		return nil, fmt.Errorf("unexpected end of marker")
	}
	if p.peek().kind == tokLParen {
		p.next()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.done() || p.next().kind != tokRParen {
			return nil, fmt.Errorf("missing closing parenthesis in marker")
		}
		return inner, nil
	}

	lhs, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	op, err := p.parseOperator()
	if err != nil {
		return nil, err
	}
	rhs, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	if !lhs.variable && !rhs.variable {
		return nil, fmt.Errorf("marker compares two literals: %s %s %s", lhs, op, rhs)
	}
	return &compareNode{op: op, lhs: lhs, rhs: rhs}, nil
}

func (p *parser) parseOperand() (operand, error) {
	if p.done() {
		return operand{}, fmt.Errorf("unexpected end of marker")
	}
	t := p.next()
	switch t.kind {
	case tokString:
		return operand{value: t.text}, nil
	case tokIdent:
		name := t.text
		if alias, ok := aliases[name]; ok {
			name = alias
		}
		if !knownVariable[name] {
			return operand{}, fmt.Errorf("unknown marker variable %q", t.text)
		}
		return operand{value: name, variable: true}, nil
	default:
		return operand{}, fmt.Errorf("expected variable or string in marker, got %q", t.text)
	}
}

func (p *parser) parseOperator() (string, error) {
	if p.done() {
		return "", fmt.Errorf("unexpected end of marker")
	}
	t := p.next()
	switch {
	case t.kind == tokOp:
		return t.text, nil
	case t.kind == tokIdent && t.text == "in":
		return "in", nil
	case t.kind == tokIdent && t.text == "not":
		if p.isKeyword("in") {
			p.next()
			return "not in", nil
		}
	}
	return "", fmt.Errorf("expected comparison operator in marker, got %q", t.text)
}
