// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package codec

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrDivideByZero is returned when a formula divides by zero at evaluation time
var ErrDivideByZero = errors.New("division by zero")

// Formula is a parsed arithmetic expression over the raw value r.
//
// Grammar:
//
//	expr    = term { ("+" | "-") term }
//	term    = unary { ("*" | "/") unary }
//	unary   = "-" unary | primary
//	primary = number | "r" | "(" expr ")"
type Formula struct {
	src  string
	root formulaNode
}

type formulaNode interface {
	eval(r float64) (float64, error)
}

type numberNode float64

func (n numberNode) eval(float64) (float64, error) { return float64(n), nil }

type rawNode struct{}

func (rawNode) eval(r float64) (float64, error) { return r, nil }

type negateNode struct{ x formulaNode }

func (n negateNode) eval(r float64) (float64, error) {
	v, err := n.x.eval(r)
	return -v, err
}

type binaryNode struct {
	op          byte
	left, right formulaNode
}

func (n binaryNode) eval(r float64) (float64, error) {
	a, err := n.left.eval(r)
	if err != nil {
		return 0, err
	}
	b, err := n.right.eval(r)
	if err != nil {
		return 0, err
	}
	switch n.op {
	case '+':
		return a + b, nil
	case '-':
		return a - b, nil
	case '*':
		return a * b, nil
	default:
		if b == 0 {
			return 0, ErrDivideByZero
		}
		return a / b, nil
	}
}

// ParseFormula parses src into a Formula
func ParseFormula(src string) (*Formula, error) {
	p := &formulaParser{src: src}
	root, err := p.expr()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, p.errorf("unexpected %q", p.src[p.pos])
	}
	return &Formula{src: src, root: root}, nil
}

// MustParseFormula is like ParseFormula but panics on error
func MustParseFormula(src string) *Formula {
	f, err := ParseFormula(src)
	if err != nil {
		panic(err)
	}
	return f
}

// Eval evaluates the formula with r bound to the raw value
func (f *Formula) Eval(r float64) (float64, error) {
	return f.root.eval(r)
}

func (f *Formula) String() string {
	return f.src
}

type formulaParser struct {
	src string
	pos int
}

func (p *formulaParser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: formula %q at %d: %s", ErrInvalidDefinition, p.src, p.pos, fmt.Sprintf(format, args...))
}

func (p *formulaParser) skipSpace() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

func (p *formulaParser) peek() byte {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *formulaParser) expr() (formulaNode, error) {
	left, err := p.term()
	if err != nil {
		return nil, err
	}
	for {
		op := p.peek()
		if op != '+' && op != '-' {
			return left, nil
		}
		p.pos++
		right, err := p.term()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
}

func (p *formulaParser) term() (formulaNode, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for {
		op := p.peek()
		if op != '*' && op != '/' {
			return left, nil
		}
		p.pos++
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
}

func (p *formulaParser) unary() (formulaNode, error) {
	if p.peek() == '-' {
		p.pos++
		x, err := p.unary()
		if err != nil {
			return nil, err
		}
		return negateNode{x: x}, nil
	}
	return p.primary()
}

func (p *formulaParser) primary() (formulaNode, error) {
	c := p.peek()
	switch {
	case c == 0:
		return nil, p.errorf("unexpected end of expression")
	case c == 'r':
		p.pos++
		return rawNode{}, nil
	case c == '(':
		p.pos++
		inner, err := p.expr()
		if err != nil {
			return nil, err
		}
		if p.peek() != ')' {
			return nil, p.errorf("missing closing parenthesis")
		}
		p.pos++
		return inner, nil
	case (c >= '0' && c <= '9') || c == '.':
		start := p.pos
		for p.pos < len(p.src) && ((p.src[p.pos] >= '0' && p.src[p.pos] <= '9') || p.src[p.pos] == '.') {
			p.pos++
		}
		v, err := strconv.ParseFloat(p.src[start:p.pos], 64)
		if err != nil {
			return nil, p.errorf("bad number %q", p.src[start:p.pos])
		}
		return numberNode(v), nil
	}
	return nil, p.errorf("unexpected %q", c)
}
