package validate

import (
	"fmt"

	"github.com/djls-go/djls/internal/ast"
)

// ifExprPrec mirrors Django's smartif operator precedence (spec.md §4.6):
// or=6, and=7, not=8 (prefix), in/not in=9,
// is/is not/==/!=/>/>=/</<=  = 10.
var ifExprPrec = map[string]int{
	"or": 6, "and": 7,
	"in": 9,
	"is": 10, "==": 10, "!=": 10, ">": 10, ">=": 10, "<": 10, "<=": 10,
}

// ifExprError is one S114 finding: a message in Django's own wording plus
// the bit it should be reported against.
type ifExprError struct {
	Message string
	Bit     ast.Bit
}

// checkIfExpression runs a precedence-climbing parser over an if/elif tag's
// bits and returns every syntax problem found. It never panics on
// malformed input — an empty or malformed expression is itself the first
// reported error.
func checkIfExpression(bits []ast.Bit) []ifExprError {
	p := &ifExprParser{bits: bits}
	p.parseExpr(0)
	if len(p.errs) == 0 && p.pos < len(p.bits) {
		p.errs = append(p.errs, ifExprError{
			Message: fmt.Sprintf("Unused '%s' at end of if expression.", p.bits[p.pos].Raw),
			Bit:     p.bits[p.pos],
		})
	}
	return p.errs
}

type ifExprParser struct {
	bits []ast.Bit
	pos  int
	errs []ifExprError
}

func (p *ifExprParser) peek() (ast.Bit, bool) {
	if p.pos >= len(p.bits) {
		return ast.Bit{}, false
	}
	return p.bits[p.pos], true
}

func (p *ifExprParser) next() (ast.Bit, bool) {
	b, ok := p.peek()
	if ok {
		p.pos++
	}
	return b, ok
}

// infixOp recognizes both single-word operators and the two-word forms
// "not in" and "is not", returning the canonical operator name, its token
// width, and its precedence.
func (p *ifExprParser) infixOp() (name string, width int, prec int, ok bool) {
	tok, has := p.peek()
	if !has {
		return "", 0, 0, false
	}
	if tok.Raw == "not" {
		if next, has2 := p.bitAt(p.pos + 1); has2 && next.Raw == "in" {
			return "not in", 2, ifExprPrec["in"], true
		}
		return "", 0, 0, false
	}
	if tok.Raw == "is" {
		if next, has2 := p.bitAt(p.pos + 1); has2 && next.Raw == "not" {
			return "is not", 2, ifExprPrec["is"], true
		}
		return "is", 1, ifExprPrec["is"], true
	}
	if prec, ok := ifExprPrec[tok.Raw]; ok {
		return tok.Raw, 1, prec, true
	}
	return "", 0, 0, false
}

func (p *ifExprParser) bitAt(i int) (ast.Bit, bool) {
	if i < 0 || i >= len(p.bits) {
		return ast.Bit{}, false
	}
	return p.bits[i], true
}

func (p *ifExprParser) fail(msg string, at ast.Bit) {
	p.errs = append(p.errs, ifExprError{Message: msg, Bit: at})
}

// parseExpr parses one expression with precedence >= minPrec, stopping
// (without consuming) at the first infix operator whose precedence is too
// low, at end of input, or once an error forces a stop.
func (p *ifExprParser) parseExpr(minPrec int) {
	if len(p.errs) > 0 {
		return
	}
	p.parseUnary()
	for len(p.errs) == 0 {
		name, width, prec, ok := p.infixOp()
		if !ok || prec < minPrec {
			return
		}
		at := p.bits[p.pos]
		p.pos += width
		if _, has := p.peek(); !has {
			p.fail("Unexpected end of expression in if tag.", at)
			return
		}
		_ = name
		p.parseExpr(prec + 1)
	}
}

// parseUnary handles the prefix "not" (precedence 8) and falls through to
// an operand otherwise.
func (p *ifExprParser) parseUnary() {
	tok, has := p.peek()
	if !has {
		p.fail("Unexpected end of expression in if tag.", ast.Bit{})
		return
	}
	if tok.Raw == "not" {
		p.pos++
		if _, has := p.peek(); !has {
			p.fail("Unexpected end of expression in if tag.", tok)
			return
		}
		p.parseExpr(8)
		return
	}
	p.parseOperand()
}

// parseOperand consumes a single operand bit. A bit that is itself a
// reserved keyword used where a value is expected is a syntax error.
func (p *ifExprParser) parseOperand() {
	tok, has := p.next()
	if !has {
		p.fail("Unexpected end of expression in if tag.", ast.Bit{})
		return
	}
	switch tok.Raw {
	case "and", "or", "in", "is":
		p.fail(fmt.Sprintf("Could not parse the remainder: '%s' from '%s'.", tok.Raw, tok.Raw), tok)
	}
}
