// Copyright 2017 Pilosa Corp.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions
// are met:
//
// 1. Redistributions of source code must retain the above copyright
// notice, this list of conditions and the following disclaimer.
//
// 2. Redistributions in binary form must reproduce the above copyright
// notice, this list of conditions and the following disclaimer in the
// documentation and/or other materials provided with the distribution.
//
// 3. Neither the name of the copyright holder nor the names of its
// contributors may be used to endorse or promote products derived
// from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND
// CONTRIBUTORS "AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES,
// INCLUDING, BUT NOT LIMITED TO, THE IMPLIED WARRANTIES OF
// MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE
// DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR
// CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL,
// SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING,
// BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR
// SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY,
// WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING
// NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH
// DAMAGE.

package cql

import (
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/pkg/errors"
)

// ParseFilter parses CQL filter text.
func ParseFilter(s string) (Filter, error) {
	p, err := newParser(s)
	if err != nil {
		return nil, err
	}
	f, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokEOF {
		return nil, p.unexpected()
	}
	return f, nil
}

// MustParseFilter is like ParseFilter but panics on error.
func MustParseFilter(s string) Filter {
	f, err := ParseFilter(s)
	if err != nil {
		panic(err)
	}
	return f
}

// ParseExpression parses a single CQL expression such as
// "strConcat('hello ', Who)".
func ParseExpression(s string) (Expression, error) {
	p, err := newParser(s)
	if err != nil {
		return nil, err
	}
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokEOF {
		return nil, p.unexpected()
	}
	return e, nil
}

type parser struct {
	lex lexer
	tok token
}

type mark struct {
	pos int
	tok token
}

func newParser(s string) (*parser, error) {
	p := &parser{lex: lexer{src: s}}
	return p, p.advance()
}

func (p *parser) advance() error {
	t, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = t
	return nil
}

func (p *parser) mark() mark   { return mark{pos: p.lex.pos, tok: p.tok} }
func (p *parser) reset(m mark) { p.lex.pos, p.tok = m.pos, m.tok }

func (p *parser) errorf(format string, args ...interface{}) error {
	return p.lex.errorf(p.tok.pos, format, args...)
}

func (p *parser) unexpected() error {
	if p.tok.kind == tokEOF {
		return p.errorf("unexpected end of input")
	}
	return p.errorf("unexpected %s '%s'", p.tok.kind, p.tok.text)
}

func (p *parser) expect(s string) error {
	if !p.tok.is(s) {
		return p.errorf("expected '%s' but found '%s'", s, p.tok.text)
	}
	return p.advance()
}

// peekIs reports whether the token after the current one is s.
func (p *parser) peekIs(s string) bool {
	m := p.mark()
	defer p.reset(m)
	if err := p.advance(); err != nil {
		return false
	}
	return p.tok.is(s)
}

func (p *parser) parseOr() (Filter, error) {
	f, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	children := []Filter{f}
	for p.tok.is("OR") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		f, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		children = append(children, f)
	}
	if len(children) == 1 {
		return children[0], nil
	}
	return Or{Children: children}, nil
}

func (p *parser) parseAnd() (Filter, error) {
	f, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	children := []Filter{f}
	for p.tok.is("AND") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		f, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		children = append(children, f)
	}
	if len(children) == 1 {
		return children[0], nil
	}
	return And{Children: children}, nil
}

func (p *parser) parseNot() (Filter, error) {
	if p.tok.is("NOT") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		f, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return Not{Filter: f}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Filter, error) {
	var groupErr error
	if p.tok.is("(") {
		m := p.mark()
		if err := p.advance(); err != nil {
			return nil, err
		}
		f, err := p.parseOr()
		if err == nil {
			if p.tok.is(")") {
				if err = p.advance(); err != nil {
					return nil, err
				}
				if !p.continuesExpression() {
					return f, nil
				}
			} else {
				err = p.errorf("expected ')' but found '%s'", p.tok.text)
			}
		}
		groupErr = err
		// not a parenthesized filter; try a parenthesized expression
		p.reset(m)
	}
	f, err := p.parseSimple()
	if err != nil && groupErr != nil {
		return nil, deeper(groupErr, err)
	}
	return f, err
}

// deeper returns whichever syntax error got further into the input.
func deeper(a, b error) error {
	sa, aok := a.(*SyntaxError)
	sb, bok := b.(*SyntaxError)
	if aok && bok && sa.Pos > sb.Pos {
		return a
	}
	return b
}

// continuesExpression reports whether the current token would extend a
// parenthesized expression into a predicate.
func (p *parser) continuesExpression() bool {
	for _, s := range []string{"=", "<>", "!=", "<", "<=", ">", ">=", "+", "-", "*", "/",
		"LIKE", "ILIKE", "IS", "BETWEEN", "IN", "DURING", "BEFORE", "AFTER", "TEQUALS"} {
		if p.tok.is(s) {
			return true
		}
	}
	return p.tok.is("NOT") && (p.peekIs("LIKE") || p.peekIs("ILIKE") || p.peekIs("BETWEEN") || p.peekIs("IN"))
}

func (p *parser) parseSimple() (Filter, error) {
	if p.tok.kind == tokIdent {
		switch strings.ToUpper(p.tok.text) {
		case "INCLUDE":
			return Include, p.advance()
		case "EXCLUDE":
			return Exclude, p.advance()
		case "BBOX":
			if p.peekIs("(") {
				return p.parseBBox()
			}
		case OpIntersects, OpDisjoint, OpWithin, OpContains:
			if p.peekIs("(") {
				return p.parseSpatial()
			}
		case "DWITHIN":
			if p.peekIs("(") {
				return p.parseDWithin()
			}
		}
	}
	left, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return p.parsePredicate(left)
}

func (p *parser) parsePredicate(left Expression) (Filter, error) {
	switch {
	case p.tok.kind == tokPunct && isCompareOp(p.tok.text):
		op := p.tok.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return Compare{Op: op, Left: left, Right: right}, nil
	case p.tok.is("IS"):
		if err := p.advance(); err != nil {
			return nil, err
		}
		negate := false
		if p.tok.is("NOT") {
			negate = true
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
		return IsNull{Expr: left, Negate: negate}, p.expect("NULL")
	case p.tok.is("DURING"), p.tok.is("BEFORE"), p.tok.is("AFTER"), p.tok.is("TEQUALS"):
		return p.parseTemporal(left)
	}
	negate := false
	if p.tok.is("NOT") {
		negate = true
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	switch {
	case p.tok.is("LIKE"), p.tok.is("ILIKE"):
		ci := p.tok.is("ILIKE")
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.tok.kind != tokString {
			return nil, p.errorf("expected pattern string after LIKE")
		}
		pattern := p.tok.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		return NewLike(left, pattern, ci, negate)
	case p.tok.is("BETWEEN"):
		if err := p.advance(); err != nil {
			return nil, err
		}
		lo, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expect("AND"); err != nil {
			return nil, err
		}
		hi, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return Between{Expr: left, Lower: lo, Upper: hi, Negate: negate}, nil
	case p.tok.is("IN"):
		if err := p.advance(); err != nil {
			return nil, err
		}
		vals, err := p.parseArgs()
		if err != nil {
			return nil, err
		}
		if len(vals) == 0 {
			return nil, p.errorf("IN requires at least one value")
		}
		return In{Expr: left, Values: vals, Negate: negate}, nil
	}
	return nil, p.unexpected()
}

func isCompareOp(s string) bool {
	switch s {
	case "=", "<>", "!=", "<", "<=", ">", ">=":
		return true
	}
	return false
}

func (p *parser) parseTemporal(left Expression) (Filter, error) {
	op := strings.ToUpper(p.tok.text)
	if err := p.advance(); err != nil {
		return nil, err
	}
	from, err := p.parseInstant()
	if err != nil {
		return nil, err
	}
	t := Temporal{Op: op, Expr: left, From: from}
	if op == During {
		if err := p.expect("/"); err != nil {
			return nil, err
		}
		if t.To, err = p.parseInstant(); err != nil {
			return nil, err
		}
		if t.To.Before(t.From) {
			return nil, p.errorf("period end %s precedes start %s", FormatTime(t.To), FormatTime(t.From))
		}
	}
	return t, nil
}

func (p *parser) parseInstant() (time.Time, error) {
	if p.tok.kind != tokDate && p.tok.kind != tokString {
		return time.Time{}, p.errorf("expected date but found '%s'", p.tok.text)
	}
	t, err := ParseTime(p.tok.text)
	if err != nil {
		return time.Time{}, p.errorf("%v", err)
	}
	return t, p.advance()
}

func (p *parser) parsePropertyName() (string, error) {
	if p.tok.kind != tokIdent && p.tok.kind != tokQuotedIdent {
		return "", p.errorf("expected property name but found '%s'", p.tok.text)
	}
	name := p.tok.text
	return name, p.advance()
}

func (p *parser) parseNumber() (float64, error) {
	neg := false
	if p.tok.is("-") {
		neg = true
		if err := p.advance(); err != nil {
			return 0, err
		}
	}
	if p.tok.kind != tokNumber {
		return 0, p.errorf("expected number but found '%s'", p.tok.text)
	}
	f, err := strconv.ParseFloat(p.tok.text, 64)
	if err != nil {
		return 0, p.errorf("invalid number '%s'", p.tok.text)
	}
	if neg {
		f = -f
	}
	return f, p.advance()
}

func (p *parser) parseBBox() (Filter, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	if err := p.expect("("); err != nil {
		return nil, err
	}
	prop, err := p.parsePropertyName()
	if err != nil {
		return nil, err
	}
	var coords [4]float64
	for i := range coords {
		if err := p.expect(","); err != nil {
			return nil, err
		}
		if coords[i], err = p.parseNumber(); err != nil {
			return nil, err
		}
	}
	b := BBox{Property: prop, Bound: orb.Bound{Min: orb.Point{coords[0], coords[1]}, Max: orb.Point{coords[2], coords[3]}}}
	if coords[0] > coords[2] || coords[1] > coords[3] {
		return nil, p.errorf("bbox minimum exceeds maximum")
	}
	if p.tok.is(",") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.tok.kind != tokString {
			return nil, p.errorf("expected CRS string but found '%s'", p.tok.text)
		}
		b.CRS = p.tok.text
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	return b, p.expect(")")
}

func (p *parser) parseSpatial() (Filter, error) {
	op := strings.ToUpper(p.tok.text)
	if err := p.advance(); err != nil {
		return nil, err
	}
	if err := p.expect("("); err != nil {
		return nil, err
	}
	prop, err := p.parsePropertyName()
	if err != nil {
		return nil, err
	}
	if err := p.expect(","); err != nil {
		return nil, err
	}
	g, err := p.parseGeometry()
	if err != nil {
		return nil, err
	}
	return Spatial{Op: op, Property: prop, Geometry: g}, p.expect(")")
}

func (p *parser) parseDWithin() (Filter, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	if err := p.expect("("); err != nil {
		return nil, err
	}
	prop, err := p.parsePropertyName()
	if err != nil {
		return nil, err
	}
	if err := p.expect(","); err != nil {
		return nil, err
	}
	g, err := p.parseGeometry()
	if err != nil {
		return nil, err
	}
	if err := p.expect(","); err != nil {
		return nil, err
	}
	dist, err := p.parseNumber()
	if err != nil {
		return nil, err
	}
	if err := p.expect(","); err != nil {
		return nil, err
	}
	var words []string
	for p.tok.kind == tokIdent {
		words = append(words, strings.ToLower(p.tok.text))
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	units := strings.Join(words, " ")
	if _, ok := unitsToMeters[units]; !ok {
		return nil, p.errorf("unknown distance units '%s'", units)
	}
	return DWithin{Property: prop, Geometry: g, Distance: dist, Units: units}, p.expect(")")
}

func (p *parser) parseGeometry() (orb.Geometry, error) {
	if p.tok.kind == tokString {
		g, err := ParseWKT(p.tok.text)
		if err != nil {
			return nil, p.errorf("invalid WKT '%s': %v", p.tok.text, err)
		}
		return g, p.advance()
	}
	if p.tok.kind != tokIdent || !isWKTKeyword(p.tok.text) {
		return nil, p.errorf("expected geometry but found '%s'", p.tok.text)
	}
	return p.parseWKT()
}

var wktKeywords = []string{"POINT", "LINESTRING", "POLYGON", "MULTIPOINT", "MULTILINESTRING", "MULTIPOLYGON", "GEOMETRYCOLLECTION"}

func isWKTKeyword(s string) bool {
	for _, k := range wktKeywords {
		if strings.EqualFold(s, k) {
			return true
		}
	}
	return false
}

// parseWKT hands the raw text of a WKT literal, from its keyword to the
// matching close paren, to the WKT decoder.
func (p *parser) parseWKT() (orb.Geometry, error) {
	keyword := strings.ToUpper(p.tok.text)
	i := p.lex.pos
	for i < len(p.lex.src) && strings.IndexByte(" \t\r\n", p.lex.src[i]) >= 0 {
		i++
	}
	var end int
	var text string
	if strings.HasPrefix(strings.ToUpper(p.lex.src[i:]), "EMPTY") {
		end = i + len("EMPTY")
		text = keyword + " EMPTY"
	} else {
		if i >= len(p.lex.src) || p.lex.src[i] != '(' {
			return nil, p.errorf("expected '(' after %s", p.tok.text)
		}
		depth := 0
		for end = i; end < len(p.lex.src); end++ {
			if p.lex.src[end] == '(' {
				depth++
			} else if p.lex.src[end] == ')' {
				depth--
				if depth == 0 {
					end++
					break
				}
			}
		}
		if depth != 0 {
			return nil, p.errorf("unbalanced parentheses in geometry")
		}
		text = keyword + p.lex.src[i:end]
	}
	g, err := wkt.Unmarshal(text)
	if err != nil {
		return nil, p.errorf("invalid WKT '%s': %v", text, err)
	}
	p.lex.pos = end
	return g, p.advance()
}

func (p *parser) parseExpr() (Expression, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.tok.is("+") || p.tok.is("-") {
		op := p.tok.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = Arithmetic{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseTerm() (Expression, error) {
	left, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	for p.tok.is("*") || p.tok.is("/") {
		op := p.tok.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		left = Arithmetic{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseFactor() (Expression, error) {
	tok := p.tok
	switch tok.kind {
	case tokNumber:
		lit, err := parseNumberLiteral(tok.text)
		if err != nil {
			return nil, p.errorf("%v", err)
		}
		return lit, p.advance()
	case tokString:
		return Literal{tok.text}, p.advance()
	case tokDate:
		t, err := ParseTime(tok.text)
		if err != nil {
			return nil, p.errorf("%v", err)
		}
		return Literal{t}, p.advance()
	case tokQuotedIdent:
		return Property{tok.text}, p.advance()
	case tokPunct:
		switch tok.text {
		case "-":
			if err := p.advance(); err != nil {
				return nil, err
			}
			f, err := p.parseFactor()
			if err != nil {
				return nil, err
			}
			if lit, ok := f.(Literal); ok {
				switch v := lit.Value.(type) {
				case int64:
					return Literal{-v}, nil
				case float64:
					return Literal{-v}, nil
				}
			}
			return Arithmetic{Op: "-", Left: Literal{int64(0)}, Right: f}, nil
		case "(":
			if err := p.advance(); err != nil {
				return nil, err
			}
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			return e, p.expect(")")
		}
	case tokIdent:
		switch {
		case strings.EqualFold(tok.text, "TRUE"):
			return Literal{true}, p.advance()
		case strings.EqualFold(tok.text, "FALSE"):
			return Literal{false}, p.advance()
		case strings.EqualFold(tok.text, "NULL"):
			return Literal{nil}, p.advance()
		case isWKTKeyword(tok.text):
			g, err := p.parseWKT()
			if err != nil {
				return nil, err
			}
			return Literal{g}, nil
		case isKeyword(tok.text):
			return nil, p.unexpected()
		}
		if p.peekIs("(") {
			return p.parseFunction()
		}
		return Property{tok.text}, p.advance()
	}
	return nil, p.unexpected()
}

func (p *parser) parseFunction() (Expression, error) {
	name := p.tok.text
	if err := p.advance(); err != nil {
		return nil, err
	}
	args, err := p.parseArgs()
	if err != nil {
		return nil, err
	}
	if err := checkArity(name, len(args)); err != nil {
		return nil, p.errorf("%v", err)
	}
	return Function{Name: name, Args: args}, nil
}

// parseArgs parses a parenthesized, comma separated expression list.
func (p *parser) parseArgs() ([]Expression, error) {
	if err := p.expect("("); err != nil {
		return nil, err
	}
	var args []Expression
	if p.tok.is(")") {
		return args, p.advance()
	}
	for {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, e)
		if !p.tok.is(",") {
			break
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	return args, p.expect(")")
}

func parseNumberLiteral(s string) (Literal, error) {
	if !strings.ContainsAny(s, ".eE") {
		i, err := strconv.ParseInt(s, 10, 64)
		if err == nil {
			return Literal{i}, nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Literal{}, errors.Errorf("invalid number '%s'", s)
	}
	return Literal{f}, nil
}
