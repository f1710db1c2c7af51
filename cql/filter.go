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
	"regexp"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/pkg/errors"
)

// Filter is a predicate over an Evaluable.
type Filter interface {
	Evaluate(e Evaluable) (bool, error)
	String() string
}

type includeFilter struct{}
type excludeFilter struct{}

// Include matches everything; Exclude matches nothing.
var (
	Include Filter = includeFilter{}
	Exclude Filter = excludeFilter{}
)

func (includeFilter) Evaluate(Evaluable) (bool, error) { return true, nil }
func (includeFilter) String() string                   { return "INCLUDE" }
func (excludeFilter) Evaluate(Evaluable) (bool, error) { return false, nil }
func (excludeFilter) String() string                   { return "EXCLUDE" }

// And matches when all children match.
type And struct {
	Children []Filter
}

// Evaluate implements Filter.
func (a And) Evaluate(e Evaluable) (bool, error) {
	for _, c := range a.Children {
		ok, err := c.Evaluate(e)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func (a And) String() string { return joinFilters(a.Children, " AND ") }

// Or matches when any child matches.
type Or struct {
	Children []Filter
}

// Evaluate implements Filter.
func (o Or) Evaluate(e Evaluable) (bool, error) {
	for _, c := range o.Children {
		ok, err := c.Evaluate(e)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

func (o Or) String() string { return joinFilters(o.Children, " OR ") }

func joinFilters(fs []Filter, sep string) string {
	parts := make([]string, len(fs))
	for i, f := range fs {
		parts[i] = groupString(f)
	}
	return strings.Join(parts, sep)
}

// groupString parenthesizes every operand that is not a single call, the
// way AndText and OrText do, so rendered filters nest unambiguously and
// render back in the form they were built in.
func groupString(f Filter) string {
	s := f.String()
	if needsGroup(s) {
		return "(" + s + ")"
	}
	return s
}

// Not inverts its child.
type Not struct {
	Filter Filter
}

// Evaluate implements Filter.
func (n Not) Evaluate(e Evaluable) (bool, error) {
	ok, err := n.Filter.Evaluate(e)
	return !ok && err == nil, err
}

func (n Not) String() string { return "NOT (" + n.Filter.String() + ")" }

// Compare applies a binary comparison operator. Comparisons with null are
// false.
type Compare struct {
	Op          string
	Left, Right Expression
}

// Evaluate implements Filter.
func (c Compare) Evaluate(e Evaluable) (bool, error) {
	l, err := c.Left.Evaluate(e)
	if err != nil {
		return false, err
	}
	r, err := c.Right.Evaluate(e)
	if err != nil {
		return false, err
	}
	if l == nil || r == nil {
		return false, nil
	}
	n, err := compareValues(l, r)
	if err != nil {
		return false, errors.Wrapf(err, "evaluating %s", c)
	}
	switch c.Op {
	case "=":
		return n == 0, nil
	case "<>", "!=":
		return n != 0, nil
	case "<":
		return n < 0, nil
	case "<=":
		return n <= 0, nil
	case ">":
		return n > 0, nil
	case ">=":
		return n >= 0, nil
	}
	return false, errors.Errorf("unknown comparison operator '%s'", c.Op)
}

func (c Compare) String() string {
	return c.Left.String() + " " + c.Op + " " + c.Right.String()
}

// Like matches text against a pattern where % is any run of characters
// and _ is any single character. A backslash escapes the next character.
type Like struct {
	Expr            Expression
	Pattern         string
	CaseInsensitive bool
	Negate          bool

	re *regexp.Regexp
}

// NewLike compiles a LIKE filter.
func NewLike(expr Expression, pattern string, caseInsensitive, negate bool) (Like, error) {
	re, err := likeRegexp(pattern, caseInsensitive)
	if err != nil {
		return Like{}, err
	}
	return Like{Expr: expr, Pattern: pattern, CaseInsensitive: caseInsensitive, Negate: negate, re: re}, nil
}

func likeRegexp(pattern string, caseInsensitive bool) (*regexp.Regexp, error) {
	var sb strings.Builder
	if caseInsensitive {
		sb.WriteString("(?is)")
	} else {
		sb.WriteString("(?s)")
	}
	sb.WriteByte('^')
	for i := 0; i < len(pattern); i++ {
		switch c := pattern[i]; c {
		case '%':
			sb.WriteString(".*")
		case '_':
			sb.WriteByte('.')
		case '\\':
			if i+1 < len(pattern) {
				i++
				sb.WriteString(regexp.QuoteMeta(pattern[i : i+1]))
			}
		default:
			sb.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	sb.WriteByte('$')
	re, err := regexp.Compile(sb.String())
	return re, errors.Wrapf(err, "compiling pattern '%s'", pattern)
}

// Evaluate implements Filter.
func (l Like) Evaluate(e Evaluable) (bool, error) {
	v, err := l.Expr.Evaluate(e)
	if err != nil || v == nil {
		return false, err
	}
	re := l.re
	if re == nil {
		if re, err = likeRegexp(l.Pattern, l.CaseInsensitive); err != nil {
			return false, err
		}
	}
	return re.MatchString(FormatValue(v)) != l.Negate, nil
}

func (l Like) String() string {
	op := " LIKE "
	if l.CaseInsensitive {
		op = " ILIKE "
	}
	if l.Negate {
		op = " NOT" + op
	}
	return l.Expr.String() + op + Literal{l.Pattern}.String()
}

// IsNull matches null (or, negated, non-null) values.
type IsNull struct {
	Expr   Expression
	Negate bool
}

// Evaluate implements Filter.
func (n IsNull) Evaluate(e Evaluable) (bool, error) {
	v, err := n.Expr.Evaluate(e)
	if err != nil {
		return false, err
	}
	return (v == nil) != n.Negate, nil
}

func (n IsNull) String() string {
	if n.Negate {
		return n.Expr.String() + " IS NOT NULL"
	}
	return n.Expr.String() + " IS NULL"
}

// Between matches values in the closed range [Lower, Upper].
type Between struct {
	Expr, Lower, Upper Expression
	Negate             bool
}

// Evaluate implements Filter.
func (b Between) Evaluate(e Evaluable) (bool, error) {
	v, err := b.Expr.Evaluate(e)
	if err != nil || v == nil {
		return false, err
	}
	lo, err := b.Lower.Evaluate(e)
	if err != nil {
		return false, err
	}
	hi, err := b.Upper.Evaluate(e)
	if err != nil {
		return false, err
	}
	if lo == nil || hi == nil {
		return false, nil
	}
	c1, err := compareValues(v, lo)
	if err != nil {
		return false, err
	}
	c2, err := compareValues(v, hi)
	if err != nil {
		return false, err
	}
	return (c1 >= 0 && c2 <= 0) != b.Negate, nil
}

func (b Between) String() string {
	op := " BETWEEN "
	if b.Negate {
		op = " NOT BETWEEN "
	}
	return b.Expr.String() + op + b.Lower.String() + " AND " + b.Upper.String()
}

// In matches values equal to one of Values.
type In struct {
	Expr   Expression
	Values []Expression
	Negate bool
}

// Evaluate implements Filter.
func (in In) Evaluate(e Evaluable) (bool, error) {
	v, err := in.Expr.Evaluate(e)
	if err != nil || v == nil {
		return false, err
	}
	for _, ve := range in.Values {
		c, err := ve.Evaluate(e)
		if err != nil {
			return false, err
		}
		if c == nil {
			continue
		}
		n, err := compareValues(v, c)
		if err != nil {
			return false, err
		}
		if n == 0 {
			return !in.Negate, nil
		}
	}
	return in.Negate, nil
}

func (in In) String() string {
	vals := make([]string, len(in.Values))
	for i, v := range in.Values {
		vals[i] = v.String()
	}
	op := " IN ("
	if in.Negate {
		op = " NOT IN ("
	}
	return in.Expr.String() + op + strings.Join(vals, ", ") + ")"
}

// Temporal operators.
const (
	During  = "DURING"
	Before  = "BEFORE"
	After   = "AFTER"
	TEquals = "TEQUALS"
)

// Temporal compares a date against an instant or, for DURING, a period.
// DURING excludes both endpoints.
type Temporal struct {
	Op   string
	Expr Expression
	From time.Time
	To   time.Time // only for DURING
}

// Evaluate implements Filter.
func (t Temporal) Evaluate(e Evaluable) (bool, error) {
	v, err := t.Expr.Evaluate(e)
	if err != nil || v == nil {
		return false, err
	}
	tv, ok := toTime(v)
	if !ok {
		return false, errors.Errorf("%s: not a date: %v", t.Op, v)
	}
	switch t.Op {
	case During:
		return tv.After(t.From) && tv.Before(t.To), nil
	case Before:
		return tv.Before(t.From), nil
	case After:
		return tv.After(t.From), nil
	case TEquals:
		return tv.Equal(t.From), nil
	}
	return false, errors.Errorf("unknown temporal operator '%s'", t.Op)
}

func (t Temporal) String() string {
	if t.Op == During {
		return t.Expr.String() + " DURING " + FormatTime(t.From) + "/" + FormatTime(t.To)
	}
	return t.Expr.String() + " " + t.Op + " " + FormatTime(t.From)
}

// BBox matches geometries intersecting an axis-aligned box.
type BBox struct {
	Property string
	Bound    orb.Bound
	CRS      string
}

// Evaluate implements Filter.
func (b BBox) Evaluate(e Evaluable) (bool, error) {
	g, err := geometryProperty(e, b.Property)
	if err != nil || g == nil {
		return false, err
	}
	if p, ok := g.(orb.Point); ok {
		return b.Bound.Contains(p), nil
	}
	return Intersects(g, b.Bound), nil
}

func (b BBox) String() string {
	s := "BBOX(" + Property{b.Property}.String() + ", " +
		formatFloat(b.Bound.Min[0]) + ", " + formatFloat(b.Bound.Min[1]) + ", " +
		formatFloat(b.Bound.Max[0]) + ", " + formatFloat(b.Bound.Max[1])
	if b.CRS != "" {
		s += ", " + Literal{b.CRS}.String()
	}
	return s + ")"
}

// Spatial relation operators.
const (
	OpIntersects = "INTERSECTS"
	OpDisjoint   = "DISJOINT"
	OpWithin     = "WITHIN"
	OpContains   = "CONTAINS"
)

// Spatial relates a geometry property to a literal geometry.
type Spatial struct {
	Op       string
	Property string
	Geometry orb.Geometry
}

// Evaluate implements Filter.
func (s Spatial) Evaluate(e Evaluable) (bool, error) {
	g, err := geometryProperty(e, s.Property)
	if err != nil || g == nil {
		return false, err
	}
	switch s.Op {
	case OpIntersects:
		return Intersects(g, s.Geometry), nil
	case OpDisjoint:
		return !Intersects(g, s.Geometry), nil
	case OpWithin:
		return Within(g, s.Geometry), nil
	case OpContains:
		return Within(s.Geometry, g), nil
	}
	return false, errors.Errorf("unknown spatial operator '%s'", s.Op)
}

func (s Spatial) String() string {
	return s.Op + "(" + Property{s.Property}.String() + ", " + wkt.MarshalString(s.Geometry) + ")"
}

// unitsToMeters converts DWITHIN distance units.
var unitsToMeters = map[string]float64{
	"meters":         1,
	"kilometers":     1000,
	"feet":           0.3048,
	"statute miles":  1609.344,
	"nautical miles": 1852,
}

// DWithin matches geometries within a distance of a literal geometry.
type DWithin struct {
	Property string
	Geometry orb.Geometry
	Distance float64
	Units    string
}

// Meters returns the distance converted to meters.
func (d DWithin) Meters() float64 {
	return d.Distance * unitsToMeters[d.Units]
}

// Evaluate implements Filter.
func (d DWithin) Evaluate(e Evaluable) (bool, error) {
	g, err := geometryProperty(e, d.Property)
	if err != nil || g == nil {
		return false, err
	}
	return WithinDistance(g, d.Geometry, d.Meters()), nil
}

func (d DWithin) String() string {
	return "DWITHIN(" + Property{d.Property}.String() + ", " + wkt.MarshalString(d.Geometry) + ", " +
		formatFloat(d.Distance) + ", " + d.Units + ")"
}

func geometryProperty(e Evaluable, name string) (orb.Geometry, error) {
	v, ok := e.Property(name)
	if !ok {
		return nil, errors.Errorf("unknown property '%s'", name)
	}
	if v == nil {
		return nil, nil
	}
	g, ok := toGeometry(v)
	if !ok {
		return nil, errors.Errorf("property '%s' is not a geometry", name)
	}
	return g, nil
}

// FilterProperties returns the property names referenced by f, in order of
// first appearance.
func FilterProperties(f Filter) []string {
	var names []string
	seen := make(map[string]struct{})
	add := func(n string) {
		if _, ok := seen[n]; !ok {
			seen[n] = struct{}{}
			names = append(names, n)
		}
	}
	var walk func(Filter)
	exprs := func(es ...Expression) {
		for _, e := range es {
			for _, n := range PropertyNames(e) {
				add(n)
			}
		}
	}
	walk = func(f Filter) {
		switch ft := f.(type) {
		case And:
			for _, c := range ft.Children {
				walk(c)
			}
		case Or:
			for _, c := range ft.Children {
				walk(c)
			}
		case Not:
			walk(ft.Filter)
		case Compare:
			exprs(ft.Left, ft.Right)
		case Like:
			exprs(ft.Expr)
		case IsNull:
			exprs(ft.Expr)
		case Between:
			exprs(ft.Expr, ft.Lower, ft.Upper)
		case In:
			exprs(ft.Expr)
			exprs(ft.Values...)
		case Temporal:
			exprs(ft.Expr)
		case BBox:
			add(ft.Property)
		case Spatial:
			add(ft.Property)
		case DWithin:
			add(ft.Property)
		}
	}
	walk(f)
	return names
}
