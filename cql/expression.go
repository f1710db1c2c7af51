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

// Expression computes a value from an Evaluable.
type Expression interface {
	Evaluate(e Evaluable) (interface{}, error)
	String() string
}

// Property references a named attribute.
type Property struct {
	Name string
}

// Evaluate implements Expression.
func (p Property) Evaluate(e Evaluable) (interface{}, error) {
	v, ok := e.Property(p.Name)
	if !ok {
		return nil, errors.Errorf("unknown property '%s'", p.Name)
	}
	return v, nil
}

func (p Property) String() string {
	if isPlainIdent(p.Name) {
		return p.Name
	}
	return `"` + p.Name + `"`
}

// Literal is a constant: string, int64, float64, bool, time.Time or
// orb.Geometry.
type Literal struct {
	Value interface{}
}

// Evaluate implements Expression.
func (l Literal) Evaluate(Evaluable) (interface{}, error) { return l.Value, nil }

func (l Literal) String() string {
	switch v := l.Value.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + strings.Replace(v, "'", "''", -1) + "'"
	case float64:
		return formatFloat(v)
	case time.Time:
		return FormatTime(v)
	case orb.Geometry:
		return wkt.MarshalString(v)
	case bool:
		if v {
			return "TRUE"
		}
		return "FALSE"
	}
	return FormatValue(l.Value)
}

// Function calls one of the registered functions by name.
type Function struct {
	Name string
	Args []Expression
}

// Evaluate implements Expression.
func (f Function) Evaluate(e Evaluable) (interface{}, error) {
	def, ok := lookupFunction(f.Name)
	if !ok {
		return nil, errors.Errorf("unknown function '%s'", f.Name)
	}
	args := make([]interface{}, len(f.Args))
	for i, a := range f.Args {
		v, err := a.Evaluate(e)
		if err != nil {
			return nil, errors.Wrapf(err, "evaluating argument %d of %s", i, f.Name)
		}
		args[i] = v
	}
	v, err := def.fn(args)
	return v, errors.Wrap(err, f.Name)
}

func (f Function) String() string {
	args := make([]string, len(f.Args))
	for i, a := range f.Args {
		args[i] = a.String()
	}
	return f.Name + "(" + strings.Join(args, ", ") + ")"
}

// Arithmetic applies one of + - * / to two numeric operands.
type Arithmetic struct {
	Op          string
	Left, Right Expression
}

// Evaluate implements Expression. Integer operands stay integral except
// under division. A null operand yields null.
func (a Arithmetic) Evaluate(e Evaluable) (interface{}, error) {
	l, err := a.Left.Evaluate(e)
	if err != nil {
		return nil, err
	}
	r, err := a.Right.Evaluate(e)
	if err != nil {
		return nil, err
	}
	if l == nil || r == nil {
		return nil, nil
	}
	if li, ok := toInt(l); ok && a.Op != "/" {
		if ri, ok := toInt(r); ok {
			switch a.Op {
			case "+":
				return li + ri, nil
			case "-":
				return li - ri, nil
			case "*":
				return li * ri, nil
			}
		}
	}
	lf, lok := toFloat(l)
	rf, rok := toFloat(r)
	if !lok || !rok {
		return nil, errors.Errorf("non-numeric operands for '%s': %v, %v", a.Op, l, r)
	}
	switch a.Op {
	case "+":
		return lf + rf, nil
	case "-":
		return lf - rf, nil
	case "*":
		return lf * rf, nil
	case "/":
		return lf / rf, nil
	}
	return nil, errors.Errorf("unknown operator '%s'", a.Op)
}

func (a Arithmetic) String() string {
	return "(" + a.Left.String() + " " + a.Op + " " + a.Right.String() + ")"
}

func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEIN") {
		s += ".0"
	}
	return s
}

// isPlainIdent reports whether name can be written without quotes.
func isPlainIdent(name string) bool {
	if name == "" || !isIdentStart(name[0]) {
		return false
	}
	for i := 1; i < len(name); i++ {
		if !isIdentPart(name[i]) {
			return false
		}
	}
	return !isKeyword(name)
}

var keywords = map[string]struct{}{
	"AND": {}, "OR": {}, "NOT": {}, "LIKE": {}, "ILIKE": {}, "IS": {}, "NULL": {},
	"BETWEEN": {}, "IN": {}, "DURING": {}, "BEFORE": {}, "AFTER": {}, "TEQUALS": {},
	"INCLUDE": {}, "EXCLUDE": {}, "TRUE": {}, "FALSE": {},
}

func isKeyword(s string) bool {
	_, ok := keywords[strings.ToUpper(s)]
	return ok
}

// PropertyNames returns the names of all properties referenced by e, in
// order of first appearance.
func PropertyNames(e Expression) []string {
	var names []string
	seen := make(map[string]struct{})
	walkExpression(e, func(p Property) {
		if _, ok := seen[p.Name]; !ok {
			seen[p.Name] = struct{}{}
			names = append(names, p.Name)
		}
	})
	return names
}

func walkExpression(e Expression, fn func(Property)) {
	switch et := e.(type) {
	case Property:
		fn(et)
	case Function:
		for _, a := range et.Args {
			walkExpression(a, fn)
		}
	case Arithmetic:
		walkExpression(et.Left, fn)
		walkExpression(et.Right, fn)
	}
}
