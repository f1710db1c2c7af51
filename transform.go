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

package geoquery

import (
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/pilosa/geoquery/cql"
	"github.com/pkg/errors"
)

// Definition is one output attribute of a query transform. It is written
// either as a bare attribute name ("What"), which projects that attribute,
// or as "name=expression" ("derived=strConcat('hello ',Who)").
type Definition struct {
	Name string
	Expr cql.Expression
}

// ParseDefinition parses a single transform definition.
func ParseDefinition(s string) (Definition, error) {
	if i := strings.IndexByte(s, '='); i > 0 {
		if name := strings.TrimSpace(s[:i]); isIdentifier(name) {
			expr, err := cql.ParseExpression(s[i+1:])
			if err != nil {
				return Definition{}, errors.Wrapf(err, "parsing transform '%s'", s)
			}
			return Definition{Name: name, Expr: expr}, nil
		}
	}
	expr, err := cql.ParseExpression(s)
	if err != nil {
		return Definition{}, errors.Wrapf(err, "parsing transform '%s'", s)
	}
	p, ok := expr.(cql.Property)
	if !ok {
		return Definition{}, errors.Errorf("transform '%s' needs a name: use name=expression", s)
	}
	return Definition{Name: p.Name, Expr: p}, nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

// IsProjection reports whether d copies a source attribute unchanged.
func (d Definition) IsProjection() bool {
	p, ok := d.Expr.(cql.Property)
	return ok && p.Name == d.Name
}

func (d Definition) String() string {
	if d.IsProjection() {
		return d.Name
	}
	return d.Name + "=" + d.Expr.String()
}

// Transform maps features of a source type to a derived type.
type Transform struct {
	Definitions []Definition
	Source      *FeatureType
	Type        *FeatureType
}

// NewTransform parses the property definitions of a query against src and
// derives the output type.
func NewTransform(src *FeatureType, properties []string) (*Transform, error) {
	defs := make([]Definition, 0, len(properties))
	for _, p := range properties {
		d, err := ParseDefinition(p)
		if err != nil {
			return nil, err
		}
		defs = append(defs, d)
	}
	ft, err := DeriveType(src, defs)
	if err != nil {
		return nil, err
	}
	return &Transform{Definitions: defs, Source: src, Type: ft}, nil
}

// DeriveType computes the feature type produced by defs over src. Bare
// attribute expressions keep the source descriptor; other expressions take
// their static result type. The first geometry is the default geometry.
func DeriveType(src *FeatureType, defs []Definition) (*FeatureType, error) {
	ft := &FeatureType{Name: src.Name, UserData: make(map[string]string)}
	srid := 0
	if g := src.DefaultGeometry(); g != nil {
		srid = g.SRID
	}
	seen := make(map[string]struct{})
	for _, d := range defs {
		if _, ok := seen[d.Name]; ok {
			return nil, errors.Errorf("duplicate transform attribute '%s'", d.Name)
		}
		seen[d.Name] = struct{}{}
		for _, name := range cql.PropertyNames(d.Expr) {
			if src.Index(name) < 0 {
				return nil, errors.Errorf("transform '%s' references unknown attribute '%s'", d, name)
			}
		}
		a := AttributeDescriptor{Name: d.Name}
		if p, ok := d.Expr.(cql.Property); ok {
			a.Type = src.Descriptor(p.Name).Type
			a.SRID = src.Descriptor(p.Name).SRID
		} else {
			a.Type = expressionType(src, d.Expr)
			if a.Type.IsGeometry() {
				a.SRID = srid
			}
		}
		ft.Attributes = append(ft.Attributes, a)
	}
	if err := ft.resolveDefaultGeometry(); err != nil {
		return nil, err
	}
	if st := src.StartTime(); st != "" {
		if a := ft.Descriptor(st); a != nil && a.Type == TypeDate {
			ft.UserData[StartTimeKey] = st
		}
	}
	return ft, nil
}

var kindTypes = map[cql.Kind]AttributeType{
	cql.KindString:   TypeString,
	cql.KindInteger:  TypeInteger,
	cql.KindDouble:   TypeDouble,
	cql.KindPoint:    TypePoint,
	cql.KindPolygon:  TypePolygon,
	cql.KindGeometry: TypeGeometry,
}

func expressionType(src *FeatureType, e cql.Expression) AttributeType {
	switch et := e.(type) {
	case cql.Property:
		return src.Descriptor(et.Name).Type
	case cql.Function:
		if k, ok := cql.FunctionKind(et.Name); ok {
			if t, ok := kindTypes[k]; ok {
				return t
			}
		}
	case cql.Arithmetic:
		return TypeDouble
	case cql.Literal:
		switch et.Value.(type) {
		case int64:
			return TypeLong
		case float64:
			return TypeDouble
		case bool:
			return TypeBoolean
		case time.Time:
			return TypeDate
		case orb.Geometry:
			return TypeGeometry
		}
	}
	return TypeString
}

// Apply evaluates the transform against f, producing a feature of the
// derived type with the same ID.
func (t *Transform) Apply(f *Feature) (*Feature, error) {
	out := NewFeature(t.Type, f.ID)
	for i, d := range t.Definitions {
		v, err := d.Expr.Evaluate(f)
		if err != nil {
			return nil, errors.Wrapf(err, "evaluating %s for '%s'", d, f.ID)
		}
		if out.Values[i], err = Coerce(t.Type.Attributes[i].Type, v); err != nil {
			return nil, errors.Wrapf(err, "converting %s for '%s'", d, f.ID)
		}
	}
	return out, nil
}
