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
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/pilosa/geoquery/cql"
	"github.com/pkg/errors"
)

// Feature is a georeferenced record of a FeatureType. Values holds one
// entry per attribute, in attribute order; nil means null.
//
// Values are stored as: String string, Integer int32, Long int64, Float
// float32, Double float64, Boolean bool, Date time.Time (UTC), geometries
// orb.Geometry.
type Feature struct {
	ID     string
	Type   *FeatureType
	Values []interface{}
}

// NewFeature returns a feature of type ft with every attribute null.
func NewFeature(ft *FeatureType, id string) *Feature {
	return &Feature{
		ID:     id,
		Type:   ft,
		Values: make([]interface{}, len(ft.Attributes)),
	}
}

// Attribute returns the value of the named attribute, or nil if it is null
// or not part of the type.
func (f *Feature) Attribute(name string) interface{} {
	v, _ := f.Property(name)
	return v
}

// Property implements cql.Evaluable.
func (f *Feature) Property(name string) (interface{}, bool) {
	i := f.Type.Index(name)
	if i < 0 {
		return nil, false
	}
	return f.Values[i], true
}

// SetAttribute coerces value to the named attribute's type and stores it.
func (f *Feature) SetAttribute(name string, value interface{}) error {
	i := f.Type.Index(name)
	if i < 0 {
		return errors.Errorf("no attribute '%s' in %s", name, f.Type.Name)
	}
	v, err := Coerce(f.Type.Attributes[i].Type, value)
	if err != nil {
		return errors.Wrapf(err, "setting %s", name)
	}
	f.Values[i] = v
	return nil
}

// DefaultGeometry returns the value of the default geometry, or nil.
func (f *Feature) DefaultGeometry() orb.Geometry {
	a := f.Type.DefaultGeometry()
	if a == nil {
		return nil
	}
	g, _ := f.Attribute(a.Name).(orb.Geometry)
	return g
}

// StartTime returns the value of the indexed start-time attribute.
func (f *Feature) StartTime() (time.Time, bool) {
	name := f.Type.StartTime()
	if name == "" {
		return time.Time{}, false
	}
	t, ok := f.Attribute(name).(time.Time)
	return t, ok
}

// Copy returns a shallow copy of f with its own value slice.
func (f *Feature) Copy() *Feature {
	return &Feature{
		ID:     f.ID,
		Type:   f.Type,
		Values: append([]interface{}(nil), f.Values...),
	}
}

// Coerce converts value to the in-memory representation of type t.
func Coerce(t AttributeType, value interface{}) (interface{}, error) {
	if value == nil {
		return nil, nil
	}
	switch t {
	case TypeString:
		if s, ok := value.(string); ok {
			return s, nil
		}
		return cql.FormatValue(value), nil
	case TypeInteger:
		i, err := toInt64(value)
		if err != nil {
			return nil, err
		}
		if i < math.MinInt32 || i > math.MaxInt32 {
			return nil, errors.Errorf("%d overflows Integer", i)
		}
		return int32(i), nil
	case TypeLong:
		return toInt64(value)
	case TypeFloat:
		f, err := toFloat64(value)
		return float32(f), err
	case TypeDouble:
		return toFloat64(value)
	case TypeBoolean:
		switch vt := value.(type) {
		case bool:
			return vt, nil
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(vt))
			return b, errors.Wrap(err, "parsing Boolean")
		}
	case TypeDate:
		switch vt := value.(type) {
		case time.Time:
			return vt.UTC(), nil
		case string:
			return cql.ParseTime(strings.TrimSpace(vt))
		case int64:
			return time.UnixMilli(vt).UTC(), nil
		}
	default:
		if t.IsGeometry() {
			return coerceGeometry(t, value)
		}
		return nil, errors.Errorf("unknown attribute type %v", t)
	}
	return nil, errors.Errorf("cannot convert %v (%T) to %s", value, value, t)
}

func coerceGeometry(t AttributeType, value interface{}) (interface{}, error) {
	var g orb.Geometry
	switch vt := value.(type) {
	case orb.Geometry:
		g = vt
	case string:
		var err error
		if g, err = cql.ParseWKT(vt); err != nil {
			return nil, err
		}
	default:
		return nil, errors.Errorf("cannot convert %v (%T) to %s", value, value, t)
	}
	var ok bool
	switch t {
	case TypeGeometry:
		ok = true
	case TypePoint:
		_, ok = g.(orb.Point)
	case TypeLineString:
		_, ok = g.(orb.LineString)
	case TypePolygon:
		switch g.(type) {
		case orb.Polygon:
			ok = true
		case orb.Bound:
			g, ok = g.(orb.Bound).ToPolygon(), true
		case orb.Ring:
			g, ok = orb.Polygon{g.(orb.Ring)}, true
		}
	case TypeMultiPoint:
		_, ok = g.(orb.MultiPoint)
	case TypeMultiLineString:
		_, ok = g.(orb.MultiLineString)
	case TypeMultiPolygon:
		_, ok = g.(orb.MultiPolygon)
	}
	if !ok {
		return nil, errors.Errorf("%s is not a %s", g.GeoJSONType(), t)
	}
	return g, nil
}

func toInt64(value interface{}) (int64, error) {
	switch vt := value.(type) {
	case int:
		return int64(vt), nil
	case int32:
		return int64(vt), nil
	case int64:
		return vt, nil
	case uint64:
		if vt > math.MaxInt64 {
			return 0, errors.Errorf("%d overflows Long", vt)
		}
		return int64(vt), nil
	case float32:
		return floatToInt(float64(vt))
	case float64:
		return floatToInt(vt)
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(vt), 10, 64)
		return i, errors.Wrap(err, "parsing integer")
	}
	return 0, errors.Errorf("cannot convert %v (%T) to an integer", value, value)
}

func floatToInt(f float64) (int64, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, errors.Errorf("%v is not integral", f)
	}
	return int64(f), nil
}

func toFloat64(value interface{}) (float64, error) {
	switch vt := value.(type) {
	case float64:
		return vt, nil
	case float32:
		return float64(vt), nil
	case int:
		return float64(vt), nil
	case int32:
		return float64(vt), nil
	case int64:
		return float64(vt), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(vt), 64)
		return f, errors.Wrap(err, "parsing number")
	}
	return 0, errors.Errorf("cannot convert %v (%T) to a number", value, value)
}

// FormatValue renders an attribute value for display: null as "null", dates
// as RFC3339 with milliseconds in UTC, geometries as WKT.
func FormatValue(v interface{}) string {
	return cql.FormatValue(v)
}

// EncodeFeature renders f as "fid=v1|v2|...", with null values empty and
// geometries in GeoTools' WKT layout, e.g. "POINT (45 49)".
func EncodeFeature(f *Feature) string {
	var sb strings.Builder
	sb.WriteString(f.ID)
	sb.WriteByte('=')
	for i, v := range f.Values {
		if i > 0 {
			sb.WriteByte('|')
		}
		switch vt := v.(type) {
		case nil:
		case orb.Geometry:
			sb.WriteString(spacedWKT(vt))
		default:
			sb.WriteString(FormatValue(v))
		}
	}
	return sb.String()
}

// spacedWKT writes g as WKT with a space after the type name and after
// each comma.
func spacedWKT(g orb.Geometry) string {
	s := FormatValue(g)
	if i := strings.IndexByte(s, '('); i > 0 && s[i-1] != ' ' {
		s = s[:i] + " " + s[i:]
	}
	return strings.Replace(s, ",", ", ", -1)
}
