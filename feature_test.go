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
	"reflect"
	"testing"
	"time"

	"github.com/paulmach/orb"
)

func TestCoerce(t *testing.T) {
	when := time.Date(2014, 7, 15, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		typ      AttributeType
		in       interface{}
		exp      interface{}
		expError bool
	}{
		{typ: TypeString, in: "Beth", exp: "Beth"},
		{typ: TypeString, in: int64(7), exp: "7"},
		{typ: TypeString, in: nil, exp: nil},
		{typ: TypeInteger, in: 3, exp: int32(3)},
		{typ: TypeInteger, in: "12", exp: int32(12)},
		{typ: TypeInteger, in: int64(1) << 40, expError: true},
		{typ: TypeInteger, in: 2.5, expError: true},
		{typ: TypeLong, in: 7, exp: int64(7)},
		{typ: TypeLong, in: float64(9), exp: int64(9)},
		{typ: TypeLong, in: "x", expError: true},
		{typ: TypeFloat, in: 1.5, exp: float32(1.5)},
		{typ: TypeDouble, in: int32(2), exp: float64(2)},
		{typ: TypeDouble, in: " -37.25 ", exp: -37.25},
		{typ: TypeBoolean, in: "true", exp: true},
		{typ: TypeBoolean, in: 1, expError: true},
		{typ: TypeDate, in: when.In(time.FixedZone("x", 3600)), exp: when},
		{typ: TypeDate, in: "2014-07-15T12:00:00.000Z", exp: when},
		{typ: TypeDate, in: when.UnixNano() / int64(time.Millisecond), exp: when},
		{typ: TypeDate, in: "yesterday", expError: true},
		{typ: TypeDate, in: time.Date(1500, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli(), exp: time.Date(1500, 1, 1, 0, 0, 0, 0, time.UTC)},
		{typ: TypeDate, in: time.Date(2300, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli(), exp: time.Date(2300, 1, 1, 0, 0, 0, 0, time.UTC)},
		{typ: TypePoint, in: orb.Point{-77, -37}, exp: orb.Point{-77, -37}},
		{typ: TypePoint, in: "POINT(-77 -37)", exp: orb.Point{-77, -37}},
		{typ: TypePoint, in: orb.LineString{{0, 0}, {1, 1}}, expError: true},
		{typ: TypeGeometry, in: orb.LineString{{0, 0}, {1, 1}}, exp: orb.LineString{{0, 0}, {1, 1}}},
		{typ: TypePolygon, in: orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1, 1}},
			exp: orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1, 1}}.ToPolygon()},
		{typ: TypePoint, in: "POINT(x y)", expError: true},
		{typ: TypePoint, in: 5, expError: true},
	}
	for i, test := range tests {
		got, err := Coerce(test.typ, test.in)
		if test.expError {
			if err == nil {
				t.Errorf("%d: expected error coercing %v to %s, got %v", i, test.in, test.typ, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("%d: coercing %v to %s: %v", i, test.in, test.typ, err)
			continue
		}
		if !reflect.DeepEqual(got, test.exp) {
			t.Errorf("%d: expected %#v, got %#v", i, test.exp, got)
		}
	}
}

func tutorialType(t *testing.T) *FeatureType {
	t.Helper()
	ft, err := ParseFeatureType("QueryTutorial", tutorialSpec)
	if err != nil {
		t.Fatal(err)
	}
	if err := ft.SetStartTime("When"); err != nil {
		t.Fatal(err)
	}
	return ft
}

func TestFeatureAttributes(t *testing.T) {
	ft := tutorialType(t)
	f := NewFeature(ft, "Observation.1")
	for name, v := range map[string]interface{}{
		"Who":   "Beth",
		"What":  1,
		"When":  "2014-07-15T12:00:00Z",
		"Where": "POINT (-77 -37)",
	} {
		if err := f.SetAttribute(name, v); err != nil {
			t.Fatalf("setting %s: %v", name, err)
		}
	}
	if err := f.SetAttribute("Nope", 1); err == nil {
		t.Fatal("expected error setting unknown attribute")
	}
	if err := f.SetAttribute("What", "seven"); err == nil {
		t.Fatal("expected error setting bad Long")
	}

	if v := f.Attribute("What"); v != int64(1) {
		t.Fatalf("unexpected What %#v", v)
	}
	if _, ok := f.Property("Nope"); ok {
		t.Fatal("unknown property should not be found")
	}
	if v, ok := f.Property("Why"); !ok || v != nil {
		t.Fatalf("expected null Why, got %v %v", v, ok)
	}
	if g := f.DefaultGeometry(); g != (orb.Point{-77, -37}) {
		t.Fatalf("unexpected geometry %v", g)
	}
	if st, ok := f.StartTime(); !ok || !st.Equal(time.Date(2014, 7, 15, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected start time %v", st)
	}

	exp := "Observation.1=Beth|1|2014-07-15T12:00:00.000Z|POINT (-77 -37)|"
	if got := EncodeFeature(f); got != exp {
		t.Fatalf("expected %s, got %s", exp, got)
	}

	c := f.Copy()
	c.Values[0] = "Adam"
	if f.Attribute("Who") != "Beth" {
		t.Fatal("Copy shares values")
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in  interface{}
		exp string
	}{
		{in: nil, exp: "null"},
		{in: float32(2.5), exp: "2.5"},
		{in: 0.1, exp: "0.1"},
		{in: int32(-3), exp: "-3"},
		{in: true, exp: "true"},
		{in: orb.Point{1.5, 2}, exp: "POINT(1.5 2)"},
		{in: time.Date(2014, 1, 2, 3, 4, 5, 6e6, time.FixedZone("x", -3600)), exp: "2014-01-02T04:04:05.006Z"},
	}
	for _, test := range tests {
		if got := FormatValue(test.in); got != test.exp {
			t.Errorf("FormatValue(%#v): expected %s, got %s", test.in, test.exp, got)
		}
	}
}

func TestEncodeFeatureGeometries(t *testing.T) {
	ft, err := ParseFeatureType("testType", "name:String,*geom:Geometry:srid=4326")
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		g   orb.Geometry
		exp string
	}{
		{g: orb.Point{45, 49}, exp: "fid-1=testType|POINT (45 49)"},
		{g: orb.LineString{{0, 0}, {1, 1.5}}, exp: "fid-1=testType|LINESTRING (0 0, 1 1.5)"},
		{g: orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}, exp: "fid-1=testType|POLYGON ((0 0, 1 0, 1 1, 0 0))"},
	}
	for _, test := range tests {
		f := NewFeature(ft, "fid-1")
		f.Values = []interface{}{"testType", test.g}
		if got := EncodeFeature(f); got != test.exp {
			t.Errorf("expected %s, got %s", test.exp, got)
		}
	}
}
