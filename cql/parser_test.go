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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseFilterString(t *testing.T) {
	tests := []struct {
		name  string
		input string
		exp   string
	}{
		{
			name:  "tutorial base filter",
			input: "BBOX(Where, -77.5, -37.5, -76.5, -36.5) AND (When DURING 2014-07-01T00:00:00.000Z/2014-09-30T23:59:59.999Z) AND (Who = 'Beth')",
			exp:   "BBOX(Where, -77.5, -37.5, -76.5, -36.5) AND (When DURING 2014-07-01T00:00:00.000Z/2014-09-30T23:59:59.999Z) AND (Who = 'Beth')",
		},
		{name: "or", input: "Who = 'Beth' OR Who = 'Adam'", exp: "(Who = 'Beth') OR (Who = 'Adam')"},
		{name: "nested groups", input: "Who = 'Beth' AND (What < 3 OR What > 10)", exp: "(Who = 'Beth') AND ((What < 3) OR (What > 10))"},
		{name: "not", input: "NOT Who LIKE 'B%'", exp: "NOT (Who LIKE 'B%')"},
		{name: "not like", input: "Who NOT LIKE 'B%'", exp: "Who NOT LIKE 'B%'"},
		{name: "ilike", input: "who ilike 'b_th'", exp: "who ILIKE 'b_th'"},
		{name: "between", input: "What BETWEEN 1 AND 5 AND Who = 'x'", exp: "(What BETWEEN 1 AND 5) AND (Who = 'x')"},
		{name: "is not null", input: "Why IS NOT NULL", exp: "Why IS NOT NULL"},
		{name: "in", input: "Who IN ('Adam','Beth')", exp: "Who IN ('Adam', 'Beth')"},
		{name: "arithmetic group", input: "(What + 1) > 5", exp: "(What + 1) > 5"},
		{name: "precedence", input: "What * 2 + 1 >= 7", exp: "((What * 2) + 1) >= 7"},
		{name: "after", input: "When AFTER 2014-01-01T00:00:00Z", exp: "When AFTER 2014-01-01T00:00:00.000Z"},
		{name: "quoted identifier", input: `"my attr" <> 3`, exp: `"my attr" <> 3`},
		{name: "escaped quote", input: "Who = 'O''Brien'", exp: "Who = 'O''Brien'"},
		{name: "float literal", input: "Avg > 2.0", exp: "Avg > 2.0"},
		{name: "negative literal", input: "What > -3", exp: "What > -3"},
		{name: "include", input: "include", exp: "INCLUDE"},
		{name: "exclude", input: "EXCLUDE", exp: "EXCLUDE"},
		{name: "function", input: "strToUpperCase(Who) = 'BETH'", exp: "strToUpperCase(Who) = 'BETH'"},
		{name: "ungrouped and", input: "Who = 'Beth' AND When DURING 2014-07-01T00:00:00.000Z/2014-09-30T23:59:59.999Z", exp: "(Who = 'Beth') AND (When DURING 2014-07-01T00:00:00.000Z/2014-09-30T23:59:59.999Z)"},
		{name: "calls and not", input: "BBOX(Where, 0, 0, 1, 1) OR NOT Who = 'x' OR INCLUDE", exp: "BBOX(Where, 0.0, 0.0, 1.0, 1.0) OR (NOT (Who = 'x')) OR INCLUDE"},
		{name: "bbox crs", input: "BBOX(geom, 1, 2, 3, 4, 'EPSG:4326')", exp: "BBOX(geom, 1.0, 2.0, 3.0, 4.0, 'EPSG:4326')"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			f, err := ParseFilter(test.input)
			require.NoError(t, err)
			require.Equal(t, test.exp, f.String())

			again, err := ParseFilter(f.String())
			require.NoError(t, err, "rendered filter should parse")
			require.Equal(t, f.String(), again.String())
		})
	}
}

func TestParseFilterGeometries(t *testing.T) {
	for _, input := range []string{
		"INTERSECTS(Where, POLYGON((0 0, 1 0, 1 1, 0 1, 0 0)))",
		"WITHIN(Where, POLYGON ((0 0, 1 0, 1 1, 0 1, 0 0)))",
		"CONTAINS(geom, POINT(1 2))",
		"DISJOINT(geom, LINESTRING(0 0, 3 3))",
		"DWITHIN(Where, POINT(-77 -37), 10, kilometers)",
		"DWITHIN(Where, POINT(-77 -37), 2.5, statute miles)",
		"INTERSECTS(Where, 'POINT(1 1)')",
	} {
		t.Run(input, func(t *testing.T) {
			f, err := ParseFilter(input)
			require.NoError(t, err)
			again, err := ParseFilter(f.String())
			require.NoError(t, err, "rendered filter %q should parse", f.String())
			require.Equal(t, f.String(), again.String())
		})
	}
}

func TestParseFilterErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "dangling operator", input: "Who = "},
		{name: "short bbox", input: "BBOX(Where, 1, 2)"},
		{name: "inverted bbox", input: "BBOX(Where, 3, 2, 1, 4)"},
		{name: "inverted period", input: "When DURING 2014-09-30T00:00:00Z/2014-07-01T00:00:00Z"},
		{name: "unterminated string", input: "Who = 'Beth"},
		{name: "bad arity", input: "strLength(Who, What) > 1"},
		{name: "unknown function", input: "frobnicate(Who) = 1"},
		{name: "bad character", input: "Who # 3"},
		{name: "trailing tokens", input: "Who = 'Beth' 'Adam'"},
		{name: "unbalanced group", input: "(Who = 'Beth'"},
		{name: "bad units", input: "DWITHIN(Where, POINT(0 0), 1, parsecs)"},
		{name: "empty in", input: "Who IN ()"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := ParseFilter(test.input)
			require.Error(t, err)
			_, ok := err.(*SyntaxError)
			require.True(t, ok, "expected a *SyntaxError, got %T: %v", err, err)
		})
	}
}

func TestParseExpression(t *testing.T) {
	tests := []struct {
		input string
		exp   string
	}{
		{input: "strConcat('hello ',Who)", exp: "strConcat('hello ', Who)"},
		{input: "strConcat(Who,What)", exp: "strConcat(Who, What)"},
		{input: "buffer(Where, 2.0)", exp: "buffer(Where, 2.0)"},
		{input: "What", exp: "What"},
		{input: "-(What)", exp: "(0 - What)"},
	}
	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			e, err := ParseExpression(test.input)
			require.NoError(t, err)
			require.Equal(t, test.exp, e.String())
		})
	}

	_, err := ParseExpression("strConcat('a'")
	require.Error(t, err)
}
