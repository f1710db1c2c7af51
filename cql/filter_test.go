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
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"
)

func date(s string) time.Time {
	t, err := ParseTime(s)
	if err != nil {
		panic(err)
	}
	return t
}

func sampleFeature() MapEvaluable {
	return MapEvaluable{
		"Who":   "Beth",
		"What":  int64(7),
		"Avg":   float64(2.5),
		"When":  date("2014-07-15T12:00:00Z"),
		"Where": orb.Point{-77, -37},
		"Why":   nil,
		"Count": int32(3),
		"Flag":  true,
	}
}

func TestFilterEvaluate(t *testing.T) {
	tests := []struct {
		filter string
		exp    bool
	}{
		{"INCLUDE", true},
		{"EXCLUDE", false},
		{"Who = 'Beth'", true},
		{"Who = 'Adam'", false},
		{"Who <> 'Adam'", true},
		{"What > 5", true},
		{"What >= 7", true},
		{"What < 7", false},
		{"What = 7.0", true},
		{"Avg > 2", true},
		{"Avg BETWEEN 2 AND 3", true},
		{"Avg NOT BETWEEN 2 AND 3", false},
		{"Count + What = 10", true},
		{"What / 2 = 3.5", true},
		{"Who LIKE 'B%'", true},
		{"Who LIKE 'b%'", false},
		{"Who ILIKE 'b%'", true},
		{"Who LIKE 'B_th'", true},
		{"Who NOT LIKE 'A%'", true},
		{"Who IN ('Adam', 'Beth')", true},
		{"Who NOT IN ('Adam', 'Beth')", false},
		{"Why IS NULL", true},
		{"Who IS NULL", false},
		{"Who IS NOT NULL", true},
		{"Why = 'x'", false},
		{"NOT (Why = 'x')", true},
		{"Flag = TRUE", true},
		{"When DURING 2014-07-01T00:00:00Z/2014-08-01T00:00:00Z", true},
		{"When DURING 2014-07-15T12:00:00Z/2014-08-01T00:00:00Z", false},
		{"When DURING 2014-07-01T00:00:00Z/2014-07-15T12:00:00Z", false},
		{"When BEFORE 2014-08-01T00:00:00Z", true},
		{"When AFTER 2014-08-01T00:00:00Z", false},
		{"When TEQUALS 2014-07-15T12:00:00Z", true},
		{"When > 2014-07-01T00:00:00Z", true},
		{"BBOX(Where, -78, -38, -76, -36)", true},
		{"BBOX(Where, -76, -38, -75, -36)", false},
		{"BBOX(Where, -77, -37, -76, -36)", true},
		{"INTERSECTS(Where, POLYGON((-78 -38, -76 -38, -76 -36, -78 -36, -78 -38)))", true},
		{"WITHIN(Where, POLYGON((-78 -38, -76 -38, -76 -36, -78 -36, -78 -38)))", true},
		{"DISJOINT(Where, POLYGON((0 0, 1 0, 1 1, 0 1, 0 0)))", true},
		{"DWITHIN(Where, POINT(-77 -37.001), 200, meters)", true},
		{"DWITHIN(Where, POINT(-77 -37.01), 200, meters)", false},
		{"Who = 'Beth' AND (What < 3 OR Avg > 2)", true},
		{"Who = 'Adam' OR What = 7", true},
		{"strConcat('hello ', Who) = 'hello Beth'", true},
		{"strToUpperCase(Who) = 'BETH'", true},
		{"strLength(Who) = 4", true},
		{"strSubstring(Who, 1, 3) = 'et'", true},
	}
	f := sampleFeature()
	for _, test := range tests {
		t.Run(test.filter, func(t *testing.T) {
			filter, err := ParseFilter(test.filter)
			require.NoError(t, err)
			got, err := filter.Evaluate(f)
			require.NoError(t, err)
			require.Equal(t, test.exp, got)
		})
	}
}

func TestFilterEvaluateErrors(t *testing.T) {
	f := sampleFeature()
	for _, s := range []string{
		"Nope = 1",
		"BBOX(Who, 0, 0, 1, 1)",
		"Who DURING 2014-07-01T00:00:00Z/2014-08-01T00:00:00Z",
	} {
		t.Run(s, func(t *testing.T) {
			filter, err := ParseFilter(s)
			require.NoError(t, err)
			_, err = filter.Evaluate(f)
			require.Error(t, err)
		})
	}
}

func TestFilterProperties(t *testing.T) {
	f := MustParseFilter("BBOX(Where, 0, 0, 1, 1) AND When DURING 2014-07-01T00:00:00Z/2014-08-01T00:00:00Z AND (strConcat(Who, What) = 'x' OR Where IS NULL)")
	require.Equal(t, []string{"Where", "When", "Who", "What"}, FilterProperties(f))
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		v   interface{}
		exp string
	}{
		{nil, "null"},
		{"x", "x"},
		{int32(4), "4"},
		{int64(-9), "-9"},
		{float64(2.5), "2.5"},
		{float32(0.25), "0.25"},
		{true, "true"},
		{date("2014-07-15T12:00:00Z"), "2014-07-15T12:00:00.000Z"},
		{orb.Point{1, 2}, "POINT(1 2)"},
	}
	for _, test := range tests {
		require.Equal(t, test.exp, FormatValue(test.v))
	}
}

func TestParseTime(t *testing.T) {
	exp := time.Date(2014, 7, 1, 0, 0, 0, 0, time.UTC)
	for _, s := range []string{
		"2014-07-01",
		"2014-07-01T00:00",
		"2014-07-01T00:00:00Z",
		"2014-07-01T00:00:00.000Z",
		"2014-07-01T02:00:00+02:00",
	} {
		got, err := ParseTime(s)
		require.NoError(t, err, s)
		require.True(t, exp.Equal(got), "%s parsed as %s", s, got)
	}
	_, err := ParseTime("July 1st")
	require.Error(t, err)
}
