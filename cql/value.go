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
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/pkg/errors"
)

// TimeLayout is the layout used for date literals in rendered filters.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// Evaluable is anything with named properties a filter can be evaluated
// against. ok is false when the name is not a property at all, as opposed
// to a property whose value is null.
type Evaluable interface {
	Property(name string) (value interface{}, ok bool)
}

// MapEvaluable adapts a plain map for evaluation.
type MapEvaluable map[string]interface{}

// Property implements Evaluable.
func (m MapEvaluable) Property(name string) (interface{}, bool) {
	v, ok := m[name]
	return v, ok
}

// ParseTime parses an ISO-8601 instant as accepted in date literals. Times
// without a zone are UTC.
func ParseTime(s string) (time.Time, error) {
	for _, layout := range []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.999999999Z0700",
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04Z07:00",
		"2006-01-02T15:04",
		"2006-01-02",
	} {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.Errorf("invalid date '%s'", s)
}

// FormatTime renders t the way date literals are written.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// FormatValue renders a property value for display. Null renders as "null",
// dates as ISO-8601 instants and geometries as WKT.
func FormatValue(v interface{}) string {
	switch vt := v.(type) {
	case nil:
		return "null"
	case string:
		return vt
	case time.Time:
		return FormatTime(vt)
	case float64:
		return strconv.FormatFloat(vt, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(vt), 'g', -1, 32)
	case int64:
		return strconv.FormatInt(vt, 10)
	case int32:
		return strconv.FormatInt(int64(vt), 10)
	case int:
		return strconv.Itoa(vt)
	case bool:
		return strconv.FormatBool(vt)
	case orb.Geometry:
		return wkt.MarshalString(vt)
	}
	return fmt.Sprint(v)
}

// toFloat converts any numeric value to float64.
func toFloat(v interface{}) (float64, bool) {
	switch vt := v.(type) {
	case float64:
		return vt, true
	case float32:
		return float64(vt), true
	case int64:
		return float64(vt), true
	case int32:
		return float64(vt), true
	case int:
		return float64(vt), true
	}
	return 0, false
}

func toInt(v interface{}) (int64, bool) {
	switch vt := v.(type) {
	case int64:
		return vt, true
	case int32:
		return int64(vt), true
	case int:
		return int64(vt), true
	}
	return 0, false
}

func toTime(v interface{}) (time.Time, bool) {
	switch vt := v.(type) {
	case time.Time:
		return vt, true
	case string:
		t, err := ParseTime(vt)
		return t, err == nil
	}
	return time.Time{}, false
}

func toGeometry(v interface{}) (orb.Geometry, bool) {
	switch vt := v.(type) {
	case orb.Geometry:
		return vt, true
	case string:
		g, err := ParseWKT(vt)
		return g, err == nil
	}
	return nil, false
}

// ParseWKT parses a WKT geometry. Text must end with ')' or "EMPTY".
func ParseWKT(s string) (orb.Geometry, error) {
	s = strings.TrimSpace(s)
	if !strings.HasSuffix(s, ")") && !strings.HasSuffix(strings.ToUpper(s), "EMPTY") {
		return nil, errors.Errorf("unterminated WKT '%s'", s)
	}
	g, err := wkt.Unmarshal(s)
	return g, errors.Wrapf(err, "parsing WKT '%s'", s)
}

// compareValues orders two non-null values. Numbers compare numerically,
// dates chronologically (strings are parsed when the other side is a date),
// everything else by its rendered text.
func compareValues(a, b interface{}) (int, error) {
	if ai, ok := toInt(a); ok {
		if bi, ok := toInt(b); ok {
			return cmpInt(ai, bi), nil
		}
	}
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			return cmpFloat(af, bf), nil
		}
		if bs, ok := b.(string); ok {
			if bf, err := strconv.ParseFloat(bs, 64); err == nil {
				return cmpFloat(af, bf), nil
			}
		}
	}
	if bf, ok := toFloat(b); ok {
		if as, ok := a.(string); ok {
			if af, err := strconv.ParseFloat(as, 64); err == nil {
				return cmpFloat(af, bf), nil
			}
		}
	}
	_, aIsTime := a.(time.Time)
	_, bIsTime := b.(time.Time)
	if aIsTime || bIsTime {
		at, aok := toTime(a)
		bt, bok := toTime(b)
		if !aok || !bok {
			return 0, errors.Errorf("cannot compare %v and %v as dates", a, b)
		}
		switch {
		case at.Before(bt):
			return -1, nil
		case at.After(bt):
			return 1, nil
		}
		return 0, nil
	}
	if ab, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			switch {
			case ab == bb:
				return 0, nil
			case !ab:
				return -1, nil
			}
			return 1, nil
		}
	}
	ag, aIsGeom := a.(orb.Geometry)
	bg, bIsGeom := b.(orb.Geometry)
	if aIsGeom && bIsGeom {
		if orb.Equal(ag, bg) {
			return 0, nil
		}
		return strings.Compare(wkt.MarshalString(ag), wkt.MarshalString(bg)), nil
	}
	return strings.Compare(FormatValue(a), FormatValue(b)), nil
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	case math.IsNaN(a) || math.IsNaN(b):
		return -1
	}
	return 0
}
