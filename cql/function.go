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
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/pkg/errors"
)

// Kind is the static result type of a function.
type Kind int

const (
	KindUnknown Kind = iota
	KindString
	KindInteger
	KindDouble
	KindPoint
	KindPolygon
	KindGeometry
)

type function struct {
	minArgs, maxArgs int // maxArgs < 0 means variadic
	kind             Kind
	fn               func(args []interface{}) (interface{}, error)
}

var functions = map[string]function{
	"strconcat":      {2, -1, KindString, strConcat},
	"strtouppercase": {1, 1, KindString, stringFn(strings.ToUpper)},
	"strtolowercase": {1, 1, KindString, stringFn(strings.ToLower)},
	"strtrim":        {1, 1, KindString, stringFn(strings.TrimSpace)},
	"strlength":      {1, 1, KindInteger, strLength},
	"strsubstring":   {3, 3, KindString, strSubstring},
	"buffer":         {2, 2, KindPolygon, buffer},
	"envelope":       {1, 1, KindPolygon, envelope},
	"centroid":       {1, 1, KindPoint, centroid},
	"geometrytype":   {1, 1, KindString, geometryType},
	"area":           {1, 1, KindDouble, area},
}

func lookupFunction(name string) (function, bool) {
	f, ok := functions[strings.ToLower(name)]
	return f, ok
}

// FunctionKind returns the static result type of the named function.
func FunctionKind(name string) (Kind, bool) {
	f, ok := lookupFunction(name)
	return f.kind, ok
}

func checkArity(name string, n int) error {
	f, ok := lookupFunction(name)
	if !ok {
		return errors.Errorf("unknown function '%s'", name)
	}
	if n < f.minArgs || f.maxArgs >= 0 && n > f.maxArgs {
		return errors.Errorf("wrong number of arguments to %s: %d", name, n)
	}
	return nil
}

// strConcat joins the rendered values of its arguments; null renders as
// "null".
func strConcat(args []interface{}) (interface{}, error) {
	var sb strings.Builder
	for _, a := range args {
		sb.WriteString(FormatValue(a))
	}
	return sb.String(), nil
}

func stringFn(f func(string) string) func([]interface{}) (interface{}, error) {
	return func(args []interface{}) (interface{}, error) {
		if args[0] == nil {
			return nil, nil
		}
		return f(FormatValue(args[0])), nil
	}
}

func strLength(args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return nil, nil
	}
	return int32(len([]rune(FormatValue(args[0])))), nil
}

func strSubstring(args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return nil, nil
	}
	s := []rune(FormatValue(args[0]))
	begin, ok1 := toInt(args[1])
	end, ok2 := toInt(args[2])
	if !ok1 || !ok2 {
		return nil, errors.New("substring bounds must be integers")
	}
	if begin < 0 || end > int64(len(s)) || begin > end {
		return nil, errors.Errorf("substring bounds [%d,%d) out of range for length %d", begin, end, len(s))
	}
	return string(s[begin:end]), nil
}

func geometryArg(v interface{}) (orb.Geometry, error) {
	g, ok := toGeometry(v)
	if !ok {
		return nil, errors.Errorf("not a geometry: %v", v)
	}
	return g, nil
}

func buffer(args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return nil, nil
	}
	g, err := geometryArg(args[0])
	if err != nil {
		return nil, err
	}
	d, ok := toFloat(args[1])
	if !ok {
		return nil, errors.Errorf("buffer distance must be numeric: %v", args[1])
	}
	return Buffer(g, d), nil
}

func envelope(args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return nil, nil
	}
	g, err := geometryArg(args[0])
	if err != nil {
		return nil, err
	}
	return g.Bound().ToPolygon(), nil
}

func centroid(args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return nil, nil
	}
	g, err := geometryArg(args[0])
	if err != nil {
		return nil, err
	}
	if p, ok := g.(orb.Point); ok {
		return p, nil
	}
	c, _ := planar.CentroidArea(g)
	return c, nil
}

func geometryType(args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return nil, nil
	}
	g, err := geometryArg(args[0])
	if err != nil {
		return nil, err
	}
	return g.GeoJSONType(), nil
}

func area(args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return nil, nil
	}
	g, err := geometryArg(args[0])
	if err != nil {
		return nil, err
	}
	return planar.Area(g), nil
}
