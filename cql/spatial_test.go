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
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"
)

func TestBufferPoint(t *testing.T) {
	g := Buffer(orb.Point{1, 1}, 2)
	poly, ok := g.(orb.Polygon)
	require.True(t, ok, "expected polygon, got %T", g)
	require.Len(t, poly, 1)
	ring := poly[0]
	require.Len(t, ring, 4*quadrantSegments+1)
	require.Equal(t, ring[0], ring[len(ring)-1])
	for _, p := range ring {
		d := math.Hypot(p[0]-1, p[1]-1)
		require.InDelta(t, 2, d, 1e-9)
	}

	require.Equal(t, orb.Polygon{}, Buffer(orb.Point{0, 0}, 0))
}

func TestBufferOther(t *testing.T) {
	mp := Buffer(orb.MultiPoint{{0, 0}, {5, 5}}, 1)
	require.IsType(t, orb.MultiPolygon{}, mp)
	require.Len(t, mp.(orb.MultiPolygon), 2)

	line := orb.LineString{{0, 0}, {2, 1}}
	b := Buffer(line, 0.5).Bound()
	require.Equal(t, orb.Bound{Min: orb.Point{-0.5, -0.5}, Max: orb.Point{2.5, 1.5}}, b)
}

func TestIntersects(t *testing.T) {
	square := orb.Polygon{{{0, 0}, {4, 0}, {4, 4}, {0, 4}, {0, 0}}}
	tests := []struct {
		name string
		g    orb.Geometry
		exp  bool
	}{
		{"inside point", orb.Point{1, 1}, true},
		{"boundary point", orb.Point{4, 2}, true},
		{"outside point", orb.Point{5, 5}, false},
		{"crossing line", orb.LineString{{-1, 2}, {5, 2}}, true},
		{"outside line", orb.LineString{{5, 0}, {5, 4}}, false},
		{"overlapping polygon", orb.Polygon{{{3, 3}, {6, 3}, {6, 6}, {3, 6}, {3, 3}}}, true},
		{"enclosing polygon", orb.Polygon{{{-1, -1}, {9, -1}, {9, 9}, {-1, 9}, {-1, -1}}}, true},
		{"crossing bars", orb.Polygon{{{-1, 1}, {5, 1}, {5, 2}, {-1, 2}, {-1, 1}}}, true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.exp, Intersects(square, test.g))
			require.Equal(t, test.exp, Intersects(test.g, square))
		})
	}
}

func TestWithin(t *testing.T) {
	square := orb.Polygon{{{0, 0}, {4, 0}, {4, 4}, {0, 4}, {0, 0}}}
	// a "C" shape whose notch excludes x in (1,4), y in (1,3)
	cShape := orb.Polygon{{{0, 0}, {4, 0}, {4, 1}, {1, 1}, {1, 3}, {4, 3}, {4, 4}, {0, 4}, {0, 0}}}

	require.True(t, Within(orb.Point{2, 2}, square))
	require.False(t, Within(orb.Point{5, 2}, square))
	require.True(t, Within(orb.LineString{{1, 1}, {3, 3}}, square))
	require.False(t, Within(orb.LineString{{1, 1}, {5, 3}}, square))
	require.False(t, Within(square, orb.Point{1, 1}))
	require.False(t, Within(orb.LineString{{3, 0.5}, {3, 3.5}}, cShape))
	require.True(t, Within(orb.LineString{{0.5, 0.5}, {0.5, 3.5}}, cShape))
}

func TestWithinDistance(t *testing.T) {
	p := orb.Point{-77, -37}
	require.True(t, WithinDistance(p, p, 0))
	require.True(t, WithinDistance(p, orb.Point{-77, -37.001}, 120))
	require.False(t, WithinDistance(p, orb.Point{-77, -37.001}, 100))

	line := orb.LineString{{-78, -37.001}, {-76, -37.001}}
	require.True(t, WithinDistance(p, line, 120))
	require.False(t, WithinDistance(p, line, 100))
}
