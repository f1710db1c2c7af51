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

// Package geohash computes the geohash cells used to index and search
// geometries.
package geohash

import (
	"math"
	"sort"

	"github.com/mmcloughlin/geohash"
	"github.com/paulmach/orb"
)

// MaxPrecision is the number of characters points are indexed at.
const MaxPrecision = 7

// edge is far below the size of a MaxPrecision cell and far above the
// rounding error of the encoder's fixed point conversion.
const edge = 1e-9

// World is the valid longitude/latitude extent.
var World = orb.Bound{Min: orb.Point{-180, -90}, Max: orb.Point{180, 90}}

// Encode returns the geohash of p (x is longitude, y latitude) with the
// given number of characters. Points on the east and north edges of the
// world fall in the last cell, matching Cover.
func Encode(p orb.Point, precision uint) string {
	lng, lat := clampLng(p[0]), clampLat(p[1])
	if lng > 180-edge {
		lng = 180 - edge
	}
	if lat > 90-edge {
		lat = 90 - edge
	}
	return geohash.EncodeWithPrecision(lat, lng, precision)
}

// EncodeBound returns the longest geohash, at most precision characters,
// whose cell contains all of b. Bounds straddling the top level cells
// yield "".
func EncodeBound(b orb.Bound, precision uint) string {
	lo := Encode(b.Min, precision)
	hi := Encode(b.Max, precision)
	n := 0
	for n < len(lo) && n < len(hi) && lo[n] == hi[n] {
		n++
	}
	return lo[:n]
}

// Bound returns the cell of hash as a bound.
func Bound(hash string) orb.Bound {
	if hash == "" {
		return World
	}
	box := geohash.BoundingBox(hash)
	return orb.Bound{Min: orb.Point{box.MinLng, box.MinLat}, Max: orb.Point{box.MaxLng, box.MaxLat}}
}

// cellSize returns the width and height in degrees of cells with the given
// number of characters.
func cellSize(precision uint) (w, h float64) {
	bits := 5 * precision
	lngBits := (bits + 1) / 2
	latBits := bits / 2
	return 360 / math.Exp2(float64(lngBits)), 180 / math.Exp2(float64(latBits))
}

func cellRange(lo, hi, origin, size float64) (int, int) {
	max := int(math.Round((-2*origin)/size)) - 1
	a := int(math.Floor((lo - origin) / size))
	b := int(math.Floor((hi - origin) / size))
	if a < 0 {
		a = 0
	}
	if b > max {
		b = max
	}
	return a, b
}

// Cover returns the geohash cells covering b at the largest precision no
// greater than maxPrecision for which at most maxCells cells are needed.
// The result is sorted.
func Cover(b orb.Bound, maxPrecision uint, maxCells int) []string {
	b = clampBound(b)
	for p := maxPrecision; p >= 1; p-- {
		w, h := cellSize(p)
		x0, x1 := cellRange(b.Min[0], b.Max[0], -180, w)
		y0, y1 := cellRange(b.Min[1], b.Max[1], -90, h)
		n := (x1 - x0 + 1) * (y1 - y0 + 1)
		if n > maxCells && p > 1 {
			continue
		}
		cells := make([]string, 0, n)
		for x := x0; x <= x1; x++ {
			for y := y0; y <= y1; y++ {
				center := orb.Point{-180 + (float64(x)+0.5)*w, -90 + (float64(y)+0.5)*h}
				cells = append(cells, Encode(center, p))
			}
		}
		sort.Strings(cells)
		return cells
	}
	return []string{""}
}

// Ancestors returns every proper prefix of the given hashes, including the
// empty string, sorted and without duplicates.
func Ancestors(hashes []string) []string {
	seen := make(map[string]struct{})
	for _, h := range hashes {
		for i := 0; i < len(h); i++ {
			seen[h[:i]] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for h := range seen {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}

func clampBound(b orb.Bound) orb.Bound {
	return orb.Bound{
		Min: orb.Point{clampLng(b.Min[0]), clampLat(b.Min[1])},
		Max: orb.Point{clampLng(b.Max[0]), clampLat(b.Max[1])},
	}
}

func clampLng(x float64) float64 { return math.Max(-180, math.Min(180, x)) }
func clampLat(y float64) float64 { return math.Max(-90, math.Min(90, y)) }
