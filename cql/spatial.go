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

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
)

// quadrantSegments is the number of segments used to approximate a quarter
// circle when buffering points.
const quadrantSegments = 8

// Buffer returns the region within d (in the geometry's units) of g. Points
// buffer to a circle approximated by 4*quadrantSegments segments, multipoints
// to one circle per point; any other geometry buffers to its bounding box
// padded by d. A non-positive distance around a point yields an empty
// polygon.
func Buffer(g orb.Geometry, d float64) orb.Geometry {
	switch gt := g.(type) {
	case orb.Point:
		return circle(gt, d)
	case orb.MultiPoint:
		mp := make(orb.MultiPolygon, 0, len(gt))
		for _, p := range gt {
			mp = append(mp, circle(p, d))
		}
		return mp
	}
	return g.Bound().Pad(d).ToPolygon()
}

func circle(c orb.Point, d float64) orb.Polygon {
	if d <= 0 {
		return orb.Polygon{}
	}
	n := 4 * quadrantSegments
	ring := make(orb.Ring, 0, n+1)
	for i := 0; i < n; i++ {
		a := 2 * math.Pi * float64(i) / float64(n)
		ring = append(ring, orb.Point{c[0] + d*math.Cos(a), c[1] + d*math.Sin(a)})
	}
	ring = append(ring, ring[0])
	return orb.Polygon{ring}
}

// parts is a geometry decomposed into points, linear pieces (including
// polygon rings) and polygons.
type parts struct {
	points []orb.Point
	lines  []orb.LineString
	polys  []orb.Polygon
}

func decompose(g orb.Geometry) parts {
	var p parts
	p.add(g)
	return p
}

func (p *parts) add(g orb.Geometry) {
	switch gt := g.(type) {
	case orb.Point:
		p.points = append(p.points, gt)
	case orb.MultiPoint:
		p.points = append(p.points, gt...)
	case orb.LineString:
		p.lines = append(p.lines, gt)
	case orb.MultiLineString:
		p.lines = append(p.lines, gt...)
	case orb.Ring:
		p.add(orb.Polygon{gt})
	case orb.Polygon:
		if len(gt) == 0 {
			return
		}
		p.polys = append(p.polys, gt)
		for _, r := range gt {
			p.lines = append(p.lines, orb.LineString(r))
		}
	case orb.MultiPolygon:
		for _, poly := range gt {
			p.add(poly)
		}
	case orb.Bound:
		p.add(gt.ToPolygon())
	case orb.Collection:
		for _, c := range gt {
			p.add(c)
		}
	}
}

// vertices returns every coordinate of the geometry.
func (p parts) vertices() []orb.Point {
	vs := append([]orb.Point(nil), p.points...)
	for _, l := range p.lines {
		vs = append(vs, l...)
	}
	return vs
}

// covers reports whether pt lies in the interior or on the boundary of the
// geometry.
func (p parts) covers(pt orb.Point) bool {
	for _, q := range p.points {
		if q == pt {
			return true
		}
	}
	for _, l := range p.lines {
		for i := 1; i < len(l); i++ {
			if onSegment(pt, l[i-1], l[i]) {
				return true
			}
		}
	}
	for _, poly := range p.polys {
		if planar.PolygonContains(poly, pt) {
			return true
		}
	}
	return false
}

// Intersects reports whether a and b share at least one point.
func Intersects(a, b orb.Geometry) bool {
	if a == nil || b == nil || !a.Bound().Intersects(b.Bound()) {
		return false
	}
	pa, pb := decompose(a), decompose(b)
	for _, v := range pa.vertices() {
		if pb.covers(v) {
			return true
		}
	}
	for _, v := range pb.vertices() {
		if pa.covers(v) {
			return true
		}
	}
	for _, la := range pa.lines {
		for _, lb := range pb.lines {
			if linesCross(la, lb) {
				return true
			}
		}
	}
	return false
}

// Within reports whether every vertex of a is covered by b and no edge of a
// crosses out of b's polygons. Holes are honored through PolygonContains.
func Within(a, b orb.Geometry) bool {
	if a == nil || b == nil {
		return false
	}
	ab, bb := a.Bound(), b.Bound()
	if !bb.Contains(ab.Min) || !bb.Contains(ab.Max) {
		return false
	}
	pa, pb := decompose(a), decompose(b)
	vs := pa.vertices()
	if len(vs) == 0 {
		return false
	}
	for _, v := range vs {
		if !pb.covers(v) {
			return false
		}
	}
	for _, la := range pa.lines {
		for i := 1; i < len(la); i++ {
			mid := orb.Point{(la[i-1][0] + la[i][0]) / 2, (la[i-1][1] + la[i][1]) / 2}
			if !pb.covers(mid) {
				return false
			}
		}
	}
	return true
}

// WithinDistance reports whether a and b come within meters of each other, using
// great-circle distance between the closest vertex/segment pairs.
func WithinDistance(a, b orb.Geometry, meters float64) bool {
	if a == nil || b == nil {
		return false
	}
	if Intersects(a, b) {
		return true
	}
	return minDistance(decompose(a), decompose(b)) <= meters
}

func minDistance(pa, pb parts) float64 {
	best := math.Inf(1)
	check := func(from parts, to parts) {
		for _, v := range from.vertices() {
			for _, q := range to.points {
				best = math.Min(best, geo.Distance(v, q))
			}
			for _, l := range to.lines {
				for i := 1; i < len(l); i++ {
					best = math.Min(best, geo.Distance(v, closestOnSegment(v, l[i-1], l[i])))
				}
			}
		}
	}
	check(pa, pb)
	check(pb, pa)
	return best
}

func closestOnSegment(p, a, b orb.Point) orb.Point {
	dx, dy := b[0]-a[0], b[1]-a[1]
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return a
	}
	t := ((p[0]-a[0])*dx + (p[1]-a[1])*dy) / l2
	t = math.Max(0, math.Min(1, t))
	return orb.Point{a[0] + t*dx, a[1] + t*dy}
}

const epsilon = 1e-12

func orientation(a, b, c orb.Point) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}

func onSegment(p, a, b orb.Point) bool {
	if math.Abs(orientation(a, b, p)) > epsilon {
		return false
	}
	return p[0] >= math.Min(a[0], b[0])-epsilon && p[0] <= math.Max(a[0], b[0])+epsilon &&
		p[1] >= math.Min(a[1], b[1])-epsilon && p[1] <= math.Max(a[1], b[1])+epsilon
}

func segmentsCross(a, b, c, d orb.Point) bool {
	o1, o2 := orientation(a, b, c), orientation(a, b, d)
	o3, o4 := orientation(c, d, a), orientation(c, d, b)
	if (o1 > epsilon && o2 < -epsilon || o1 < -epsilon && o2 > epsilon) &&
		(o3 > epsilon && o4 < -epsilon || o3 < -epsilon && o4 > epsilon) {
		return true
	}
	return onSegment(c, a, b) || onSegment(d, a, b) || onSegment(a, c, d) || onSegment(b, c, d)
}

func linesCross(la, lb orb.LineString) bool {
	for i := 1; i < len(la); i++ {
		for j := 1; j < len(lb); j++ {
			if segmentsCross(la[i-1], la[i], lb[j-1], lb[j]) {
				return true
			}
		}
	}
	return false
}
