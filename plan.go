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
	"time"

	"github.com/paulmach/orb"
	"github.com/pilosa/geoquery/cql"
	"github.com/pilosa/geoquery/geohash"
)

const (
	// maxCoverCells bounds the number of geohash cells scanned for a box.
	maxCoverCells = 32
	// metersPerDegree slightly underestimates a degree of latitude so that
	// padded boxes contain every point within the distance.
	metersPerDegree = 110000.0
)

// queryPlan holds the index constraints extracted from a filter. A nil
// bbox means the spatial index cannot be used; zero times are unbounded.
type queryPlan struct {
	bbox  *orb.Bound
	from  time.Time
	to    time.Time
	empty bool
}

// planQuery extracts a bounding box on the default geometry and time bounds
// on the start-time attribute from the top-level conjunction of f. The
// bounds are conservative: every matching feature satisfies them.
func planQuery(ft *FeatureType, f cql.Filter) queryPlan {
	var p queryPlan
	geom := ""
	if d := ft.DefaultGeometry(); d != nil {
		geom = d.Name
	}
	dtg := ft.StartTime()
	for _, c := range conjuncts(f) {
		if c == cql.Exclude {
			p.empty = true
			continue
		}
		switch ct := c.(type) {
		case cql.BBox:
			if ct.Property == geom {
				p.addBound(ct.Bound)
			}
		case cql.Spatial:
			if ct.Property == geom && ct.Geometry != nil && (ct.Op == cql.OpIntersects || ct.Op == cql.OpWithin) {
				p.addBound(ct.Geometry.Bound())
			}
		case cql.DWithin:
			if ct.Property == geom && ct.Geometry != nil {
				p.addBound(padMeters(ct.Geometry.Bound(), ct.Meters()))
			}
		case cql.Temporal:
			if !isProperty(ct.Expr, dtg) {
				continue
			}
			switch ct.Op {
			case cql.During:
				p.addTimes(ct.From, ct.To)
			case cql.Before:
				p.addTimes(time.Time{}, ct.From)
			case cql.After:
				p.addTimes(ct.From, time.Time{})
			case cql.TEquals:
				p.addTimes(ct.From, ct.From)
			}
		case cql.Between:
			lo, lok := literalTime(ct.Lower)
			hi, hok := literalTime(ct.Upper)
			if !ct.Negate && isProperty(ct.Expr, dtg) && lok && hok {
				p.addTimes(lo, hi)
			}
		case cql.Compare:
			p.addComparison(ct, dtg)
		}
	}
	return p
}

func conjuncts(f cql.Filter) []cql.Filter {
	and, ok := f.(cql.And)
	if !ok {
		return []cql.Filter{f}
	}
	var out []cql.Filter
	for _, c := range and.Children {
		out = append(out, conjuncts(c)...)
	}
	return out
}

func isProperty(e cql.Expression, name string) bool {
	p, ok := e.(cql.Property)
	return ok && name != "" && p.Name == name
}

func literalTime(e cql.Expression) (time.Time, bool) {
	l, ok := e.(cql.Literal)
	if !ok {
		return time.Time{}, false
	}
	t, ok := l.Value.(time.Time)
	return t, ok
}

var flipped = map[string]string{"<": ">", "<=": ">=", ">": "<", ">=": "<=", "=": "="}

func (p *queryPlan) addComparison(c cql.Compare, dtg string) {
	op := c.Op
	t, ok := literalTime(c.Right)
	if !ok || !isProperty(c.Left, dtg) {
		if t, ok = literalTime(c.Left); !ok || !isProperty(c.Right, dtg) {
			return
		}
		op = flipped[op]
	}
	switch op {
	case "=":
		p.addTimes(t, t)
	case ">", ">=":
		p.addTimes(t, time.Time{})
	case "<", "<=":
		p.addTimes(time.Time{}, t)
	}
}

func (p *queryPlan) addBound(b orb.Bound) {
	if p.bbox == nil {
		p.bbox = &b
		return
	}
	merged := orb.Bound{
		Min: orb.Point{math.Max(p.bbox.Min[0], b.Min[0]), math.Max(p.bbox.Min[1], b.Min[1])},
		Max: orb.Point{math.Min(p.bbox.Max[0], b.Max[0]), math.Min(p.bbox.Max[1], b.Max[1])},
	}
	if merged.Min[0] > merged.Max[0] || merged.Min[1] > merged.Max[1] {
		p.empty = true
	}
	p.bbox = &merged
}

func (p *queryPlan) addTimes(from, to time.Time) {
	if !from.IsZero() && (p.from.IsZero() || from.After(p.from)) {
		p.from = from
	}
	if !to.IsZero() && (p.to.IsZero() || to.Before(p.to)) {
		p.to = to
	}
	if !p.from.IsZero() && !p.to.IsZero() && p.from.After(p.to) {
		p.empty = true
	}
}

func (p *queryPlan) hasTime() bool {
	return !p.from.IsZero() || !p.to.IsZero()
}

// admits reports whether an index entry with start time t can match.
func (p *queryPlan) admits(t time.Time) bool {
	if !p.hasTime() {
		return true
	}
	if t.IsZero() {
		return false
	}
	return (p.from.IsZero() || !t.Before(p.from)) && (p.to.IsZero() || !t.After(p.to))
}

// cells returns the geohash prefixes to scan and the exact hashes of
// coarser cells that may hold larger geometries overlapping the box.
func (p *queryPlan) cells() (prefixes, exact []string) {
	prefixes = geohash.Cover(*p.bbox, geohash.MaxPrecision, maxCoverCells)
	return prefixes, geohash.Ancestors(prefixes)
}

// padMeters grows b by roughly m meters in every direction.
func padMeters(b orb.Bound, m float64) orb.Bound {
	dy := m / metersPerDegree
	lat := math.Max(math.Abs(b.Min[1]), math.Abs(b.Max[1])) + dy
	dx := 180.0
	if c := math.Cos(lat * math.Pi / 180); lat < 90 && c > 1e-6 {
		dx = math.Min(180, dy/c)
	}
	return orb.Bound{
		Min: orb.Point{b.Min[0] - dx, b.Min[1] - dy},
		Max: orb.Point{b.Max[0] + dx, b.Max[1] + dy},
	}
}

// indexHash returns the geohash a geometry is indexed under.
func indexHash(g orb.Geometry) string {
	if p, ok := g.(orb.Point); ok {
		return geohash.Encode(p, geohash.MaxPrecision)
	}
	return geohash.EncodeBound(g.Bound(), geohash.MaxPrecision)
}
