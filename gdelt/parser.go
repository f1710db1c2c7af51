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

package gdelt

import (
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/araddon/dateparse"
	"github.com/paulmach/orb"
	"github.com/pilosa/geoquery"
	"github.com/pilosa/geoquery/csv"
	"github.com/pkg/errors"
)

// Parser turns raw source records into GDELT features. Records are
// map[string]string (delimited files) or map[string]interface{} (JSON and
// Avro). Parser is safe for concurrent use.
type Parser struct {
	Type *geoquery.FeatureType

	seq uint64
}

// NewParser returns a Parser producing features of type ft, which should
// come from BuildFeatureType.
func NewParser(ft *geoquery.FeatureType) *Parser {
	return &Parser{Type: ft}
}

// Parse converts rec to a feature. The feature id is the_id when present,
// otherwise the record's position in its file, otherwise a sequence number.
// The point is taken from a geom WKT column or built from long and lat.
func (p *Parser) Parse(rec interface{}) (*geoquery.Feature, error) {
	var m map[string]interface{}
	switch r := rec.(type) {
	case map[string]interface{}:
		m = r
	case map[string]string:
		m = make(map[string]interface{}, len(r))
		for k, v := range r {
			m[k] = v
		}
	default:
		return nil, errors.Errorf("unsupported record type %T", rec)
	}

	f := geoquery.NewFeature(p.Type, "")
	for _, a := range Attributes() {
		if a == Geom {
			continue
		}
		v, ok := lookup(m, a)
		if !ok {
			continue
		}
		if a == CreatedAt {
			t, err := parseTime(v)
			if err != nil {
				return nil, errors.Wrap(err, "parsing created_at")
			}
			v = t
		}
		if err := f.SetAttribute(a.String(), v); err != nil {
			return nil, err
		}
	}

	if err := p.setGeometry(f, m); err != nil {
		return nil, err
	}

	switch {
	case f.Attribute(TheID.String()) != nil:
		f.ID = f.Attribute(TheID.String()).(string)
	case m[csv.PositionKey] != nil:
		f.ID = geoquery.FormatValue(m[csv.PositionKey])
	default:
		f.ID = "gdelt-" + strconv.FormatUint(atomic.AddUint64(&p.seq, 1), 10)
	}
	return f, nil
}

func (p *Parser) setGeometry(f *geoquery.Feature, m map[string]interface{}) error {
	if v, ok := lookup(m, Geom); ok {
		return f.SetAttribute(Geom.String(), v)
	}
	lon, lat := f.Attribute(Lon.String()), f.Attribute(Lat.String())
	if lon == nil || lat == nil {
		return errors.New("record has neither geom nor long/lat")
	}
	x, y := lon.(float64), lat.(float64)
	if x < -180 || x > 180 || y < -90 || y > 90 {
		return errors.Errorf("location (%v, %v) out of range", x, y)
	}
	return f.SetAttribute(Geom.String(), orb.Point{x, y})
}

// lookup finds a's value by column name, falling back to its attribute
// name. Empty strings count as missing.
func lookup(m map[string]interface{}, a Attribute) (interface{}, bool) {
	v, ok := m[a.Name()]
	if !ok {
		v, ok = m[a.String()]
	}
	if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
		return nil, false
	}
	return v, ok && v != nil
}

// parseTime accepts the many date layouts found in GDELT exports. Layouts
// without a zone are taken as UTC. Numbers are epoch milliseconds.
func parseTime(v interface{}) (interface{}, error) {
	switch vt := v.(type) {
	case string:
		t, err := dateparse.ParseIn(strings.TrimSpace(vt), time.UTC)
		if err != nil {
			return nil, err
		}
		return t.UTC(), nil
	case float64:
		return int64(vt), nil
	}
	return v, nil
}
