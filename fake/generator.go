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

package fake

import (
	"math"
	"math/rand"
	"strconv"
	"time"

	"github.com/paulmach/orb"
	"github.com/pilosa/geoquery"
	"github.com/pkg/errors"
)

// DefaultSeed is the seed the query tutorial uses.
const DefaultSeed = 5771

// Bounds of the generated observations.
var (
	MinDate = time.Date(2014, 1, 1, 0, 0, 0, 0, time.UTC)
	MinX    = -78.0
	MinY    = -39.0
	DX      = 2.0
	DY      = 2.0

	People = []string{"Adam", "Beth", "Charles", "Diane", "Edgar"}
)

const secondsPerYear = 365 * 24 * 60 * 60

// Generator creates observations for a type with the Who, What, When, Where
// and Why attributes. Using the same seed gives the same series of features
// on a given version of Go.
type Generator struct {
	r *rand.Rand
	n int
}

// NewGenerator gets a new Generator.
func NewGenerator(seed int64) *Generator {
	return &Generator{r: rand.New(rand.NewSource(seed))}
}

// Feature returns the next observation. Features are numbered from 0 and
// have the id "Observation.<n>". Why is only set for even n.
func (g *Generator) Feature(ft *geoquery.FeatureType) (*geoquery.Feature, error) {
	i := g.n
	g.n++
	f := geoquery.NewFeature(ft, "Observation."+strconv.Itoa(i))

	x := MinX + g.r.Float64()*DX
	y := MinY + g.r.Float64()*DY
	secs := int64(math.Round(g.r.Float64() * secondsPerYear))

	vals := map[string]interface{}{
		"Who":   People[i%len(People)],
		"What":  int64(i),
		"Where": orb.Point{x, y},
		"When":  MinDate.Add(time.Duration(secs) * time.Second),
	}
	if i%2 == 0 {
		vals["Why"] = "reason " + strconv.Itoa(i)
	}
	for name, v := range vals {
		if err := f.SetAttribute(name, v); err != nil {
			return nil, errors.Wrapf(err, "generating %s", f.ID)
		}
	}
	return f, nil
}

// Features returns the next n observations, or none if n is not positive.
func (g *Generator) Features(ft *geoquery.FeatureType, n int) ([]*geoquery.Feature, error) {
	if n < 0 {
		n = 0
	}
	fs := make([]*geoquery.Feature, 0, n)
	for i := 0; i < n; i++ {
		f, err := g.Feature(ft)
		if err != nil {
			return nil, err
		}
		fs = append(fs, f)
	}
	return fs, nil
}
