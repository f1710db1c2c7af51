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

// Package gdelt describes the GDELT feature type and ingests GDELT records
// into a geoquery data store.
package gdelt

import (
	"strings"

	"github.com/pilosa/geoquery"
)

// Attribute is one column of the GDELT data set.
type Attribute int

// GDELT attributes, in schema order.
const (
	CreatedAt Attribute = iota
	Country
	Lon
	Lat
	Text
	TheDate
	Tweetword
	TheID
	MatchCount
	Matches
	Points
	Avg
	PtVar
	Geom
)

var attributes = [...]struct {
	name string
	typ  string
}{
	CreatedAt:  {"created_at", "Date"},
	Country:    {"country", "String"},
	Lon:        {"lon", "Double"},
	Lat:        {"lat", "Double"},
	Text:       {"text", "String"},
	TheDate:    {"the_date", "String"},
	Tweetword:  {"tweetword", "String"},
	TheID:      {"the_id", "String"},
	MatchCount: {"MatchCount", "Integer"},
	Matches:    {"Matches", "String"},
	Points:     {"Points", "Integer"},
	Avg:        {"Avg", "Double"},
	PtVar:      {"PtVar", "Double"},
	Geom:       {"geom", "Point"},
}

// Attributes returns every attribute in schema order.
func Attributes() []Attribute {
	ret := make([]Attribute, len(attributes))
	for i := range ret {
		ret[i] = Attribute(i)
	}
	return ret
}

// String returns the attribute's name in the feature type.
func (a Attribute) String() string { return attributes[a].name }

// Type returns the attribute's type as written in a spec string.
func (a Attribute) Type() string { return attributes[a].typ }

// Name returns the attribute's column name in source data. It differs from
// String only for Lon, whose column is "long".
func (a Attribute) Name() string {
	if a == Lon {
		return "long"
	}
	return a.String()
}

// Spec returns the feature type spec string. geom is the default geometry.
func Spec() string {
	specs := make([]string, 0, len(attributes))
	for _, a := range Attributes() {
		if a == Geom {
			specs = append(specs, "*geom:Point:srid=4326")
			continue
		}
		specs = append(specs, a.String()+":"+a.Type())
	}
	return strings.Join(specs, ",")
}

// BuildFeatureType returns the GDELT feature type with the given name and
// created_at as the indexed start time.
func BuildFeatureType(name string) (*geoquery.FeatureType, error) {
	ft, err := geoquery.ParseFeatureType(name, Spec())
	if err != nil {
		return nil, err
	}
	if err := ft.SetStartTime(CreatedAt.String()); err != nil {
		return nil, err
	}
	return ft, nil
}

// Header returns the column names of a headerless GDELT export: every
// attribute but geom, in schema order.
func Header() []string {
	h := make([]string, 0, len(attributes)-1)
	for _, a := range Attributes() {
		if a != Geom {
			h = append(h, a.Name())
		}
	}
	return h
}
