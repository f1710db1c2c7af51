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
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/pilosa/geoquery/cql"
	"github.com/pkg/errors"
)

// Query selects features of one type. A nil Filter matches everything. If
// Properties is non-empty the results are transformed: each entry is either
// an attribute name or "name=expression". MaxFeatures limits the number of
// results when positive.
type Query struct {
	TypeName    string
	Filter      cql.Filter
	Properties  []string
	MaxFeatures int
}

// NewQuery parses filter as ECQL and returns a query over typeName.
func NewQuery(typeName, filter string, properties ...string) (Query, error) {
	f, err := cql.ParseFilter(filter)
	if err != nil {
		return Query{}, errors.Wrap(err, "parsing filter")
	}
	return Query{TypeName: typeName, Filter: f, Properties: properties}, nil
}

// FeatureIterator iterates over query results. It must be closed.
//
//	for it.Next() {
//		f := it.Feature()
//	}
//	if err := it.Err(); err != nil {
type FeatureIterator interface {
	Next() bool
	Feature() *Feature
	Err() error
	Close() error
	// Schema returns the type of the features produced, which differs from
	// the stored type when the query has a transform.
	Schema() *FeatureType
}

// GetFeatures runs q against the type it names.
func (s *Store) GetFeatures(ctx context.Context, q Query) (FeatureIterator, error) {
	fs, err := s.GetFeatureSource(ctx, q.TypeName)
	if err != nil {
		return nil, err
	}
	return fs.GetFeatures(ctx, q)
}

type typeStore struct {
	store *Store
	entry *schemaEntry
}

var _ FeatureStore = &typeStore{}

func (ts *typeStore) Schema() *FeatureType { return ts.entry.ft }

func (ts *typeStore) indexKeyOf(f *Feature) []byte {
	hash := ""
	if g := f.DefaultGeometry(); g != nil {
		hash = indexHash(g)
	}
	t, _ := f.StartTime()
	return indexKey(ts.entry.ft.Name, hash, t, f.ID)
}

// storedIndexKey returns the index key of the stored feature fid, or nil.
func (ts *typeStore) storedIndexKey(fid string) ([]byte, error) {
	val, err := ts.store.table.Get(recordKey(ts.entry.ft.Name, fid))
	if err != nil || val == nil {
		return nil, errors.Wrapf(err, "reading '%s'", fid)
	}
	old, err := ts.entry.codec.decode(val)
	if err != nil {
		return nil, err
	}
	return ts.indexKeyOf(old), nil
}

func (ts *typeStore) AddFeatures(ctx context.Context, features []*Feature) ([]string, error) {
	ft := ts.entry.ft
	var invalid errorList
	for _, f := range features {
		if f.Type == nil || f.Type.Spec() != ft.Spec() || len(f.Values) != len(ft.Attributes) {
			invalid = append(invalid, errors.Errorf("feature '%s' is not of type %s", f.ID, ft))
		}
	}
	if len(invalid) > 0 {
		return nil, invalid
	}

	ts.store.writeMu.Lock()
	defer ts.store.writeMu.Unlock()
	ids := make([]string, len(features))
	muts := make([]Mutation, 0, 3*len(features))
	pending := make(map[string][]byte)
	for i, f := range features {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec := f
		if rec.ID == "" {
			rec = f.Copy()
			rec.ID = "fid-" + uuid.NewString()
		}
		ids[i] = rec.ID

		old, ok := pending[rec.ID]
		if !ok {
			var err error
			if old, err = ts.storedIndexKey(rec.ID); err != nil {
				return nil, err
			}
		}
		if old != nil {
			muts = append(muts, Mutation{Key: old, Delete: true})
		}
		val, err := ts.entry.codec.encode(rec)
		if err != nil {
			return nil, err
		}
		ik := ts.indexKeyOf(rec)
		muts = append(muts,
			Mutation{Key: recordKey(ft.Name, rec.ID), Value: val},
			Mutation{Key: ik, Value: []byte{}},
		)
		pending[rec.ID] = ik
	}
	if err := ts.store.table.Write(muts); err != nil {
		return nil, errors.Wrapf(err, "writing %d features to %s", len(features), ft.Name)
	}
	ts.store.log.Debugf("wrote %d features to %s", len(features), ft.Name)
	return ids, nil
}

func (ts *typeStore) RemoveFeatures(ctx context.Context, filter cql.Filter) (int, error) {
	ts.store.writeMu.Lock()
	defer ts.store.writeMu.Unlock()
	it, err := ts.GetFeatures(ctx, Query{Filter: filter})
	if err != nil {
		return 0, err
	}
	defer it.Close()
	var muts []Mutation
	for it.Next() {
		f := it.Feature()
		muts = append(muts,
			Mutation{Key: recordKey(ts.entry.ft.Name, f.ID), Delete: true},
			Mutation{Key: ts.indexKeyOf(f), Delete: true},
		)
	}
	if err := it.Err(); err != nil {
		return 0, err
	}
	if len(muts) == 0 {
		return 0, nil
	}
	if err := ts.store.table.Write(muts); err != nil {
		return 0, errors.Wrapf(err, "removing features from %s", ts.entry.ft.Name)
	}
	return len(muts) / 2, nil
}

func (ts *typeStore) GetFeatures(ctx context.Context, q Query) (FeatureIterator, error) {
	ft := ts.entry.ft
	if q.TypeName != "" && q.TypeName != ft.Name {
		return nil, errors.Errorf("query for %s run against %s", q.TypeName, ft.Name)
	}
	filter := q.Filter
	if filter == nil {
		filter = cql.Include
	}
	for _, name := range cql.FilterProperties(filter) {
		if ft.Index(name) < 0 {
			return nil, errors.Errorf("filter '%s' references unknown attribute '%s' of %s", filter, name, ft.Name)
		}
	}
	it := &featureIterator{
		ctx:    ctx,
		ts:     ts,
		filter: filter,
		max:    q.MaxFeatures,
		schema: ft,
	}
	if len(q.Properties) > 0 {
		tr, err := NewTransform(ft, q.Properties)
		if err != nil {
			return nil, err
		}
		it.transform = tr
		it.schema = tr.Type
	}
	fids, err := ts.candidates(ctx, filter)
	if err != nil {
		return nil, err
	}
	it.fids = fids
	ts.store.log.Debugf("query %s [%s]: %d candidates", ft.Name, filter, len(fids))
	return it, nil
}

func (ts *typeStore) Count(ctx context.Context, q Query) (int, error) {
	q.Properties = nil
	it, err := ts.GetFeatures(ctx, q)
	if err != nil {
		return 0, err
	}
	defer it.Close()
	n := 0
	for it.Next() {
		n++
	}
	return n, it.Err()
}

// candidates returns the sorted IDs of the features which may match filter,
// using the spatio-temporal index where the filter constrains it.
func (ts *typeStore) candidates(ctx context.Context, filter cql.Filter) ([]string, error) {
	name := ts.entry.ft.Name
	plan := planQuery(ts.entry.ft, filter)
	if plan.empty {
		return nil, nil
	}
	var fids []string
	if plan.bbox == nil && !plan.hasTime() {
		prefix := recordPrefix(name)
		err := ts.store.table.Scan(PrefixRange(prefix), func(key, _ []byte) error {
			fids = append(fids, string(key[len(prefix):]))
			return ctx.Err()
		})
		return fids, errors.Wrapf(err, "scanning %s", name)
	}

	var ranges []Range
	if plan.bbox == nil {
		ranges = append(ranges, PrefixRange(indexPrefix(name)))
	} else {
		prefixes, exact := plan.cells()
		for _, h := range prefixes {
			ranges = append(ranges, PrefixRange(cellPrefix(name, h)))
		}
		for _, h := range exact {
			ranges = append(ranges, PrefixRange(exactCellPrefix(name, h)))
		}
	}
	plen := len(indexPrefix(name))
	seen := make(map[string]struct{})
	for _, r := range ranges {
		err := ts.store.table.Scan(r, func(key, _ []byte) error {
			e, err := parseIndexKey(key, plen)
			if err != nil {
				return err
			}
			if _, ok := seen[e.fid]; ok || !plan.admits(e.time) {
				return ctx.Err()
			}
			seen[e.fid] = struct{}{}
			fids = append(fids, e.fid)
			return ctx.Err()
		})
		if err != nil {
			return nil, errors.Wrapf(err, "scanning index of %s", name)
		}
	}
	sort.Strings(fids)
	return fids, nil
}

type featureIterator struct {
	ctx       context.Context
	ts        *typeStore
	filter    cql.Filter
	transform *Transform
	schema    *FeatureType
	max       int

	fids   []string
	n      int
	cur    *Feature
	err    error
	closed bool
}

func (it *featureIterator) Next() bool {
	it.cur = nil
	for !it.closed && it.err == nil && len(it.fids) > 0 {
		if it.max > 0 && it.n >= it.max {
			return false
		}
		if it.err = it.ctx.Err(); it.err != nil {
			return false
		}
		fid := it.fids[0]
		it.fids = it.fids[1:]
		f, err := it.fetch(fid)
		if err != nil {
			it.err = err
			return false
		}
		if f == nil {
			continue
		}
		it.cur = f
		it.n++
		return true
	}
	return false
}

// fetch reads, filters and transforms a single feature. It returns nil if
// the feature no longer exists or does not match.
func (it *featureIterator) fetch(fid string) (*Feature, error) {
	val, err := it.ts.store.table.Get(recordKey(it.ts.entry.ft.Name, fid))
	if err != nil {
		return nil, errors.Wrapf(err, "reading '%s'", fid)
	}
	if val == nil {
		return nil, nil
	}
	f, err := it.ts.entry.codec.decode(val)
	if err != nil {
		return nil, err
	}
	ok, err := it.filter.Evaluate(f)
	if err != nil {
		return nil, errors.Wrapf(err, "evaluating filter on '%s'", fid)
	}
	if !ok {
		return nil, nil
	}
	if it.transform != nil {
		return it.transform.Apply(f)
	}
	return f, nil
}

func (it *featureIterator) Feature() *Feature    { return it.cur }
func (it *featureIterator) Err() error           { return it.err }
func (it *featureIterator) Schema() *FeatureType { return it.schema }

func (it *featureIterator) Close() error {
	it.closed = true
	it.fids = nil
	it.cur = nil
	return nil
}
