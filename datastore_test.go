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

package geoquery_test

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/pilosa/geoquery"
	"github.com/pilosa/geoquery/cql"
	"github.com/pilosa/geoquery/leveldb"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const baseFilter = "BBOX(Where, -77.5, -37.5, -76.5, -36.5) AND " +
	"(When DURING 2014-07-01T00:00:00.000Z/2014-09-30T23:59:59.999Z) AND (Who = 'Beth')"

func testParams(path string) geoquery.Params {
	return geoquery.Params{
		Backend:   leveldb.Backend,
		Path:      path,
		Instance:  "local",
		User:      "root",
		Password:  "secret",
		TableName: "geomesa.tutorial",
	}
}

func mustOpen(t *testing.T, p geoquery.Params) *geoquery.Store {
	t.Helper()
	ds, err := geoquery.OpenDataStore(p, geoquery.OptStorePasswordCost(bcrypt.MinCost))
	require.NoError(t, err)
	t.Cleanup(func() { ds.Close() })
	return ds
}

func tutorialType(t *testing.T) *geoquery.FeatureType {
	t.Helper()
	ft, err := geoquery.ParseFeatureType("QueryTutorial", "Who:String,What:java.lang.Long,When:Date,*Where:Point:srid=4326,Why:String")
	require.NoError(t, err)
	require.NoError(t, ft.SetStartTime("When"))
	return ft
}

func tutorialFeatures(t *testing.T, ft *geoquery.FeatureType, n int) []*geoquery.Feature {
	t.Helper()
	names := []string{"Adam", "Beth", "Charles", "Diane", "Edgar"}
	r := rand.New(rand.NewSource(42))
	start := time.Date(2014, 1, 1, 0, 0, 0, 0, time.UTC)
	var out []*geoquery.Feature
	for i := 0; i < n; i++ {
		f := geoquery.NewFeature(ft, fmt.Sprintf("Observation.%d", i))
		require.NoError(t, f.SetAttribute("Who", names[i%len(names)]))
		require.NoError(t, f.SetAttribute("What", i))
		require.NoError(t, f.SetAttribute("When", start.Add(time.Duration(r.Int63n(int64(365*24*time.Hour))))))
		require.NoError(t, f.SetAttribute("Where", orb.Point{-78 + 2*r.Float64(), -39 + 2*r.Float64()}))
		if i%2 == 0 {
			require.NoError(t, f.SetAttribute("Why", fmt.Sprintf("reason %d", i)))
		}
		out = append(out, f)
	}
	// one feature with neither a location nor a time
	empty := geoquery.NewFeature(ft, "Observation.empty")
	require.NoError(t, empty.SetAttribute("Who", "Beth"))
	return append(out, empty)
}

func ids(t *testing.T, it geoquery.FeatureIterator) []string {
	t.Helper()
	defer it.Close()
	var out []string
	for it.Next() {
		out = append(out, it.Feature().ID)
	}
	require.NoError(t, it.Err())
	return out
}

func bruteForce(t *testing.T, features []*geoquery.Feature, filter string) []string {
	t.Helper()
	f := cql.MustParseFilter(filter)
	var out []string
	for _, feat := range features {
		ok, err := f.Evaluate(feat)
		require.NoError(t, err)
		if ok {
			out = append(out, feat.ID)
		}
	}
	sort.Strings(out)
	return out
}

func TestOpenDataStore(t *testing.T) {
	t.Run("Validation", func(t *testing.T) {
		p := testParams("")
		p.Instance, p.User = "", ""
		_, err := geoquery.OpenDataStore(p)
		require.Error(t, err)
		require.Contains(t, err.Error(), "instance, user")

		p = testParams("")
		p.TableName = "a/b"
		_, err = geoquery.OpenDataStore(p)
		require.Error(t, err)
	})

	t.Run("UnknownBackend", func(t *testing.T) {
		p := testParams("")
		p.Backend = "accumulo"
		_, err := geoquery.OpenDataStore(p)
		require.Equal(t, geoquery.ErrUnknownBackend, errors.Cause(err))
	})

	t.Run("DefaultZookeepers", func(t *testing.T) {
		ds := mustOpen(t, testParams(""))
		require.Equal(t, geoquery.DefaultZookeepers, ds.Params().Zookeepers)
	})

	t.Run("Authentication", func(t *testing.T) {
		p := testParams(t.TempDir())
		ds, err := geoquery.OpenDataStore(p, geoquery.OptStorePasswordCost(bcrypt.MinCost))
		require.NoError(t, err)
		require.NoError(t, ds.Close())

		p.Password = "wrong"
		_, err = geoquery.OpenDataStore(p)
		require.Equal(t, geoquery.ErrAuthentication, errors.Cause(err))

		p.Password = "secret"
		ds, err = geoquery.OpenDataStore(p)
		require.NoError(t, err)
		require.NoError(t, ds.Close())
	})

	t.Run("BadCost", func(t *testing.T) {
		_, err := geoquery.OpenDataStore(testParams(""), geoquery.OptStorePasswordCost(100))
		require.Error(t, err)
	})
}

func TestSchemas(t *testing.T) {
	ctx := context.Background()
	ds := mustOpen(t, testParams(""))
	ft := tutorialType(t)

	_, err := ds.GetSchema(ctx, "QueryTutorial")
	require.Equal(t, geoquery.ErrSchemaNotFound, errors.Cause(err))

	require.NoError(t, ds.CreateSchema(ctx, ft))
	require.NoError(t, ds.CreateSchema(ctx, tutorialType(t)), "creating an identical schema is a no-op")

	other, err := geoquery.ParseFeatureType("QueryTutorial", "Who:String")
	require.NoError(t, err)
	require.Equal(t, geoquery.ErrSchemaExists, errors.Cause(ds.CreateSchema(ctx, other)))

	bad, err := geoquery.ParseFeatureType("Bad", "Who:String,When:Date")
	require.NoError(t, err)
	bad.UserData[geoquery.StartTimeKey] = "Who"
	require.Error(t, ds.CreateSchema(ctx, bad))

	got, err := ds.GetSchema(ctx, "QueryTutorial")
	require.NoError(t, err)
	require.True(t, got.Equal(ft), "%s != %s", got, ft)
	ft.UserData["changed"] = "after create"
	got, err = ds.GetSchema(ctx, "QueryTutorial")
	require.NoError(t, err)
	require.Empty(t, got.UserData["changed"])

	gdelt, err := geoquery.ParseFeatureType("gdelt", "name:String,*geom:Point:srid=4326")
	require.NoError(t, err)
	require.NoError(t, ds.CreateSchema(ctx, gdelt))
	names, err := ds.TypeNames(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"QueryTutorial", "gdelt"}, names)

	fs, err := ds.GetFeatureSource(ctx, "QueryTutorial")
	require.NoError(t, err)
	_, err = fs.AddFeatures(ctx, tutorialFeatures(t, got, 10))
	require.NoError(t, err)

	require.NoError(t, ds.RemoveSchema(ctx, "QueryTutorial"))
	_, err = ds.GetFeatureSource(ctx, "QueryTutorial")
	require.Equal(t, geoquery.ErrSchemaNotFound, errors.Cause(err))
	require.Equal(t, geoquery.ErrSchemaNotFound, errors.Cause(ds.RemoveSchema(ctx, "QueryTutorial")))

	// recreating starts from an empty type
	require.NoError(t, ds.CreateSchema(ctx, tutorialType(t)))
	fs, err = ds.GetFeatureSource(ctx, "QueryTutorial")
	require.NoError(t, err)
	n, err := fs.Count(ctx, geoquery.Query{})
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestSchemaPersistence(t *testing.T) {
	ctx := context.Background()
	p := testParams(t.TempDir())
	ds, err := geoquery.OpenDataStore(p, geoquery.OptStorePasswordCost(bcrypt.MinCost))
	require.NoError(t, err)
	ft := tutorialType(t)
	require.NoError(t, ds.CreateSchema(ctx, ft))
	fs, err := ds.GetFeatureSource(ctx, ft.Name)
	require.NoError(t, err)
	_, err = fs.AddFeatures(ctx, tutorialFeatures(t, ft, 20))
	require.NoError(t, err)
	require.NoError(t, ds.Close())

	ds = mustOpen(t, p)
	got, err := ds.GetSchema(ctx, ft.Name)
	require.NoError(t, err)
	require.Equal(t, "When", got.StartTime())
	fs, err = ds.GetFeatureSource(ctx, ft.Name)
	require.NoError(t, err)
	n, err := fs.Count(ctx, geoquery.Query{})
	require.NoError(t, err)
	require.Equal(t, 21, n)
}

func TestQueries(t *testing.T) {
	ctx := context.Background()
	ds := mustOpen(t, testParams(""))
	ft := tutorialType(t)
	require.NoError(t, ds.CreateSchema(ctx, ft))
	fs, err := ds.GetFeatureSource(ctx, ft.Name)
	require.NoError(t, err)
	features := tutorialFeatures(t, fs.Schema(), 2000)
	added, err := fs.AddFeatures(ctx, features)
	require.NoError(t, err)
	require.Len(t, added, len(features))
	require.Equal(t, "Observation.0", added[0])

	filters := []string{
		"INCLUDE",
		"EXCLUDE",
		baseFilter,
		"Who = 'Beth'",
		"BBOX(Where, -77.5, -37.5, -76.5, -36.5)",
		"When DURING 2014-07-01T00:00:00.000Z/2014-09-30T23:59:59.999Z",
		"BBOX(Where, -77.5, -37.5, -76.5, -36.5) OR Who = 'Adam'",
		"DWITHIN(Where, POINT(-77 -38), 50, kilometers)",
		"INTERSECTS(Where, POLYGON((-78 -39, -77 -39, -77 -38, -78 -38, -78 -39)))",
		"When AFTER 2014-06-01T00:00:00.000Z AND Who <> 'Adam' AND Why IS NOT NULL",
		"When < 2014-03-01T00:00:00.000Z",
		"What BETWEEN 10 AND 20",
		"Where IS NULL",
		"BBOX(Where, 10, 10, 11, 11)",
	}
	for _, filter := range filters {
		t.Run(filter, func(t *testing.T) {
			q, err := geoquery.NewQuery(ft.Name, filter)
			require.NoError(t, err)
			it, err := fs.GetFeatures(ctx, q)
			require.NoError(t, err)
			got := ids(t, it)
			exp := bruteForce(t, features, filter)
			require.Equal(t, exp, got)
		})
	}

	t.Run("BaseFilterMatches", func(t *testing.T) {
		q, err := geoquery.NewQuery(ft.Name, baseFilter)
		require.NoError(t, err)
		n, err := fs.Count(ctx, q)
		require.NoError(t, err)
		require.NotZero(t, n, "the generated data should include matches")
	})

	t.Run("MaxFeatures", func(t *testing.T) {
		q, err := geoquery.NewQuery(ft.Name, "Who = 'Beth'")
		require.NoError(t, err)
		q.MaxFeatures = 3
		it, err := ds.GetFeatures(ctx, q)
		require.NoError(t, err)
		require.Len(t, ids(t, it), 3)
	})

	t.Run("Transform", func(t *testing.T) {
		q, err := geoquery.NewQuery(ft.Name, baseFilter, "derived=strConcat('hello ',Who)", "What", "Where")
		require.NoError(t, err)
		it, err := fs.GetFeatures(ctx, q)
		require.NoError(t, err)
		defer it.Close()
		require.Equal(t, "derived:String,What:Long,*Where:Point:srid=4326", it.Schema().Spec())
		n := 0
		for it.Next() {
			f := it.Feature()
			require.Equal(t, "hello Beth", f.Attribute("derived"))
			require.IsType(t, orb.Point{}, f.Attribute("Where"))
			n++
		}
		require.NoError(t, it.Err())
		require.NotZero(t, n)
	})

	t.Run("UnknownAttribute", func(t *testing.T) {
		q, err := geoquery.NewQuery(ft.Name, "Nope = 1")
		require.NoError(t, err)
		_, err = fs.GetFeatures(ctx, q)
		require.Error(t, err)

		q, err = geoquery.NewQuery(ft.Name, "INCLUDE", "Nope")
		require.NoError(t, err)
		_, err = fs.GetFeatures(ctx, q)
		require.Error(t, err)
	})

	t.Run("WrongType", func(t *testing.T) {
		_, err := fs.GetFeatures(ctx, geoquery.Query{TypeName: "gdelt"})
		require.Error(t, err)
	})

	t.Run("Canceled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		it, err := fs.GetFeatures(cctx, geoquery.Query{})
		require.NoError(t, err)
		defer it.Close()
		require.True(t, it.Next())
		cancel()
		require.False(t, it.Next())
		require.Equal(t, context.Canceled, it.Err())
	})
}

func TestWrites(t *testing.T) {
	ctx := context.Background()
	ds := mustOpen(t, testParams(""))
	ft := tutorialType(t)
	require.NoError(t, ds.CreateSchema(ctx, ft))
	fs, err := ds.GetFeatureSource(ctx, ft.Name)
	require.NoError(t, err)
	features := tutorialFeatures(t, fs.Schema(), 50)
	_, err = fs.AddFeatures(ctx, features)
	require.NoError(t, err)

	count := func(filter string) int {
		q, err := geoquery.NewQuery(ft.Name, filter)
		require.NoError(t, err)
		n, err := fs.Count(ctx, q)
		require.NoError(t, err)
		return n
	}
	far := "BBOX(Where, 9, 9, 11, 11)"
	require.Equal(t, 0, count(far))

	t.Run("Replace", func(t *testing.T) {
		moved := features[3].Copy()
		require.NoError(t, moved.SetAttribute("Where", orb.Point{10, 10}))
		again := moved.Copy()
		require.NoError(t, again.SetAttribute("Who", "Zed"))
		_, err := fs.AddFeatures(ctx, []*geoquery.Feature{moved, again})
		require.NoError(t, err)

		require.Equal(t, 51, count("INCLUDE"))
		require.Equal(t, 1, count(far))
		require.Equal(t, 1, count("Who = 'Zed'"))
		old := features[3].DefaultGeometry().(orb.Point)
		near := fmt.Sprintf("BBOX(Where, %v, %v, %v, %v) AND What = 3", old[0]-0.01, old[1]-0.01, old[0]+0.01, old[1]+0.01)
		require.Equal(t, 0, count(near))
	})

	t.Run("GeneratedIDs", func(t *testing.T) {
		f := geoquery.NewFeature(fs.Schema(), "")
		require.NoError(t, f.SetAttribute("Who", "Nobody"))
		ids, err := fs.AddFeatures(ctx, []*geoquery.Feature{f})
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(ids[0], "fid-"), ids[0])
		require.Empty(t, f.ID, "the caller's feature is not modified")
		require.Equal(t, 1, count("Who = 'Nobody'"))
	})

	t.Run("WrongType", func(t *testing.T) {
		other, err := geoquery.ParseFeatureType("QueryTutorial", "Who:String")
		require.NoError(t, err)
		_, err = fs.AddFeatures(ctx, []*geoquery.Feature{geoquery.NewFeature(other, "x")})
		require.Error(t, err)
	})

	t.Run("Remove", func(t *testing.T) {
		n, err := fs.RemoveFeatures(ctx, cql.MustParseFilter("Who = 'Adam'"))
		require.NoError(t, err)
		require.Equal(t, 10, n)
		require.Equal(t, 0, count("Who = 'Adam'"))
		require.Equal(t, 42, count("INCLUDE"))

		n, err = fs.RemoveFeatures(ctx, cql.MustParseFilter(far))
		require.NoError(t, err)
		require.Equal(t, 1, n)
		require.Equal(t, 0, count(far))
	})
}

func TestPolygonIndex(t *testing.T) {
	ctx := context.Background()
	ds := mustOpen(t, testParams(""))
	ft, err := geoquery.ParseFeatureType("areas", "name:String,*geom:Polygon:srid=4326,dtg:Date")
	require.NoError(t, err)
	require.NoError(t, ft.SetStartTime("dtg"))
	require.NoError(t, ds.CreateSchema(ctx, ft))
	fs, err := ds.GetFeatureSource(ctx, ft.Name)
	require.NoError(t, err)

	r := rand.New(rand.NewSource(7))
	var features []*geoquery.Feature
	for i := 0; i < 200; i++ {
		size := r.Float64() * 20
		x, y := -180+r.Float64()*340, -80+r.Float64()*140
		b := orb.Bound{Min: orb.Point{x, y}, Max: orb.Point{x + size, y + size/2}}
		f := geoquery.NewFeature(ft, fmt.Sprintf("area.%03d", i))
		require.NoError(t, f.SetAttribute("name", fmt.Sprint(i)))
		require.NoError(t, f.SetAttribute("geom", b))
		require.NoError(t, f.SetAttribute("dtg", time.Date(2014, 1, 1+i, 0, 0, 0, 0, time.UTC)))
		features = append(features, f)
	}
	_, err = fs.AddFeatures(ctx, features)
	require.NoError(t, err)

	for _, filter := range []string{
		"BBOX(geom, -10, -10, 10, 10)",
		"BBOX(geom, 100.5, 20.25, 100.75, 20.5)",
		"BBOX(geom, -180, -90, 180, 90) AND dtg BEFORE 2014-03-01T00:00:00.000Z",
		"INTERSECTS(geom, POINT(0 0))",
		"WITHIN(geom, POLYGON((-50 -50, 50 -50, 50 50, -50 50, -50 -50)))",
	} {
		t.Run(filter, func(t *testing.T) {
			q, err := geoquery.NewQuery(ft.Name, filter)
			require.NoError(t, err)
			it, err := fs.GetFeatures(ctx, q)
			require.NoError(t, err)
			require.Equal(t, bruteForce(t, features, filter), ids(t, it))
		})
	}
}

func TestWorldEdges(t *testing.T) {
	ctx := context.Background()
	ds := mustOpen(t, testParams(""))
	ft := tutorialType(t)
	require.NoError(t, ds.CreateSchema(ctx, ft))
	fs, err := ds.GetFeatureSource(ctx, ft.Name)
	require.NoError(t, err)

	var features []*geoquery.Feature
	for id, p := range map[string]orb.Point{
		"east":      {180, 0},
		"west":      {-180, 0},
		"north":     {10, 90},
		"south":     {10, -90},
		"northeast": {180, 90},
		"southwest": {-180, -90},
	} {
		f := geoquery.NewFeature(ft, id)
		require.NoError(t, f.SetAttribute("Who", id))
		require.NoError(t, f.SetAttribute("Where", p))
		require.NoError(t, f.SetAttribute("When", time.Date(2014, 7, 1, 0, 0, 0, 0, time.UTC)))
		features = append(features, f)
	}
	_, err = fs.AddFeatures(ctx, features)
	require.NoError(t, err)

	for _, filter := range []string{
		"BBOX(Where, 179, -1, 180, 1)",
		"BBOX(Where, -180, -1, -179, 1)",
		"BBOX(Where, 9, 89, 11, 90)",
		"BBOX(Where, 9, -90, 11, -89)",
		"BBOX(Where, 179, 89, 180, 90)",
		"BBOX(Where, -180, -90, 180, 90)",
	} {
		t.Run(filter, func(t *testing.T) {
			exp := bruteForce(t, features, filter)
			require.NotEmpty(t, exp)
			q, err := geoquery.NewQuery(ft.Name, filter)
			require.NoError(t, err)
			it, err := fs.GetFeatures(ctx, q)
			require.NoError(t, err)
			require.Equal(t, exp, ids(t, it))

			// OR EXCLUDE leaves nothing for the planner and scans every record.
			q, err = geoquery.NewQuery(ft.Name, filter+" OR EXCLUDE")
			require.NoError(t, err)
			it, err = fs.GetFeatures(ctx, q)
			require.NoError(t, err)
			require.Equal(t, exp, ids(t, it))
		})
	}
}

func TestDistantDates(t *testing.T) {
	ctx := context.Background()
	ds := mustOpen(t, testParams(""))
	ft := tutorialType(t)
	require.NoError(t, ds.CreateSchema(ctx, ft))
	fs, err := ds.GetFeatureSource(ctx, ft.Name)
	require.NoError(t, err)

	dates := map[string]time.Time{
		"old":    time.Date(1500, 1, 1, 0, 0, 0, 0, time.UTC),
		"recent": time.Date(2014, 7, 1, 0, 0, 0, 0, time.UTC),
		"future": time.Date(2300, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	var features []*geoquery.Feature
	for id, when := range dates {
		f := geoquery.NewFeature(ft, id)
		require.NoError(t, f.SetAttribute("Where", orb.Point{-77, -37}))
		require.NoError(t, f.SetAttribute("When", when))
		features = append(features, f)
	}
	_, err = fs.AddFeatures(ctx, features)
	require.NoError(t, err)

	q, err := geoquery.NewQuery(ft.Name, "INCLUDE")
	require.NoError(t, err)
	it, err := fs.GetFeatures(ctx, q)
	require.NoError(t, err)
	n := 0
	for it.Next() {
		n++
		f := it.Feature()
		when, ok := f.StartTime()
		require.True(t, ok, f.ID)
		require.True(t, when.Equal(dates[f.ID]), "%s: expected %v, got %v", f.ID, dates[f.ID], when)
	}
	require.NoError(t, it.Err())
	require.NoError(t, it.Close())
	require.Equal(t, 3, n)

	for filter, exp := range map[string][]string{
		"When BEFORE 1600-01-01T00:00:00.000Z":                                     {"old"},
		"When AFTER 2200-01-01T00:00:00.000Z":                                      {"future"},
		"BBOX(Where, -78, -38, -76, -36) AND When BEFORE 1600-01-01T00:00:00.000Z": {"old"},
		"BBOX(Where, -78, -38, -76, -36) AND When AFTER 2200-01-01T00:00:00.000Z":  {"future"},
	} {
		q, err := geoquery.NewQuery(ft.Name, filter)
		require.NoError(t, err)
		it, err := fs.GetFeatures(ctx, q)
		require.NoError(t, err)
		require.Equal(t, exp, ids(t, it), filter)
		require.Equal(t, exp, bruteForce(t, features, filter), filter)
	}
}
