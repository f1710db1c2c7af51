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

// Package tutorial walks through spatial, temporal and attribute queries
// against a geoquery data store, with and without result transforms.
package tutorial

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pilosa/geoquery"
	"github.com/pilosa/geoquery/cql"
	"github.com/pilosa/geoquery/fake"
	"github.com/pilosa/pilosa/logger"
	"github.com/pkg/errors"
)

// TypeName is the name of the tutorial's feature type.
const TypeName = "QueryTutorial"

// Attributes make up the tutorial's feature type. Where is the default
// geometry and When is indexed as the start time.
var Attributes = []string{
	"Who:String",
	"What:java.lang.Long",
	"When:Date",
	"*Where:Point:srid=4326",
	"Why:String",
}

// Transforms used by the tutorial queries.
var (
	BasicTransform      = []string{"derived=strConcat('hello ',Who)", "What", "Where"}
	MultiFieldTransform = []string{"derived=strConcat(Who,What)", "Where"}
	BufferTransform     = []string{"Who", "buffered=buffer(Where, 0.01)"}
	SubtypeProperties   = []string{"Who", "Where"}
)

// CreateFeatureType builds the tutorial feature type under name.
func CreateFeatureType(name string) (*geoquery.FeatureType, error) {
	ft, err := geoquery.ParseFeatureType(name, strings.Join(Attributes, ","))
	if err != nil {
		return nil, errors.Wrap(err, "parsing feature type")
	}
	// features are stored either way, but only indexed by time when a
	// start time is set
	if err := ft.SetStartTime("When"); err != nil {
		return nil, err
	}
	return ft, nil
}

// BaseFilter returns the filter every tutorial query starts from: a
// bounding box, a three month period and Who = 'Beth'.
func BaseFilter() string {
	return cql.AndText(
		cql.BBoxText("Where", -77.5, -37.5, -76.5, -36.5),
		cql.DuringText("When",
			time.Date(2014, 7, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2014, 9, 30, 23, 59, 59, 999e6, time.UTC)),
		cql.EqualsText("Who", "Beth"),
	)
}

// Main holds the data store parameters and options of the tutorial.
type Main struct {
	Backend     string `help:"Storage backend (leveldb, boltdb or badger)."`
	Path        string `help:"Directory for the data store. Empty means in memory where the backend supports it."`
	Instance    string `help:"Data store instance name."`
	Zookeepers  string `help:"Comma separated list of zookeeper host:port pairs."`
	User        string `help:"Data store user."`
	Password    string `help:"Data store password."`
	TableName   string `help:"Table holding the tutorial feature type."`
	SkipInsert  bool   `help:"Query existing data instead of inserting new features."`
	NumFeatures int    `help:"Number of features to insert."`
	Verbose     bool   `help:"Enable verbose logging."`

	stdout io.Writer
	stderr io.Writer
	log    logger.Logger
}

// NewMain gets a new Main with the default configuration.
func NewMain() *Main {
	return &Main{
		Backend:     "leveldb",
		Instance:    "local",
		Zookeepers:  geoquery.DefaultZookeepers,
		User:        "root",
		TableName:   "geomesa.tutorial",
		NumFeatures: 1000,
		stdout:      os.Stdout,
		stderr:      os.Stderr,
	}
}

// SetOutput sets where results and status lines (stdout) and log messages
// (stderr) are written.
func (m *Main) SetOutput(stdout, stderr io.Writer) {
	m.stdout, m.stderr = stdout, stderr
}

// Params returns the data store parameters.
func (m *Main) Params() geoquery.Params {
	return geoquery.Params{
		Backend:    m.Backend,
		Path:       m.Path,
		Instance:   m.Instance,
		Zookeepers: m.Zookeepers,
		User:       m.User,
		Password:   m.Password,
		TableName:  m.TableName,
	}
}

// Run creates the schema and inserts the synthetic features (unless
// SkipInsert is set), then runs each query in turn, printing the results.
func (m *Main) Run() (err error) {
	if m.NumFeatures < 0 {
		return errors.Errorf("number of features must not be negative, got %d", m.NumFeatures)
	}
	if m.Verbose {
		m.log = logger.NewVerboseLogger(m.stderr)
	} else {
		m.log = logger.NewStandardLogger(m.stderr)
	}
	ctx := context.Background()

	ds, err := geoquery.OpenDataStore(m.Params(), geoquery.OptStoreLogger(m.log))
	if err != nil {
		return errors.Wrap(err, "opening data store")
	}
	defer func() {
		if cerr := ds.Close(); err == nil {
			err = errors.Wrap(cerr, "closing data store")
		}
	}()
	m.log.Debugf("using table %s", m.TableName)

	ft, err := CreateFeatureType(TypeName)
	if err != nil {
		return errors.Wrap(err, "creating feature type")
	}

	if !m.SkipInsert {
		if err := m.insert(ctx, ds, ft); err != nil {
			return err
		}
	}
	fs, err := ds.GetFeatureSource(ctx, ft.Name)
	if err != nil {
		return errors.Wrap(err, "getting feature source")
	}

	for _, q := range []struct {
		name       string
		properties []string
		attrs      []string
	}{
		{"within query", nil, []string{"Who", "What", "When", "Where", "Why"}},
		{"basic transformation query", BasicTransform, []string{"derived", "What", "Where"}},
		{"multi-field transformation query", MultiFieldTransform, []string{"derived", "Where"}},
		{"geometric transformation query", BufferTransform, []string{"Who", "buffered"}},
	} {
		fmt.Fprintln(m.stdout, "Submitting "+q.name)
		if err := m.query(ctx, fs, q.properties, q.attrs); err != nil {
			return errors.Wrap(err, q.name)
		}
	}
	fmt.Fprintln(m.stdout, "Submitting subtype query")
	return errors.Wrap(m.subtypeQuery(ctx, fs), "subtype query")
}

func (m *Main) insert(ctx context.Context, ds geoquery.DataStore, ft *geoquery.FeatureType) error {
	fmt.Fprintln(m.stdout, "Creating feature-type (schema):  "+ft.Name)
	if err := ds.CreateSchema(ctx, ft); err != nil {
		return errors.Wrap(err, "creating schema")
	}

	fmt.Fprintln(m.stdout, "Creating new features")
	features, err := fake.NewGenerator(fake.DefaultSeed).Features(ft, m.NumFeatures)
	if err != nil {
		return errors.Wrap(err, "creating features")
	}

	fmt.Fprintln(m.stdout, "Inserting new features")
	fs, err := ds.GetFeatureSource(ctx, ft.Name)
	if err != nil {
		return errors.Wrap(err, "getting feature store")
	}
	start := time.Now()
	if _, err := fs.AddFeatures(ctx, features); err != nil {
		return errors.Wrap(err, "adding features")
	}
	m.log.Debugf("inserted %d features in %v", len(features), time.Since(start))
	return nil
}

func (m *Main) query(ctx context.Context, fs geoquery.FeatureSource, properties, attrs []string) error {
	q, err := geoquery.NewQuery(TypeName, BaseFilter(), properties...)
	if err != nil {
		return err
	}
	it, err := fs.GetFeatures(ctx, q)
	if err != nil {
		return errors.Wrap(err, "getting features")
	}
	defer it.Close()
	_, err = PrintResults(m.stdout, it, attrs)
	return err
}

// subtypeQuery projects the results onto a subset of the attributes and
// prints the resulting schema followed by each encoded feature.
func (m *Main) subtypeQuery(ctx context.Context, fs geoquery.FeatureSource) error {
	q, err := geoquery.NewQuery(TypeName, BaseFilter(), SubtypeProperties...)
	if err != nil {
		return err
	}
	it, err := fs.GetFeatures(ctx, q)
	if err != nil {
		return errors.Wrap(err, "getting features")
	}
	defer it.Close()

	fmt.Fprintln(m.stdout, it.Schema().Spec())
	n := 0
	for it.Next() {
		n++
		fmt.Fprintln(m.stdout, strconv.Itoa(n)+"|"+geoquery.EncodeFeature(it.Feature()))
	}
	if err := it.Err(); err != nil {
		return err
	}
	fmt.Fprintln(m.stdout)
	return nil
}

// PrintResults writes one line per feature, "n|attr=value|attr=value...",
// counting from 1, then a blank line. It returns the number of features.
func PrintResults(w io.Writer, it geoquery.FeatureIterator, attributes []string) (int, error) {
	n := 0
	var sb strings.Builder
	for it.Next() {
		n++
		sb.Reset()
		sb.WriteString(strconv.Itoa(n))
		f := it.Feature()
		for _, attr := range attributes {
			sb.WriteString("|" + attr + "=" + geoquery.FormatValue(f.Attribute(attr)))
		}
		sb.WriteByte('\n')
		if _, err := io.WriteString(w, sb.String()); err != nil {
			return n, errors.Wrap(err, "writing result")
		}
	}
	if err := it.Err(); err != nil {
		return n, errors.Wrap(err, "iterating results")
	}
	_, err := io.WriteString(w, "\n")
	return n, errors.Wrap(err, "writing result")
}
