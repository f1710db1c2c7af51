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

package cmd

import (
	"context"
	"encoding/json"
	"io"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/pilosa/geoquery"
	"github.com/pilosa/geoquery/tutorial"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// QueryMain holds the configuration of the query command.
type QueryMain struct {
	Store       storeFlags
	TypeName    string
	Filter      string
	Properties  []string
	MaxFeatures int
	Format      string

	stdout io.Writer
}

// Run executes the query and writes the results in the configured format.
func (m *QueryMain) Run(ctx context.Context) (err error) {
	if m.Format != "text" && m.Format != "geojson" {
		return errors.Errorf("unknown format '%s'", m.Format)
	}
	q, err := geoquery.NewQuery(m.TypeName, m.Filter, m.Properties...)
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	q.MaxFeatures = m.MaxFeatures

	ds, err := geoquery.OpenDataStore(m.Store.Params)
	if err != nil {
		return errors.Wrap(err, "opening data store")
	}
	defer func() {
		if cerr := ds.Close(); err == nil {
			err = errors.Wrap(cerr, "closing data store")
		}
	}()
	fs, err := ds.GetFeatureSource(ctx, m.TypeName)
	if err != nil {
		return errors.Wrap(err, "getting feature source")
	}
	it, err := fs.GetFeatures(ctx, q)
	if err != nil {
		return errors.Wrap(err, "getting features")
	}
	defer it.Close()

	if m.Format == "geojson" {
		return writeGeoJSON(m.stdout, it)
	}
	attrs := make([]string, len(it.Schema().Attributes))
	for i, a := range it.Schema().Attributes {
		attrs[i] = a.Name
	}
	_, err = tutorial.PrintResults(m.stdout, it, attrs)
	return err
}

// writeGeoJSON writes the results as a FeatureCollection. The default
// geometry becomes the feature geometry; dates and other geometries are
// written as strings.
func writeGeoJSON(w io.Writer, it geoquery.FeatureIterator) error {
	fc := geojson.NewFeatureCollection()
	def := it.Schema().DefaultGeometry()
	for it.Next() {
		f := it.Feature()
		var g orb.Geometry
		if def != nil {
			g = f.DefaultGeometry()
		}
		gf := geojson.NewFeature(g)
		gf.ID = f.ID
		for i, a := range f.Type.Attributes {
			if def != nil && a.Name == def.Name {
				continue
			}
			v := f.Values[i]
			switch v.(type) {
			case nil, string, bool, int32, int64, float32, float64:
			default:
				v = geoquery.FormatValue(v)
			}
			gf.Properties[a.Name] = v
		}
		fc.Append(gf)
	}
	if err := it.Err(); err != nil {
		return errors.Wrap(err, "iterating results")
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(fc), "encoding geojson")
}

// NewQueryCommand returns a new cobra command which runs a CQL query.
func NewQueryCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	m := &QueryMain{stdout: stdout}
	queryCommand := &cobra.Command{
		Use:   "query",
		Short: "query - run a CQL query against a feature type",
		Long: `Runs a CQL filter against a feature type and prints the
matching features, optionally transformed by property definitions
such as "derived=strConcat(Who,What)".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return m.Run(context.Background())
		},
	}
	m.register(queryCommand.Flags())
	return queryCommand
}

func (m *QueryMain) register(flags *pflag.FlagSet) {
	m.Store.register(flags)
	flags.StringVar(&m.TypeName, "type-name", tutorial.TypeName, "Feature type to query.")
	flags.StringVar(&m.Filter, "filter", "INCLUDE", "CQL filter.")
	flags.StringArrayVar(&m.Properties, "property", nil, "Attribute or name=expression transform to return. May be repeated.")
	flags.IntVar(&m.MaxFeatures, "max-features", 0, "Maximum number of features to return. 0 means all.")
	flags.StringVar(&m.Format, "format", "text", "Output format: text or geojson.")
}

func init() {
	subcommandFns["query"] = NewQueryCommand
}
