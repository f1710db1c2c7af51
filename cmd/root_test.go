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
	"bytes"
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func newQueryFlags(t *testing.T, args ...string) (*QueryMain, *pflag.FlagSet) {
	t.Helper()
	m := &QueryMain{}
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("config", "", "")
	m.register(flags)
	require.NoError(t, flags.Parse(args))
	return m, flags
}

func TestSetAllConfig(t *testing.T) {
	conf := filepath.Join(t.TempDir(), "geoquery.toml")
	err := ioutil.WriteFile(conf, []byte(`backend = "boltdb"
max-features = 5
format = "geojson"
property = ["derived=strConcat(Who,What)", "Where"]
`), 0600)
	require.NoError(t, err)
	t.Setenv("GEOQUERY_TABLE_NAME", "env.table")
	t.Setenv("GEOQUERY_MAX_FEATURES", "7")
	t.Setenv("GEOQUERY_FORMAT", "text")

	m, flags := newQueryFlags(t, "--config", conf, "--filter", "Who = 'Beth'", "--format", "geojson")
	require.NoError(t, setAllConfig(viper.New(), flags, "GEOQUERY"))

	require.Equal(t, "boltdb", m.Store.Backend)
	require.Equal(t, "env.table", m.Store.TableName)
	require.Equal(t, 7, m.MaxFeatures)
	require.Equal(t, "geojson", m.Format)
	require.Equal(t, "Who = 'Beth'", m.Filter)
	require.Equal(t, []string{"derived=strConcat(Who,What)", "Where"}, m.Properties)
	require.Equal(t, "geoquery-data", m.Store.Path)
}

func TestSetAllConfigDefaults(t *testing.T) {
	m, flags := newQueryFlags(t, "--property", "a=strConcat(Who,What)", "--property", "Where")
	require.NoError(t, setAllConfig(viper.New(), flags, "GEOQUERY"))
	require.Equal(t, "leveldb", m.Store.Backend)
	require.Equal(t, "INCLUDE", m.Filter)
	require.Equal(t, 0, m.MaxFeatures)
	require.Equal(t, []string{"a=strConcat(Who,What)", "Where"}, m.Properties)

	m, flags = newQueryFlags(t)
	require.NoError(t, setAllConfig(viper.New(), flags, "GEOQUERY"))
	require.Empty(t, m.Properties)
}

func TestSetAllConfigMissingFile(t *testing.T) {
	_, flags := newQueryFlags(t, "--config", filepath.Join(t.TempDir(), "nope.toml"))
	err := setAllConfig(viper.New(), flags, "GEOQUERY")
	require.Error(t, err)
	require.Contains(t, err.Error(), "reading configuration file")
}

func TestRootCommand(t *testing.T) {
	var out bytes.Buffer
	rc := NewRootCommand(os.Stdin, &out, &out)
	names := make([]string, 0)
	for _, c := range rc.Commands() {
		names = append(names, c.Name())
	}
	for _, name := range []string{"ingest", "query", "schemas", "tutorial"} {
		require.Contains(t, names, name)
	}
}

func TestSchemasCommand(t *testing.T) {
	dir := t.TempDir()
	runTutorial(t, dir, 10)

	var out bytes.Buffer
	m := &SchemasMain{stdout: &out}
	m.Store.Params = storeParams(dir)
	require.NoError(t, m.Run(context.Background()))
	require.Equal(t, "QueryTutorial: Who:String,What:Long,When:Date,*Where:Point:srid=4326,Why:String (start time When)\n", out.String())

	out.Reset()
	m.Remove = "QueryTutorial"
	require.NoError(t, m.Run(context.Background()))
	require.Equal(t, "removed QueryTutorial\n", out.String())

	out.Reset()
	m.Remove = ""
	require.NoError(t, m.Run(context.Background()))
	require.Equal(t, "", strings.TrimSpace(out.String()))
}
