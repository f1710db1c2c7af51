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

package leveldb_test

import (
	"testing"

	"github.com/pilosa/geoquery"
	"github.com/pilosa/geoquery/leveldb"
	"github.com/pilosa/geoquery/test"
	"github.com/stretchr/testify/require"
)

func TestMemDB(t *testing.T) {
	test.TableConformance(t, func(t *testing.T) geoquery.Table {
		db, err := leveldb.NewMemDB()
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
		return db
	})
}

func TestFileTable(t *testing.T) {
	test.TableConformance(t, func(t *testing.T) geoquery.Table {
		tbl, err := leveldb.Open(geoquery.Params{Path: t.TempDir(), Instance: "local", TableName: "tutorial"})
		require.NoError(t, err)
		t.Cleanup(func() { tbl.Close() })
		return tbl
	})
}

func TestTablesShareDB(t *testing.T) {
	db, err := leveldb.NewMemDB()
	require.NoError(t, err)
	defer db.Close()
	a := geoquery.NewPrefixTable(db, "a")
	ab := geoquery.NewPrefixTable(db, "ab")
	require.NoError(t, a.Write([]geoquery.Mutation{{Key: []byte("k"), Value: []byte("from a")}}))
	require.NoError(t, ab.Write([]geoquery.Mutation{{Key: []byte("k"), Value: []byte("from ab")}}))

	var keys []string
	err = a.Scan(geoquery.Range{}, func(key, value []byte) error {
		keys = append(keys, string(key)+"="+string(value))
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"k=from a"}, keys)

	val, err := ab.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, "from ab", string(val))
}

func TestPersistence(t *testing.T) {
	p := geoquery.Params{Path: t.TempDir(), Instance: "local", TableName: "tutorial"}
	tbl, err := leveldb.Open(p)
	require.NoError(t, err)
	require.NoError(t, tbl.Write([]geoquery.Mutation{{Key: []byte("k"), Value: []byte("v")}}))
	require.NoError(t, tbl.Close())

	tbl, err = leveldb.Open(p)
	require.NoError(t, err)
	defer tbl.Close()
	val, err := tbl.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, "v", string(val))
}
