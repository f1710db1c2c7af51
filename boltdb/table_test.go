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

package boltdb_test

import (
	"path/filepath"
	"testing"

	"github.com/pilosa/geoquery"
	"github.com/pilosa/geoquery/boltdb"
	"github.com/pilosa/geoquery/test"
	"github.com/stretchr/testify/require"
)

func TestTable(t *testing.T) {
	test.TableConformance(t, func(t *testing.T) geoquery.Table {
		tbl, err := boltdb.NewTable(filepath.Join(t.TempDir(), "bolt.db"), "tutorial")
		require.NoError(t, err)
		t.Cleanup(func() { tbl.Close() })
		return tbl
	})
}

func TestOpen(t *testing.T) {
	_, err := boltdb.Open(geoquery.Params{Instance: "local", TableName: "tutorial"})
	require.Error(t, err)

	dir := t.TempDir()
	tbl, err := boltdb.Open(geoquery.Params{Path: dir, Instance: "local", TableName: "tutorial"})
	require.NoError(t, err)
	require.NoError(t, tbl.Write([]geoquery.Mutation{{Key: []byte("k"), Value: []byte("v")}}))
	require.NoError(t, tbl.Close())
	require.FileExists(t, filepath.Join(dir, "local.db"))

	// A second table in the same file is a separate bucket.
	other, err := boltdb.Open(geoquery.Params{Path: dir, Instance: "local", TableName: "other"})
	require.NoError(t, err)
	defer other.Close()
	val, err := other.Get([]byte("k"))
	require.NoError(t, err)
	require.Nil(t, val)
}
