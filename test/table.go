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

// Package test holds helpers shared by the tests of several packages.
package test

import (
	"fmt"
	"testing"

	"github.com/pilosa/geoquery"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// TableConformance runs the behaviour every geoquery.Table implementation
// must share against a fresh, empty table returned by open.
func TableConformance(t *testing.T, open func(t *testing.T) geoquery.Table) {
	t.Run("GetMissing", func(t *testing.T) {
		tbl := open(t)
		val, err := tbl.Get([]byte("nope"))
		require.NoError(t, err)
		require.Nil(t, val)
	})

	t.Run("WriteGetDelete", func(t *testing.T) {
		tbl := open(t)
		require.NoError(t, tbl.Write([]geoquery.Mutation{
			{Key: []byte("a"), Value: []byte("1")},
			{Key: []byte("b"), Value: []byte("2")},
			{Key: []byte("a"), Delete: true},
			{Key: []byte("a"), Value: []byte("3")},
		}))
		val, err := tbl.Get([]byte("a"))
		require.NoError(t, err)
		require.Equal(t, "3", string(val))

		require.NoError(t, tbl.Write([]geoquery.Mutation{{Key: []byte("b"), Delete: true}}))
		val, err = tbl.Get([]byte("b"))
		require.NoError(t, err)
		require.Nil(t, val)
	})

	t.Run("ScanOrderAndRange", func(t *testing.T) {
		tbl := open(t)
		var muts []geoquery.Mutation
		for _, k := range []string{"k5", "k1", "k3", "j9", "k2", "l0", "k4"} {
			muts = append(muts, geoquery.Mutation{Key: []byte(k), Value: []byte("v" + k)})
		}
		require.NoError(t, tbl.Write(muts))

		tests := []struct {
			r   geoquery.Range
			exp []string
		}{
			{r: geoquery.PrefixRange([]byte("k")), exp: []string{"k1", "k2", "k3", "k4", "k5"}},
			{r: geoquery.Range{Start: []byte("k2"), Limit: []byte("k4")}, exp: []string{"k2", "k3"}},
			{r: geoquery.Range{Start: []byte("k4")}, exp: []string{"k4", "k5", "l0"}},
			{r: geoquery.PrefixRange([]byte("m")), exp: nil},
		}
		for i, test := range tests {
			t.Run(fmt.Sprint(i), func(t *testing.T) {
				var got []string
				err := tbl.Scan(test.r, func(key, value []byte) error {
					require.Equal(t, "v"+string(key), string(value))
					got = append(got, string(key))
					return nil
				})
				require.NoError(t, err)
				require.Equal(t, test.exp, got)
			})
		}
	})

	t.Run("ScanStop", func(t *testing.T) {
		tbl := open(t)
		require.NoError(t, tbl.Write([]geoquery.Mutation{
			{Key: []byte("x1"), Value: []byte{}},
			{Key: []byte("x2"), Value: []byte{}},
			{Key: []byte("x3"), Value: []byte{}},
		}))
		n := 0
		err := tbl.Scan(geoquery.PrefixRange([]byte("x")), func(key, value []byte) error {
			n++
			if n == 2 {
				return geoquery.ErrStopScan
			}
			return nil
		})
		require.NoError(t, err)
		require.Equal(t, 2, n)

		boom := errors.New("boom")
		err = tbl.Scan(geoquery.PrefixRange([]byte("x")), func(key, value []byte) error {
			return boom
		})
		require.Error(t, err)
	})
}
