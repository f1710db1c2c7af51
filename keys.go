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
	"bytes"
	"encoding/binary"
	"time"

	"github.com/pkg/errors"
)

// Key layout:
//
//	~s\x00<type>                                     schema catalog
//	~u\x00<user>                                     credentials
//	<type>\x00r\x00<fid>                             feature record
//	<type>\x00z\x00<geohash>\x00<time:8>\x00<fid>     spatio-temporal index
//
// Type names may not begin with '~' or contain a zero byte, so the catalog
// never collides with feature data.

const (
	recordTag = 'r'
	indexTag  = 'z'
)

var (
	schemaPrefix = []byte("~s\x00")
	userPrefix   = []byte("~u\x00")
)

func schemaKey(typeName string) []byte {
	return append(append([]byte(nil), schemaPrefix...), typeName...)
}

func userKey(user string) []byte {
	return append(append([]byte(nil), userPrefix...), user...)
}

func typePrefix(typeName string, tag byte) []byte {
	k := make([]byte, 0, len(typeName)+3)
	k = append(k, typeName...)
	return append(k, 0, tag, 0)
}

func recordPrefix(typeName string) []byte {
	return typePrefix(typeName, recordTag)
}

func recordKey(typeName, fid string) []byte {
	return append(recordPrefix(typeName), fid...)
}

func indexPrefix(typeName string) []byte {
	return typePrefix(typeName, indexTag)
}

// cellPrefix returns the prefix of all index entries whose geohash starts
// with hash.
func cellPrefix(typeName, hash string) []byte {
	return append(indexPrefix(typeName), hash...)
}

// exactCellPrefix returns the prefix of index entries whose geohash is
// exactly hash.
func exactCellPrefix(typeName, hash string) []byte {
	return append(cellPrefix(typeName, hash), 0)
}

func indexKey(typeName, hash string, t time.Time, fid string) []byte {
	k := exactCellPrefix(typeName, hash)
	k = append(k, encodeTime(t)...)
	k = append(k, 0)
	return append(k, fid...)
}

// encodeTime encodes t as milliseconds since the epoch with the sign bit
// flipped, so that byte order matches time order. The zero time encodes as
// all zeros.
func encodeTime(t time.Time) []byte {
	b := make([]byte, 8)
	if t.IsZero() {
		return b
	}
	ms := t.UnixMilli()
	binary.BigEndian.PutUint64(b, uint64(ms)^(1<<63))
	return b
}

func decodeTime(b []byte) time.Time {
	u := binary.BigEndian.Uint64(b)
	if u == 0 {
		return time.Time{}
	}
	ms := int64(u ^ (1 << 63))
	return time.UnixMilli(ms).UTC()
}

type indexEntry struct {
	hash string
	time time.Time
	fid  string
}

// parseIndexKey splits a key produced by indexKey, given the length of the
// type's index prefix.
func parseIndexKey(key []byte, prefixLen int) (indexEntry, error) {
	rest := key[prefixLen:]
	sep := bytes.IndexByte(rest, 0)
	if sep < 0 || len(rest) < sep+1+8+1 {
		return indexEntry{}, errors.Errorf("malformed index key %q", key)
	}
	e := indexEntry{hash: string(rest[:sep])}
	rest = rest[sep+1:]
	e.time = decodeTime(rest[:8])
	if rest[8] != 0 {
		return indexEntry{}, errors.Errorf("malformed index key %q", key)
	}
	e.fid = string(rest[9:])
	return e, nil
}
