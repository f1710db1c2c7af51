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
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Mutation is a single write to a Table. Delete removes Key and ignores
// Value.
type Mutation struct {
	Key    []byte
	Value  []byte
	Delete bool
}

// Range is the half-open key range [Start, Limit). A nil Limit is
// unbounded.
type Range struct {
	Start []byte
	Limit []byte
}

// PrefixRange returns the range of keys beginning with prefix.
func PrefixRange(prefix []byte) Range {
	return Range{Start: prefix, Limit: prefixLimit(prefix)}
}

// Contains reports whether key falls in r.
func (r Range) Contains(key []byte) bool {
	return bytes.Compare(key, r.Start) >= 0 && (r.Limit == nil || bytes.Compare(key, r.Limit) < 0)
}

// prefixLimit returns the smallest key greater than every key with the
// given prefix, or nil if there is none.
func prefixLimit(prefix []byte) []byte {
	limit := append([]byte(nil), prefix...)
	for i := len(limit) - 1; i >= 0; i-- {
		if limit[i] < 0xff {
			limit[i]++
			return limit[:i+1]
		}
	}
	return nil
}

// Table is an ordered key/value table. Implementations must be safe for
// concurrent use.
type Table interface {
	// Get returns the value stored at key, or nil if there is none.
	Get(key []byte) ([]byte, error)
	// Write applies mutations atomically.
	Write(muts []Mutation) error
	// Scan calls fn for each key in r in ascending order. The slices passed
	// to fn are only valid during the call. Returning ErrStopScan from fn
	// ends the scan without error.
	Scan(r Range, fn func(key, value []byte) error) error
	Close() error
}

// PrefixTable namespaces a shared Table by prefixing every key.
type PrefixTable struct {
	Table  Table
	Prefix []byte
}

// NewPrefixTable returns a PrefixTable for the named table. Names are
// terminated with a zero byte so that no table's keyspace contains
// another's.
func NewPrefixTable(t Table, name string) *PrefixTable {
	return &PrefixTable{Table: t, Prefix: append([]byte(name), 0)}
}

func (p *PrefixTable) key(k []byte) []byte {
	out := make([]byte, 0, len(p.Prefix)+len(k))
	return append(append(out, p.Prefix...), k...)
}

// Get implements Table.
func (p *PrefixTable) Get(key []byte) ([]byte, error) {
	return p.Table.Get(p.key(key))
}

// Write implements Table.
func (p *PrefixTable) Write(muts []Mutation) error {
	prefixed := make([]Mutation, len(muts))
	for i, m := range muts {
		prefixed[i] = Mutation{Key: p.key(m.Key), Value: m.Value, Delete: m.Delete}
	}
	return p.Table.Write(prefixed)
}

// Scan implements Table.
func (p *PrefixTable) Scan(r Range, fn func(key, value []byte) error) error {
	pr := Range{Start: p.key(r.Start)}
	if r.Limit != nil {
		pr.Limit = p.key(r.Limit)
	} else {
		pr.Limit = prefixLimit(p.Prefix)
	}
	return p.Table.Scan(pr, func(key, value []byte) error {
		return fn(key[len(p.Prefix):], value)
	})
}

// Close implements Table.
func (p *PrefixTable) Close() error {
	return p.Table.Close()
}

// OpenTableFunc opens the table described by p.
type OpenTableFunc func(p Params) (Table, error)

var (
	backendsMu sync.RWMutex
	backends   = make(map[string]OpenTableFunc)
)

// RegisterBackend makes a Table implementation available to OpenDataStore
// under name. It panics if name is registered twice.
func RegisterBackend(name string, open OpenTableFunc) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	if _, ok := backends[name]; ok {
		panic("geoquery: backend registered twice: " + name)
	}
	backends[name] = open
}

// Backends returns the sorted names of the registered backends.
func Backends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func openTable(p Params) (Table, error) {
	backendsMu.RLock()
	open, ok := backends[p.Backend]
	backendsMu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(ErrUnknownBackend, "'%s' (have %s)", p.Backend, strings.Join(Backends(), ", "))
	}
	t, err := open(p)
	return t, errors.Wrapf(err, "opening %s table '%s'", p.Backend, p.TableName)
}

// DefaultZookeepers is recorded when Params.Zookeepers is empty.
const DefaultZookeepers = "localhost:2181"

// Params are the connection parameters of a data store. Instance,
// Zookeepers, User and Password identify the store; Backend and Path choose
// the embedded Table implementation holding it.
type Params struct {
	Backend    string
	Path       string
	Instance   string
	Zookeepers string
	User       string
	Password   string
	TableName  string
}

// Validate checks that the required parameters are present and fills in
// defaults.
func (p *Params) Validate() error {
	var missing []string
	if p.Instance == "" {
		missing = append(missing, "instance")
	}
	if p.User == "" {
		missing = append(missing, "user")
	}
	if p.TableName == "" {
		missing = append(missing, "table name")
	}
	if len(missing) > 0 {
		return errors.Errorf("missing required parameters: %s", strings.Join(missing, ", "))
	}
	if strings.ContainsAny(p.TableName, "\x00/") {
		return errors.Errorf("invalid table name '%s'", p.TableName)
	}
	if p.Zookeepers == "" {
		p.Zookeepers = DefaultZookeepers
	}
	return nil
}
