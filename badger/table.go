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

// Package badger provides a geoquery.Table backed by badger. All tables of
// an instance share one database under Params.Path, or in memory when Path
// is empty.
package badger

import (
	"bytes"
	"path/filepath"

	"github.com/dgraph-io/badger/v4"
	"github.com/pilosa/geoquery"
	"github.com/pkg/errors"
)

// Backend is the name this package registers under.
const Backend = "badger"

func init() {
	geoquery.RegisterBackend(Backend, Open)
}

// Open opens the table named by p.TableName in the database for p.Instance.
func Open(p geoquery.Params) (geoquery.Table, error) {
	dir := ""
	if p.Path != "" {
		dir = filepath.Join(p.Path, p.Instance)
	}
	db, err := OpenDB(dir)
	if err != nil {
		return nil, err
	}
	return geoquery.NewPrefixTable(db, p.TableName), nil
}

// DB is a geoquery.Table over a whole badger database.
type DB struct {
	db *badger.DB
}

var _ geoquery.Table = &DB{}

// OpenDB opens the database in dir, or an in-memory one if dir is empty.
func OpenDB(dir string) (*DB, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "opening badger at '%s'", dir)
	}
	return &DB{db: db}, nil
}

// Get implements geoquery.Table.
func (d *DB) Get(key []byte) (val []byte, err error) {
	err = d.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return nil
		} else if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	return val, errors.Wrap(err, "reading badger")
}

// Write implements geoquery.Table. All mutations are applied in a single
// transaction, so a batch too large for one transaction fails as a whole.
func (d *DB) Write(muts []geoquery.Mutation) error {
	err := d.db.Update(func(txn *badger.Txn) error {
		for _, m := range muts {
			var err error
			if m.Delete {
				err = txn.Delete(m.Key)
			} else {
				err = txn.Set(m.Key, m.Value)
			}
			if err != nil {
				return errors.Wrapf(err, "writing key %q", m.Key)
			}
		}
		return nil
	})
	return errors.Wrap(err, "updating badger")
}

// Scan implements geoquery.Table.
func (d *DB) Scan(r geoquery.Range, fn func(key, value []byte) error) error {
	err := d.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(r.Start); it.Valid(); it.Next() {
			item := it.Item()
			key := item.Key()
			if r.Limit != nil && bytes.Compare(key, r.Limit) >= 0 {
				return nil
			}
			err := item.Value(func(val []byte) error {
				return fn(key, val)
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Cause(err) == geoquery.ErrStopScan {
		return nil
	}
	return err
}

// Close closes the database.
func (d *DB) Close() error {
	return errors.Wrap(d.db.Close(), "closing badger")
}
