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

// Package leveldb provides a geoquery.Table backed by goleveldb. All tables
// of an instance share one database, either on disk under Params.Path or, if
// Path is empty, in memory.
package leveldb

import (
	"os"
	"path/filepath"

	"github.com/pilosa/geoquery"
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Backend is the name this package registers under.
const Backend = "leveldb"

func init() {
	geoquery.RegisterBackend(Backend, Open)
}

// Open opens the table named by p.TableName in the database for p.Instance.
func Open(p geoquery.Params) (geoquery.Table, error) {
	var (
		db  *DB
		err error
	)
	if p.Path == "" {
		db, err = NewMemDB()
	} else {
		db, err = OpenDB(filepath.Join(p.Path, p.Instance))
	}
	if err != nil {
		return nil, err
	}
	return geoquery.NewPrefixTable(db, p.TableName), nil
}

// DB is a geoquery.Table over a whole leveldb database.
type DB struct {
	db *leveldb.DB
}

var _ geoquery.Table = &DB{}

// OpenDB opens or creates the database in dirname.
func OpenDB(dirname string) (*DB, error) {
	if err := os.MkdirAll(dirname, 0700); err != nil {
		return nil, errors.Wrap(err, "making directory")
	}
	db, err := leveldb.OpenFile(dirname, &opt.Options{})
	if err != nil {
		return nil, errors.Wrapf(err, "opening leveldb at %v", dirname)
	}
	return &DB{db: db}, nil
}

// NewMemDB returns an empty database held in memory.
func NewMemDB() (*DB, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "opening in-memory leveldb")
	}
	return &DB{db: db}, nil
}

// Get implements geoquery.Table.
func (d *DB) Get(key []byte) ([]byte, error) {
	val, err := d.db.Get(key, &opt.ReadOptions{})
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	return val, errors.Wrap(err, "reading leveldb")
}

// Write implements geoquery.Table.
func (d *DB) Write(muts []geoquery.Mutation) error {
	batch := new(leveldb.Batch)
	for _, m := range muts {
		if m.Delete {
			batch.Delete(m.Key)
		} else {
			batch.Put(m.Key, m.Value)
		}
	}
	return errors.Wrap(d.db.Write(batch, &opt.WriteOptions{}), "writing batch")
}

// Scan implements geoquery.Table.
func (d *DB) Scan(r geoquery.Range, fn func(key, value []byte) error) error {
	iter := d.db.NewIterator(&util.Range{Start: r.Start, Limit: r.Limit}, nil)
	defer iter.Release()
	for iter.Next() {
		if err := fn(iter.Key(), iter.Value()); err != nil {
			if err == geoquery.ErrStopScan {
				return nil
			}
			return err
		}
	}
	return errors.Wrap(iter.Error(), "iterating leveldb")
}

// Close closes the database.
func (d *DB) Close() error {
	return errors.Wrap(d.db.Close(), "closing leveldb")
}
