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

// Package boltdb provides a geoquery.Table using boltdb. Each instance is a
// file under Params.Path and each table is a bucket in that file.
package boltdb

import (
	"bytes"
	"os"
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"
	"github.com/pilosa/geoquery"
	"github.com/pkg/errors"
)

// Backend is the name this package registers under.
const Backend = "boltdb"

func init() {
	geoquery.RegisterBackend(Backend, Open)
}

// Table is a geoquery.Table stored in one bolt bucket.
type Table struct {
	Db     *bolt.DB
	bucket []byte
}

var _ geoquery.Table = &Table{}

// Open opens the bucket for p.TableName in the file for p.Instance.
func Open(p geoquery.Params) (geoquery.Table, error) {
	if p.Path == "" {
		return nil, errors.New("the boltdb backend requires a path")
	}
	if err := os.MkdirAll(p.Path, 0700); err != nil {
		return nil, errors.Wrap(err, "making directory")
	}
	return NewTable(filepath.Join(p.Path, p.Instance+".db"), p.TableName)
}

// NewTable opens filename, creating the named bucket if needed.
func NewTable(filename, bucket string) (*Table, error) {
	db, err := bolt.Open(filename, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "opening db file '%v'", filename)
	}
	t := &Table{Db: db, bucket: []byte(bucket)}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(t.bucket)
		return errors.Wrapf(err, "creating %s bucket", bucket)
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "ensuring bucket existence")
	}
	return t, nil
}

// Get implements geoquery.Table.
func (t *Table) Get(key []byte) (val []byte, err error) {
	err = t.Db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(t.bucket).Get(key); v != nil {
			val = append([]byte{}, v...)
		}
		return nil
	})
	return val, errors.Wrap(err, "reading bucket")
}

// Write implements geoquery.Table.
func (t *Table) Write(muts []geoquery.Mutation) error {
	err := t.Db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(t.bucket)
		for _, m := range muts {
			var err error
			if m.Delete {
				err = b.Delete(m.Key)
			} else {
				err = b.Put(m.Key, m.Value)
			}
			if err != nil {
				return errors.Wrapf(err, "writing key %q", m.Key)
			}
		}
		return nil
	})
	return errors.Wrap(err, "updating bucket")
}

// Scan implements geoquery.Table.
func (t *Table) Scan(r geoquery.Range, fn func(key, value []byte) error) error {
	err := t.Db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(t.bucket).Cursor()
		for k, v := c.Seek(r.Start); k != nil; k, v = c.Next() {
			if r.Limit != nil && bytes.Compare(k, r.Limit) >= 0 {
				return nil
			}
			if err := fn(k, v); err != nil {
				return err
			}
		}
		return nil
	})
	if err == geoquery.ErrStopScan {
		return nil
	}
	return err
}

// Close syncs and closes the underlying boltdb.
func (t *Table) Close() error {
	err := t.Db.Sync()
	if err != nil {
		return errors.Wrap(err, "syncing db")
	}
	return t.Db.Close()
}
