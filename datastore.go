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
	"context"
	"sync"

	"github.com/pilosa/geoquery/cql"
	"github.com/pilosa/pilosa/logger"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

// DataStore manages the feature types held in one table.
type DataStore interface {
	CreateSchema(ctx context.Context, ft *FeatureType) error
	GetSchema(ctx context.Context, typeName string) (*FeatureType, error)
	TypeNames(ctx context.Context) ([]string, error)
	RemoveSchema(ctx context.Context, typeName string) error
	GetFeatureSource(ctx context.Context, typeName string) (FeatureStore, error)
	Close() error
}

// FeatureSource answers queries over the features of one type.
type FeatureSource interface {
	Schema() *FeatureType
	GetFeatures(ctx context.Context, q Query) (FeatureIterator, error)
	Count(ctx context.Context, q Query) (int, error)
}

// FeatureStore is a FeatureSource which can also be written.
type FeatureStore interface {
	FeatureSource
	// AddFeatures writes features, generating IDs for those without one,
	// and returns the IDs in order. A feature whose ID already exists
	// replaces the stored one.
	AddFeatures(ctx context.Context, features []*Feature) ([]string, error)
	// RemoveFeatures deletes the features matching filter and returns how
	// many were removed.
	RemoveFeatures(ctx context.Context, filter cql.Filter) (int, error)
}

// Store is the DataStore implementation over a Table.
type Store struct {
	params Params
	table  Table
	log    logger.Logger
	cost   int

	mu      sync.RWMutex
	schemas map[string]*schemaEntry

	// writeMu serializes feature writes, which read old index entries
	// before replacing them.
	writeMu sync.Mutex
}

type schemaEntry struct {
	ft    *FeatureType
	codec *featureCodec
}

var _ DataStore = &Store{}

// StoreOption is a functional option for OpenDataStore.
type StoreOption func(s *Store) error

// OptStoreLogger sets the store's logger.
func OptStoreLogger(l logger.Logger) StoreOption {
	return func(s *Store) error {
		s.log = l
		return nil
	}
}

// OptStoreTable makes the store use t instead of opening a table through
// the backend registry.
func OptStoreTable(t Table) StoreOption {
	return func(s *Store) error {
		s.table = t
		return nil
	}
}

// OptStorePasswordCost sets the bcrypt cost used when recording a new
// user's password.
func OptStorePasswordCost(cost int) StoreOption {
	return func(s *Store) error {
		if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
			return errors.Errorf("bcrypt cost %d out of range [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
		}
		s.cost = cost
		return nil
	}
}

// OpenDataStore validates p, opens its table and authenticates its user.
func OpenDataStore(p Params, opts ...StoreOption) (*Store, error) {
	if err := p.Validate(); err != nil {
		return nil, errors.Wrap(err, "validating parameters")
	}
	s := &Store{
		params:  p,
		log:     logger.NopLogger,
		cost:    bcrypt.DefaultCost,
		schemas: make(map[string]*schemaEntry),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, errors.Wrap(err, "applying option")
		}
	}
	if s.table == nil {
		t, err := openTable(p)
		if err != nil {
			return nil, err
		}
		s.table = t
	}
	if err := authenticate(s.table, p.User, p.Password, s.cost); err != nil {
		s.table.Close()
		return nil, err
	}
	s.log.Printf("opened table '%s' on instance '%s' (zookeepers %s) as %s", p.TableName, p.Instance, p.Zookeepers, p.User)
	return s, nil
}

// Params returns the validated connection parameters.
func (s *Store) Params() Params { return s.params }

// CreateSchema stores ft. Creating a type that already exists with the same
// definition does nothing.
func (s *Store) CreateSchema(ctx context.Context, ft *FeatureType) error {
	if err := validateTypeName(ft.Name); err != nil {
		return err
	}
	if st := ft.StartTime(); st != "" {
		if a := ft.Descriptor(st); a == nil || a.Type != TypeDate {
			return errors.Errorf("start time '%s' is not a Date attribute of %s", st, ft.Name)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, err := s.loadSchema(ft.Name)
	switch {
	case err == nil:
		if existing.ft.Equal(ft) {
			return nil
		}
		return errors.Wrapf(ErrSchemaExists, "%s: have '%s', got '%s'", ft.Name, existing.ft, ft)
	case errors.Cause(err) != ErrSchemaNotFound:
		return err
	}
	val, err := encodeSchema(ft)
	if err != nil {
		return err
	}
	// Store and cache a private copy so later changes to ft have no effect.
	entry, err := newSchemaEntry(ft.Name, val)
	if err != nil {
		return err
	}
	if err := s.table.Write([]Mutation{{Key: schemaKey(ft.Name), Value: val}}); err != nil {
		return errors.Wrap(err, "writing schema")
	}
	s.schemas[ft.Name] = entry
	s.log.Printf("created schema %s", entry.ft)
	return nil
}

func newSchemaEntry(name string, val []byte) (*schemaEntry, error) {
	ft, err := decodeSchema(name, val)
	if err != nil {
		return nil, err
	}
	codec, err := newFeatureCodec(ft)
	if err != nil {
		return nil, err
	}
	return &schemaEntry{ft: ft, codec: codec}, nil
}

// loadSchema must be called with s.mu held.
func (s *Store) loadSchema(name string) (*schemaEntry, error) {
	if e, ok := s.schemas[name]; ok {
		return e, nil
	}
	val, err := s.table.Get(schemaKey(name))
	if err != nil {
		return nil, errors.Wrap(err, "reading schema")
	}
	if val == nil {
		return nil, errors.Wrap(ErrSchemaNotFound, name)
	}
	e, err := newSchemaEntry(name, val)
	if err != nil {
		return nil, err
	}
	s.schemas[name] = e
	return e, nil
}

func (s *Store) schema(name string) (*schemaEntry, error) {
	s.mu.RLock()
	e, ok := s.schemas[name]
	s.mu.RUnlock()
	if ok {
		return e, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadSchema(name)
}

// GetSchema returns the named feature type.
func (s *Store) GetSchema(ctx context.Context, typeName string) (*FeatureType, error) {
	e, err := s.schema(typeName)
	if err != nil {
		return nil, err
	}
	return e.ft, nil
}

// TypeNames returns the names of all stored feature types in order.
func (s *Store) TypeNames(ctx context.Context) ([]string, error) {
	var names []string
	err := s.table.Scan(PrefixRange(schemaPrefix), func(key, _ []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		names = append(names, string(key[len(schemaPrefix):]))
		return nil
	})
	return names, errors.Wrap(err, "scanning schemas")
}

// RemoveSchema deletes a feature type along with all of its features.
func (s *Store) RemoveSchema(ctx context.Context, typeName string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.loadSchema(typeName); err != nil {
		return err
	}
	muts := []Mutation{{Key: schemaKey(typeName), Delete: true}}
	for _, prefix := range [][]byte{recordPrefix(typeName), indexPrefix(typeName)} {
		err := s.table.Scan(PrefixRange(prefix), func(key, _ []byte) error {
			muts = append(muts, Mutation{Key: append([]byte(nil), key...), Delete: true})
			return ctx.Err()
		})
		if err != nil {
			return errors.Wrapf(err, "scanning %s", typeName)
		}
	}
	if err := s.table.Write(muts); err != nil {
		return errors.Wrapf(err, "removing %s", typeName)
	}
	delete(s.schemas, typeName)
	s.log.Printf("removed schema %s (%d keys)", typeName, len(muts))
	return nil
}

// GetFeatureSource returns the feature store for the named type.
func (s *Store) GetFeatureSource(ctx context.Context, typeName string) (FeatureStore, error) {
	e, err := s.schema(typeName)
	if err != nil {
		return nil, err
	}
	return &typeStore{store: s, entry: e}, nil
}

// Close closes the underlying table.
func (s *Store) Close() error {
	return errors.Wrap(s.table.Close(), "closing table")
}
