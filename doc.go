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

// Package geoquery is a small spatio-temporal feature store, and the home of
// the query tutorial built on top of it. It holds feature types (schemas of
// named, typed attributes including geometries) and the features of those
// types, and answers ECQL queries over them.
//
// The moving parts, from the bottom up:
//
// 1. Table
//
//    Everything is stored in an ordered key/value Table. Several embedded
//    implementations register themselves as backends (see the leveldb,
//    boltdb and badger sub-packages); Params.Backend chooses one. A single
//    table can hold many feature types alongside the schema catalog and the
//    credentials of the users who have connected to it.
//
// 2. DataStore
//
//    OpenDataStore validates the connection parameters, opens the table and
//    authenticates the user. The DataStore creates, lists and removes
//    feature types, and hands out a FeatureStore per type.
//
// 3. FeatureStore
//
//    Features are written as Avro records keyed by feature ID, and each is
//    indexed under the geohash of its default geometry and the value of its
//    start-time attribute. A query is planned by pulling a bounding box and
//    a time interval out of the top-level conjunction of its filter; the
//    index entries covering those bounds give candidate features, which are
//    then read and checked against the full filter.
//
// 4. Transform
//
//    A query may list properties. Each is either an attribute to keep or a
//    "name=expression" definition computing a new attribute, and the results
//    are features of the derived type.
//
// The tutorial package drives all of this against the synthetic
// QueryTutorial schema, and the gdelt package loads GDELT events into it.
package geoquery
