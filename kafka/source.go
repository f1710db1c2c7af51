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

package kafka

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/Shopify/sarama"
	cluster "github.com/bsm/sarama-cluster"
	"github.com/linkedin/goavro/v2"
	"github.com/pilosa/pilosa/logger"
	"github.com/pkg/errors"
)

// Source implements the geoquery.Source interface using kafka as a data
// source. Messages are decoded according to Type: "json" messages become
// map[string]interface{}, "raw" messages are returned as
// *sarama.ConsumerMessage.
type Source struct {
	Hosts   []string
	Topics  []string
	Group   string
	Type    string
	MaxMsgs int
	Log     logger.Logger

	mu      sync.Mutex
	numMsgs int

	consumer *cluster.Consumer
	marker   offsetMarker
	messages <-chan *sarama.ConsumerMessage
}

type offsetMarker interface {
	MarkOffset(msg *sarama.ConsumerMessage, metadata string)
}

// NewSource gets a new Source
func NewSource() *Source {
	return &Source{
		Hosts:  []string{"localhost:9092"},
		Topics: []string{"test"},
		Group:  "group0",
		Type:   "json",
		Log:    logger.NopLogger,
	}
}

// Record returns the value of the next kafka message.
func (s *Source) Record() (interface{}, error) {
	if s.MaxMsgs > 0 {
		s.mu.Lock()
		s.numMsgs++
		n := s.numMsgs
		s.mu.Unlock()
		if n > s.MaxMsgs {
			return nil, io.EOF
		}
	}
	msg, ok := <-s.messages
	if !ok {
		return nil, io.EOF
	}
	var ret interface{}
	switch s.Type {
	case "json":
		parsed := make(map[string]interface{})
		err := json.Unmarshal(msg.Value, &parsed)
		if err != nil {
			return nil, errors.Wrap(err, "unmarshaling json")
		}
		ret = parsed
	case "raw":
		ret = msg
	default:
		return nil, errors.Errorf("unsupported kafka message type: '%v'", s.Type)
	}
	s.marker.MarkOffset(msg, "") // mark message as processed
	return ret, nil
}

// Open initializes the kafka source.
func (s *Source) Open() error {
	// init (custom) config, enable errors and notifications
	sarama.Logger = log.New(ioutil.Discard, "", 0)
	config := cluster.NewConfig()
	config.Config.Version = sarama.V0_10_0_0
	config.Consumer.Return.Errors = true
	config.Consumer.Offsets.Initial = sarama.OffsetOldest
	config.Group.Return.Notifications = true

	var err error
	s.consumer, err = cluster.NewConsumer(s.Hosts, s.Group, s.Topics, config)
	if err != nil {
		return errors.Wrap(err, "getting new consumer")
	}
	s.marker = s.consumer
	s.messages = s.consumer.Messages()

	// consume errors
	go func() {
		for err := range s.consumer.Errors() {
			s.Log.Printf("kafka consumer error: %v", err)
		}
	}()

	// consume notifications
	go func() {
		for ntf := range s.consumer.Notifications() {
			s.Log.Debugf("rebalanced: %+v", ntf)
		}
	}()
	return nil
}

// Close closes the underlying kafka consumer.
func (s *Source) Close() error {
	if s.consumer == nil {
		return nil
	}
	err := s.consumer.Close()
	return errors.Wrap(err, "closing kafka consumer")
}

// ConfluentSource implements geoquery.Source using Kafka and the Confluent
// schema registry. Message values are Avro with the registry's 5 byte
// prefix (magic byte 0, 4 byte schema id).
type ConfluentSource struct {
	Source
	RegistryURL string
	lock        sync.RWMutex
	cache       map[int32]*goavro.Codec
}

// NewConfluentSource returns a new ConfluentSource.
func NewConfluentSource() *ConfluentSource {
	return &ConfluentSource{
		Source: Source{
			Hosts:  []string{"localhost:9092"},
			Topics: []string{"test"},
			Group:  "group0",
			Type:   "raw",
			Log:    logger.NopLogger,
		},
		cache: make(map[int32]*goavro.Codec),
	}
}

// Record returns the next value from kafka decoded as a
// map[string]interface{}.
func (s *ConfluentSource) Record() (interface{}, error) {
	rec, err := s.Source.Record()
	if err != nil {
		return rec, err
	}
	msg, ok := rec.(*sarama.ConsumerMessage)
	if !ok {
		return rec, errors.Errorf("record is not a raw kafka record, but a %T", rec)
	}
	return s.decodeAvroValueWithSchemaRegistry(msg.Value)
}

func (s *ConfluentSource) decodeAvroValueWithSchemaRegistry(val []byte) (map[string]interface{}, error) {
	if len(val) <= 5 || val[0] != 0 {
		return nil, errors.Errorf("unexpected magic byte or length in avro kafka value, should be 0x00, but got 0x%.8x", val)
	}
	id := int32(binary.BigEndian.Uint32(val[1:]))
	codec, err := s.getCodec(id)
	if err != nil {
		return nil, errors.Wrap(err, "getting avro codec")
	}
	native, _, err := codec.NativeFromBinary(val[5:])
	if err != nil {
		return nil, errors.Wrap(err, "decoding avro record")
	}
	rec, ok := native.(map[string]interface{})
	if !ok {
		return nil, errors.Errorf("avro value is a %T, not a record", native)
	}
	return unwrapUnions(rec), nil
}

// The Schema type is an object produced by the schema registry.
type Schema struct {
	Schema  string `json:"schema"`  // The actual AVRO schema
	Subject string `json:"subject"` // Subject where the schema is registered for
	Version int    `json:"version"` // Version within this subject
	ID      int    `json:"id"`      // Registry's unique id
}

func (s *ConfluentSource) getCodec(id int32) (rcodec *goavro.Codec, rerr error) {
	s.lock.RLock()
	if codec, ok := s.cache[id]; ok {
		s.lock.RUnlock()
		return codec, nil
	}
	s.lock.RUnlock()
	s.lock.Lock()
	defer s.lock.Unlock()
	r, err := http.Get(fmt.Sprintf("http://%s/schemas/ids/%d", s.RegistryURL, id))
	if err != nil {
		return nil, errors.Wrap(err, "getting schema from registry")
	}
	defer func() {
		if err := r.Body.Close(); err != nil && rerr == nil {
			rcodec, rerr = nil, errors.Wrap(err, "closing registry response")
		}
	}()
	if r.StatusCode >= 300 {
		bod, err := ioutil.ReadAll(r.Body)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to get schema, code: %d, no body", r.StatusCode)
		}
		return nil, errors.Errorf("failed to get schema, code: %d, resp: %s", r.StatusCode, bod)
	}
	schema := &Schema{}
	if err := json.NewDecoder(r.Body).Decode(schema); err != nil {
		return nil, errors.Wrap(err, "decoding schema from registry")
	}
	codec, err := goavro.NewCodec(schema.Schema)
	if err != nil {
		return nil, errors.Wrap(err, "parsing schema")
	}
	s.cache[id] = codec
	return codec, nil
}

var avroPrimitives = map[string]struct{}{
	"string": {}, "bytes": {}, "int": {}, "long": {},
	"float": {}, "double": {}, "boolean": {},
}

// unwrapUnions replaces goavro's {"type": value} union encoding of
// primitives and namespaced records with the value itself.
func unwrapUnions(rec map[string]interface{}) map[string]interface{} {
	for k, v := range rec {
		rec[k] = unwrapValue(v)
	}
	return rec
}

func unwrapValue(v interface{}) interface{} {
	m, ok := v.(map[string]interface{})
	if !ok {
		return v
	}
	if len(m) == 1 {
		for typ, inner := range m {
			if _, prim := avroPrimitives[typ]; prim {
				return inner
			}
			if sub, ok := inner.(map[string]interface{}); ok && strings.Contains(typ, ".") {
				return unwrapUnions(sub)
			}
		}
	}
	return unwrapUnions(m)
}
