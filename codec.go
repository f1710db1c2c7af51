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
	"encoding/json"
	"strconv"
	"time"

	"github.com/linkedin/goavro/v2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/pkg/errors"
)

// featureCodec serializes features of one FeatureType as Avro binary
// records. Attribute i is stored in field "a<i>" as a nullable union;
// dates are epoch milliseconds and geometries WKB.
type featureCodec struct {
	ft    *FeatureType
	codec *goavro.Codec
}

func avroType(t AttributeType) string {
	switch t {
	case TypeString:
		return "string"
	case TypeInteger:
		return "int"
	case TypeLong, TypeDate:
		return "long"
	case TypeFloat:
		return "float"
	case TypeDouble:
		return "double"
	case TypeBoolean:
		return "boolean"
	}
	return "bytes"
}

func fieldName(i int) string { return "a" + strconv.Itoa(i) }

func newFeatureCodec(ft *FeatureType) (*featureCodec, error) {
	fields := []map[string]interface{}{{"name": "fid", "type": "string"}}
	for i, a := range ft.Attributes {
		fields = append(fields, map[string]interface{}{
			"name":    fieldName(i),
			"type":    []string{"null", avroType(a.Type)},
			"default": nil,
			"doc":     a.Name,
		})
	}
	schema, err := json.Marshal(map[string]interface{}{
		"type":   "record",
		"name":   "feature",
		"fields": fields,
	})
	if err != nil {
		return nil, errors.Wrap(err, "marshaling avro schema")
	}
	codec, err := goavro.NewCodec(string(schema))
	if err != nil {
		return nil, errors.Wrapf(err, "building avro codec for %s", ft.Name)
	}
	return &featureCodec{ft: ft, codec: codec}, nil
}

func (c *featureCodec) encode(f *Feature) ([]byte, error) {
	native := map[string]interface{}{"fid": f.ID}
	for i, a := range c.ft.Attributes {
		v := f.Values[i]
		if v == nil {
			native[fieldName(i)] = nil
			continue
		}
		switch vt := v.(type) {
		case time.Time:
			v = vt.UnixMilli()
		case orb.Geometry:
			b, err := wkb.Marshal(vt)
			if err != nil {
				return nil, errors.Wrapf(err, "encoding %s as WKB", a.Name)
			}
			v = b
		}
		native[fieldName(i)] = goavro.Union(avroType(a.Type), v)
	}
	buf, err := c.codec.BinaryFromNative(nil, native)
	return buf, errors.Wrapf(err, "encoding feature '%s'", f.ID)
}

func (c *featureCodec) decode(buf []byte) (*Feature, error) {
	native, _, err := c.codec.NativeFromBinary(buf)
	if err != nil {
		return nil, errors.Wrap(err, "decoding avro record")
	}
	rec, ok := native.(map[string]interface{})
	if !ok {
		return nil, errors.Errorf("unexpected avro datum %T", native)
	}
	fid, _ := rec["fid"].(string)
	f := NewFeature(c.ft, fid)
	for i, a := range c.ft.Attributes {
		u, ok := rec[fieldName(i)].(map[string]interface{})
		if !ok {
			continue
		}
		v := u[avroType(a.Type)]
		switch {
		case a.Type == TypeDate:
			ms, _ := v.(int64)
			v = time.UnixMilli(ms).UTC()
		case a.Type.IsGeometry():
			b, _ := v.([]byte)
			g, err := wkb.Unmarshal(b)
			if err != nil {
				return nil, errors.Wrapf(err, "decoding %s of '%s'", a.Name, fid)
			}
			v = g
		}
		f.Values[i] = v
	}
	return f, nil
}

// schemaRecord is the catalog value stored for each feature type.
type schemaRecord struct {
	Spec     string            `json:"spec"`
	UserData map[string]string `json:"userData,omitempty"`
}

func encodeSchema(ft *FeatureType) ([]byte, error) {
	b, err := json.Marshal(schemaRecord{Spec: ft.Spec(), UserData: ft.UserData})
	return b, errors.Wrap(err, "encoding schema")
}

func decodeSchema(name string, b []byte) (*FeatureType, error) {
	var rec schemaRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, errors.Wrapf(err, "decoding schema %s", name)
	}
	ft, err := ParseFeatureType(name, rec.Spec)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing stored schema %s", name)
	}
	for k, v := range rec.UserData {
		ft.UserData[k] = v
	}
	return ft, nil
}
