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
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// AttributeType is the type of a feature attribute.
type AttributeType int

// Attribute types.
const (
	TypeString AttributeType = iota + 1
	TypeInteger
	TypeLong
	TypeFloat
	TypeDouble
	TypeBoolean
	TypeDate
	TypePoint
	TypeLineString
	TypePolygon
	TypeMultiPoint
	TypeMultiLineString
	TypeMultiPolygon
	TypeGeometry
)

var typeNames = map[AttributeType]string{
	TypeString:          "String",
	TypeInteger:         "Integer",
	TypeLong:            "Long",
	TypeFloat:           "Float",
	TypeDouble:          "Double",
	TypeBoolean:         "Boolean",
	TypeDate:            "Date",
	TypePoint:           "Point",
	TypeLineString:      "LineString",
	TypePolygon:         "Polygon",
	TypeMultiPoint:      "MultiPoint",
	TypeMultiLineString: "MultiLineString",
	TypeMultiPolygon:    "MultiPolygon",
	TypeGeometry:        "Geometry",
}

// typeAliases maps lower-cased spec type names to types. Fully qualified
// class names are accepted so that specs written for other tools parse.
var typeAliases = map[string]AttributeType{
	"string":             TypeString,
	"java.lang.string":   TypeString,
	"integer":            TypeInteger,
	"int":                TypeInteger,
	"java.lang.integer":  TypeInteger,
	"long":               TypeLong,
	"java.lang.long":     TypeLong,
	"float":              TypeFloat,
	"java.lang.float":    TypeFloat,
	"double":             TypeDouble,
	"java.lang.double":   TypeDouble,
	"boolean":            TypeBoolean,
	"bool":               TypeBoolean,
	"java.lang.boolean":  TypeBoolean,
	"date":               TypeDate,
	"java.util.date":     TypeDate,
	"timestamp":          TypeDate,
	"java.sql.timestamp": TypeDate,
	"point":              TypePoint,
	"linestring":         TypeLineString,
	"polygon":            TypePolygon,
	"multipoint":         TypeMultiPoint,
	"multilinestring":    TypeMultiLineString,
	"multipolygon":       TypeMultiPolygon,
	"geometry":           TypeGeometry,
}

func (t AttributeType) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return "AttributeType(" + strconv.Itoa(int(t)) + ")"
}

// IsGeometry reports whether t is one of the geometry types.
func (t AttributeType) IsGeometry() bool {
	return t >= TypePoint && t <= TypeGeometry
}

// ParseAttributeType parses a type name as written in a spec string.
func ParseAttributeType(s string) (AttributeType, error) {
	if t, ok := typeAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return t, nil
	}
	return 0, errors.Errorf("unknown attribute type '%s'", s)
}

// StartTimeKey is the user data key naming the Date attribute used as the
// indexed start time.
const StartTimeKey = "geomesa.index.dtg"

// AttributeDescriptor describes one attribute of a FeatureType.
type AttributeDescriptor struct {
	Name    string
	Type    AttributeType
	SRID    int
	Default bool // default geometry
}

// Spec returns the descriptor in spec form, e.g. "*Where:Point:srid=4326".
func (a AttributeDescriptor) Spec() string {
	s := a.Name + ":" + a.Type.String()
	if a.Default {
		s = "*" + s
	}
	if a.SRID != 0 {
		s += ":srid=" + strconv.Itoa(a.SRID)
	}
	return s
}

// FeatureType is a named list of attributes with optional user data.
type FeatureType struct {
	Name       string
	Attributes []AttributeDescriptor
	UserData   map[string]string
}

// ParseFeatureType builds a FeatureType from a spec string of comma
// separated "name:Type[:srid=N]" entries. A leading '*' marks the default
// geometry; when none is marked, the first geometry attribute is the
// default.
func ParseFeatureType(name, spec string) (*FeatureType, error) {
	if err := validateTypeName(name); err != nil {
		return nil, err
	}
	ft := &FeatureType{Name: name, UserData: make(map[string]string)}
	if strings.TrimSpace(spec) == "" {
		return nil, errors.New("empty spec")
	}
	seen := make(map[string]struct{})
	for _, entry := range strings.Split(spec, ",") {
		a, err := parseDescriptor(strings.TrimSpace(entry))
		if err != nil {
			return nil, errors.Wrapf(err, "parsing '%s'", entry)
		}
		if _, ok := seen[a.Name]; ok {
			return nil, errors.Errorf("duplicate attribute '%s'", a.Name)
		}
		seen[a.Name] = struct{}{}
		ft.Attributes = append(ft.Attributes, a)
	}
	if err := ft.resolveDefaultGeometry(); err != nil {
		return nil, err
	}
	return ft, nil
}

func parseDescriptor(entry string) (AttributeDescriptor, error) {
	var a AttributeDescriptor
	if strings.HasPrefix(entry, "*") {
		a.Default = true
		entry = entry[1:]
	}
	parts := strings.Split(entry, ":")
	a.Name = strings.TrimSpace(parts[0])
	if a.Name == "" {
		return a, errors.New("empty attribute name")
	}
	if strings.ContainsAny(a.Name, "\x00|=") {
		return a, errors.Errorf("invalid attribute name '%s'", a.Name)
	}
	a.Type = TypeString
	if len(parts) > 1 {
		t, err := ParseAttributeType(parts[1])
		if err != nil {
			return a, err
		}
		a.Type = t
	}
	for _, opt := range parts[min(2, len(parts)):] {
		kv := strings.SplitN(strings.TrimSpace(opt), "=", 2)
		if len(kv) != 2 || strings.ToLower(kv[0]) != "srid" {
			return a, errors.Errorf("unknown attribute option '%s'", opt)
		}
		srid, err := strconv.Atoi(kv[1])
		if err != nil {
			return a, errors.Wrap(err, "parsing srid")
		}
		if !a.Type.IsGeometry() {
			return a, errors.Errorf("srid on non-geometry attribute '%s'", a.Name)
		}
		a.SRID = srid
	}
	if a.Default && !a.Type.IsGeometry() {
		return a, errors.Errorf("default geometry '%s' is not a geometry", a.Name)
	}
	return a, nil
}

func (ft *FeatureType) resolveDefaultGeometry() error {
	def := -1
	for i, a := range ft.Attributes {
		if !a.Default {
			continue
		}
		if def >= 0 {
			return errors.Errorf("multiple default geometries: '%s' and '%s'", ft.Attributes[def].Name, a.Name)
		}
		def = i
	}
	if def >= 0 {
		return nil
	}
	for i, a := range ft.Attributes {
		if a.Type.IsGeometry() {
			ft.Attributes[i].Default = true
			return nil
		}
	}
	return nil
}

func validateTypeName(name string) error {
	if name == "" {
		return errors.New("empty feature type name")
	}
	if strings.HasPrefix(name, "~") || strings.ContainsAny(name, "\x00") {
		return errors.Errorf("invalid feature type name '%s'", name)
	}
	return nil
}

// Spec encodes the attributes back into a spec string. Parsing the result
// yields an equal FeatureType (user data aside).
func (ft *FeatureType) Spec() string {
	specs := make([]string, len(ft.Attributes))
	for i, a := range ft.Attributes {
		specs[i] = a.Spec()
	}
	return strings.Join(specs, ",")
}

// Index returns the position of the named attribute, or -1.
func (ft *FeatureType) Index(name string) int {
	for i, a := range ft.Attributes {
		if a.Name == name {
			return i
		}
	}
	return -1
}

// Descriptor returns the named attribute's descriptor, or nil.
func (ft *FeatureType) Descriptor(name string) *AttributeDescriptor {
	if i := ft.Index(name); i >= 0 {
		return &ft.Attributes[i]
	}
	return nil
}

// DefaultGeometry returns the default geometry descriptor, or nil if the
// type has no geometry.
func (ft *FeatureType) DefaultGeometry() *AttributeDescriptor {
	for i, a := range ft.Attributes {
		if a.Default {
			return &ft.Attributes[i]
		}
	}
	return nil
}

// SetStartTime records attr as the indexed start time. It must name a Date
// attribute.
func (ft *FeatureType) SetStartTime(attr string) error {
	a := ft.Descriptor(attr)
	if a == nil {
		return errors.Errorf("start time attribute '%s' not in %s", attr, ft.Name)
	}
	if a.Type != TypeDate {
		return errors.Errorf("start time attribute '%s' is %s, not Date", attr, a.Type)
	}
	if ft.UserData == nil {
		ft.UserData = make(map[string]string)
	}
	ft.UserData[StartTimeKey] = attr
	return nil
}

// StartTime returns the indexed start-time attribute name, or "".
func (ft *FeatureType) StartTime() string {
	return ft.UserData[StartTimeKey]
}

// Equal reports whether ft and other have the same name, attributes and
// user data.
func (ft *FeatureType) Equal(other *FeatureType) bool {
	if ft.Name != other.Name || ft.Spec() != other.Spec() || len(ft.UserData) != len(other.UserData) {
		return false
	}
	for k, v := range ft.UserData {
		if ov, ok := other.UserData[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

func (ft *FeatureType) String() string {
	s := ft.Name + ":" + ft.Spec()
	if len(ft.UserData) == 0 {
		return s
	}
	keys := make([]string, 0, len(ft.UserData))
	for k := range ft.UserData {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for i, k := range keys {
		keys[i] = k + "=" + ft.UserData[k]
	}
	return s + ";" + strings.Join(keys, ",")
}
