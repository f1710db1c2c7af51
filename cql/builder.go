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

package cql

import (
	"strings"
	"time"

	"github.com/paulmach/orb"
)

// The builders below assemble CQL text. Their output always parses with
// ParseFilter.

// BBoxText returns a bounding-box predicate on attr.
func BBoxText(attr string, minX, minY, maxX, maxY float64) string {
	return BBox{Property: attr, Bound: boundOf(minX, minY, maxX, maxY)}.String()
}

// DuringText returns a predicate matching attr strictly between from and
// to.
func DuringText(attr string, from, to time.Time) string {
	return Temporal{Op: During, Expr: Property{attr}, From: from.UTC(), To: to.UTC()}.String()
}

// EqualsText returns an equality predicate between attr and a literal
// value.
func EqualsText(attr string, value interface{}) string {
	return Compare{Op: "=", Left: Property{attr}, Right: literalOf(value)}.String()
}

// AndText conjoins predicates, parenthesizing any that are not already a
// single call or group.
func AndText(parts ...string) string {
	return joinText(parts, " AND ")
}

// OrText disjoins predicates, parenthesizing any that are not already a
// single call or group.
func OrText(parts ...string) string {
	return joinText(parts, " OR ")
}

// NotText negates a predicate.
func NotText(part string) string {
	return "NOT (" + part + ")"
}

func joinText(parts []string, sep string) string {
	grouped := make([]string, len(parts))
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if needsGroup(p) {
			p = "(" + p + ")"
		}
		grouped[i] = p
	}
	return strings.Join(grouped, sep)
}

// needsGroup reports whether s must be wrapped in parentheses to act as a
// single operand.
func needsGroup(s string) bool {
	if strings.EqualFold(s, "INCLUDE") || strings.EqualFold(s, "EXCLUDE") {
		return false
	}
	open := strings.IndexByte(s, '(')
	if open < 0 || !strings.HasSuffix(s, ")") {
		return true
	}
	name := s[:open]
	if name != "" && !isPlainIdent(name) && !isKeyword(name) {
		return true
	}
	return closingParen(s, open) != len(s)-1
}

// closingParen returns the index of the paren closing the one at open,
// skipping quoted strings.
func closingParen(s string, open int) int {
	depth := 0
	inString := false
	for i := open; i < len(s); i++ {
		switch c := s[i]; {
		case c == '\'':
			inString = !inString
		case inString:
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func boundOf(minX, minY, maxX, maxY float64) orb.Bound {
	return orb.Bound{Min: orb.Point{minX, minY}, Max: orb.Point{maxX, maxY}}
}

func literalOf(v interface{}) Literal {
	switch vt := v.(type) {
	case int:
		return Literal{int64(vt)}
	case int32:
		return Literal{int64(vt)}
	case float32:
		return Literal{float64(vt)}
	case time.Time:
		return Literal{vt.UTC()}
	}
	return Literal{v}
}
