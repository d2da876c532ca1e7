// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package codec

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

// ValueKind identifies the variant held by a Value
type ValueKind int

const (
	ValueInt ValueKind = iota
	ValueFloat
	ValueString
	ValueBool
	ValueEnum
)

// Value is a typed, immutable reading value
type Value struct {
	kind ValueKind
	i    int64
	f    float64
	s    string
	b    bool
}

// IntValue returns an integer Value
func IntValue(v int64) Value { return Value{kind: ValueInt, i: v} }

// FloatValue returns a floating point Value
func FloatValue(v float64) Value { return Value{kind: ValueFloat, f: v} }

// StringValue returns a free-text Value
func StringValue(v string) Value { return Value{kind: ValueString, s: v} }

// BoolValue returns a boolean Value
func BoolValue(v bool) Value { return Value{kind: ValueBool, b: v} }

// EnumValue returns a Value holding a label chosen from a fixed table
func EnumValue(label string) Value { return Value{kind: ValueEnum, s: label} }

// Kind returns the variant held by v
func (v Value) Kind() ValueKind { return v.kind }

// Int returns the integer value, truncating floats
func (v Value) Int() int64 {
	if v.kind == ValueFloat {
		return int64(v.f)
	}
	return v.i
}

// Float returns the value as float64, converting integers
func (v Value) Float() float64 {
	if v.kind == ValueInt {
		return float64(v.i)
	}
	return v.f
}

// Str returns the text of string and enum values
func (v Value) Str() string { return v.s }

// Bool returns the boolean value
func (v Value) Bool() bool { return v.b }

// Interface returns the value as a plain Go type
func (v Value) Interface() any {
	switch v.kind {
	case ValueInt:
		return v.i
	case ValueFloat:
		return v.f
	case ValueBool:
		return v.b
	default:
		return v.s
	}
}

// String renders the value for display
func (v Value) String() string {
	switch v.kind {
	case ValueInt:
		return strconv.FormatInt(v.i, 10)
	case ValueFloat:
		s := strconv.FormatFloat(v.f, 'f', -1, 64)
		if !strings.ContainsAny(s, ".eEnN") {
			s += ".0"
		}
		return s
	case ValueBool:
		return strconv.FormatBool(v.b)
	default:
		return v.s
	}
}

// MarshalJSON encodes the underlying plain value
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// MarshalCBOR encodes the underlying plain value
func (v Value) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(v.Interface())
}

// Reading is one named, typed value decoded from a response
type Reading struct {
	Name  string
	Value Value
	Unit  string
	Meta  Metadata
	Err   error // set when this token could not be decoded as declared
}

type readingDoc struct {
	Name  string    `json:"name" cbor:"name"`
	Value Value     `json:"value" cbor:"value"`
	Unit  string    `json:"unit,omitempty" cbor:"unit,omitempty"`
	Meta  *Metadata `json:"meta,omitempty" cbor:"meta,omitempty"`
	Error string    `json:"error,omitempty" cbor:"error,omitempty"`
}

func (r Reading) doc() readingDoc {
	d := readingDoc{Name: r.Name, Value: r.Value, Unit: r.Unit}
	if r.Meta != (Metadata{}) {
		meta := r.Meta
		d.Meta = &meta
	}
	if r.Err != nil {
		d.Error = r.Err.Error()
	}
	return d
}

// MarshalJSON encodes the reading as a flat object
func (r Reading) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.doc())
}

// MarshalCBOR encodes the reading as a flat map
func (r Reading) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(r.doc())
}

// Result is the outcome of decoding one response. It is never mutated
// after the engine returns it.
type Result struct {
	Protocol    string    `json:"protocol" cbor:"protocol"`
	Command     string    `json:"command" cbor:"command"`
	Valid       bool      `json:"valid" cbor:"valid"`
	Errors      []string  `json:"errors,omitempty" cbor:"errors,omitempty"`
	RawResponse string    `json:"raw_response" cbor:"raw_response"`
	Readings    []Reading `json:"readings" cbor:"readings"`

	// Cause is the frame-level error that invalidated the result, if any
	Cause error `json:"-" cbor:"-"`

	// Raw holds the response bytes as received
	Raw []byte `json:"-" cbor:"-"`
}

// Reading returns the first reading with the given name
func (r *Result) Reading(name string) (Reading, bool) {
	for _, rd := range r.Readings {
		if rd.Name == name {
			return rd, true
		}
	}
	return Reading{}, false
}

// ReadingsNamed returns every reading with the given name, in order
func (r *Result) ReadingsNamed(name string) []Reading {
	var out []Reading
	for _, rd := range r.Readings {
		if rd.Name == name {
			out = append(out, rd)
		}
	}
	return out
}

// FieldErrors counts readings that failed to decode as declared
func (r *Result) FieldErrors() int {
	n := 0
	for _, rd := range r.Readings {
		if rd.Err != nil {
			n++
		}
	}
	return n
}

// EncodeCBOR serializes the result as CBOR
func (r *Result) EncodeCBOR() ([]byte, error) {
	return cbor.Marshal(r)
}

// echoRaw renders a raw response as text when it is mostly printable,
// escaping the remaining bytes, and as hex otherwise.
func echoRaw(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	printable := 0
	for _, b := range raw {
		if b >= 0x20 && b < 0x7F {
			printable++
		}
	}
	if printable*4 < len(raw)*3 {
		return hex.EncodeToString(raw)
	}
	var sb strings.Builder
	for _, b := range raw {
		switch {
		case b == '\r':
			sb.WriteString(`\r`)
		case b == '\n':
			sb.WriteString(`\n`)
		case b == '\t':
			sb.WriteString(`\t`)
		case b == '\\':
			sb.WriteString(`\\`)
		case b >= 0x20 && b < 0x7F:
			sb.WriteByte(b)
		default:
			fmt.Fprintf(&sb, `\x%02x`, b)
		}
	}
	return sb.String()
}
