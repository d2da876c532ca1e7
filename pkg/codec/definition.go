// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package codec

import (
	"fmt"
	"regexp"
	"strings"
)

// Direction classifies how a command is exchanged with the device
type Direction int

const (
	DirectionQuery  Direction = iota // request, then a data response
	DirectionSetter                  // request, then an acknowledgement
	DirectionListen                  // no request; the device pushes frames
)

var directionNames = []string{"query", "setter", "listen"}

func (d Direction) String() string {
	if int(d) >= 0 && int(d) < len(directionNames) {
		return directionNames[d]
	}
	return fmt.Sprintf("direction(%d)", int(d))
}

// ParseDirection maps a definition-file name to a Direction. Empty means query.
func ParseDirection(s string) (Direction, error) {
	if s == "" {
		return DirectionQuery, nil
	}
	for i, name := range directionNames {
		if strings.EqualFold(name, s) {
			return Direction(i), nil
		}
	}
	return DirectionQuery, fmt.Errorf("%w: unknown direction %q", ErrInvalidDefinition, s)
}

// Layout selects how a response payload is split into tokens
type Layout int

const (
	LayoutSequential  Layout = iota // delimited tokens matched to fields in order
	LayoutKeyed                     // one "key value" pair per line
	LayoutPositional                // fixed byte widths per field
	LayoutIndexed                   // delimited tokens matched by explicit index
	LayoutMultivalued               // every delimited token decoded by the single field
)

var layoutNames = []string{"sequential", "keyed", "positional", "indexed", "multivalued"}

func (l Layout) String() string {
	if int(l) >= 0 && int(l) < len(layoutNames) {
		return layoutNames[l]
	}
	return fmt.Sprintf("layout(%d)", int(l))
}

// ParseLayout maps a definition-file name to a Layout. Empty means sequential.
func ParseLayout(s string) (Layout, error) {
	if s == "" {
		return LayoutSequential, nil
	}
	for i, name := range layoutNames {
		if strings.EqualFold(name, s) {
			return Layout(i), nil
		}
	}
	return LayoutSequential, fmt.Errorf("%w: unknown layout %q", ErrInvalidDefinition, s)
}

// Endian is the byte order of a multi-byte binary field
type Endian int

const (
	BigEndian Endian = iota
	LittleEndian
)

// ParseEndian maps "big"/"little" to an Endian. Empty means big.
func ParseEndian(s string) (Endian, error) {
	switch strings.ToLower(s) {
	case "", "big", "be":
		return BigEndian, nil
	case "little", "le":
		return LittleEndian, nil
	}
	return BigEndian, fmt.Errorf("%w: unknown byte order %q", ErrInvalidDefinition, s)
}

// Framing describes how a request frame is assembled
type Framing struct {
	Prefix       []byte
	LengthPrefix bool // insert P/S direction letter and a 3-digit length after Prefix
	Binary       bool // payload and parameter are hex text, sent as raw bytes
	ASCIIHex     bool // checksum covers the hex-decoded frame and is sent as two hex digits
	PadTo        int  // zero-pad the frame to this many bytes before the checksum
	Checksum     ChecksumKind
	ChecksumFrom int // offset of the first byte covered by the checksum
	Terminator   []byte
}

// ResponseFraming describes how a response frame is recognised and validated
type ResponseFraming struct {
	Prefix         []byte // leading bytes stripped from the payload
	Sync           []byte // start marker a stream reader aligns on; defaults to Prefix
	LengthDigits   int    // ASCII length digits following Prefix
	Checksum       ChecksumKind
	ChecksumFrom   int
	ASCIIHex       bool // body after Prefix is hex text
	Terminator     []byte
	FixedLength    int    // total frame length for fixed-size binary frames
	LengthOffset   int    // offset of a one-byte payload length, 0 when absent
	LengthOverhead int    // frame bytes not counted by the length byte
	TrailerMarker  []byte // frame ends Checksum.Size() bytes after this marker
	Delimiter      string // token delimiter, empty means any whitespace
	NAK            [][]byte
}

// SyncMarker returns the bytes a stream reader should align on
func (r ResponseFraming) SyncMarker() []byte {
	if len(r.Sync) > 0 {
		return r.Sync
	}
	return r.Prefix
}

// Scale is a fixed power-of-ten adjustment applied by scaled_int fields
type Scale struct {
	Factor   int
	Multiply bool
}

// AckLiterals are the two accepted tokens of an ack field
type AckLiterals struct {
	OK   string
	Fail string
}

// Metadata carries presentation hints passed through to readings
type Metadata struct {
	Icon        string `json:"icon,omitempty" cbor:"icon,omitempty"`
	DeviceClass string `json:"device_class,omitempty" cbor:"device_class,omitempty"`
	StateClass  string `json:"state_class,omitempty" cbor:"state_class,omitempty"`
}

// FieldDefinition describes how one response token becomes readings
type FieldDefinition struct {
	Description string
	Key         string // token key for keyed layouts
	Index       int    // token position for indexed layouts
	Kind        DecodeKind
	Unit        string
	Width       int // bytes consumed in positional layouts
	Endian      Endian
	Signed      bool
	Scale       Scale
	Options     []string          // option labels, or flag names by bit position
	Lookup      map[string]string // keyed token to label
	EnFlags     map[string]string // enflags letter to name
	BitMask     map[uint64]string // bit value to label; key 0 labels an all-clear value
	Formula     *Formula
	Ack         AckLiterals
	Meta        Metadata
}

// CommandDefinition is the immutable description of one device command
type CommandDefinition struct {
	Code        string
	Description string
	Direction   Direction
	Pattern     *regexp.Regexp // matches parameterised command text; nil for exact codes
	Payload     string         // wire payload before the parameter; defaults to Code
	Framing     Framing
	Response    ResponseFraming
	Layout      Layout
	Fields      []FieldDefinition
}

// WirePayload returns the payload text sent before any parameter
func (c *CommandDefinition) WirePayload() string {
	if c.Payload != "" {
		return c.Payload
	}
	return c.Code
}

// FieldByKey returns the field matching a keyed token, or nil
func (c *CommandDefinition) FieldByKey(key string) *FieldDefinition {
	for i := range c.Fields {
		if c.Fields[i].Key == key {
			return &c.Fields[i]
		}
	}
	return nil
}

// FieldByIndex returns the field declared at an indexed position, or nil
func (c *CommandDefinition) FieldByIndex(index int) *FieldDefinition {
	for i := range c.Fields {
		if c.Fields[i].Index == index {
			return &c.Fields[i]
		}
	}
	return nil
}

// Validate checks the definition for inconsistencies that would make
// decoding ambiguous. It is run once at load time.
func (c *CommandDefinition) Validate() error {
	if c.Code == "" {
		return &DefinitionError{Command: "<empty>", Reason: "missing code"}
	}
	if len(c.Fields) == 0 {
		return &DefinitionError{Command: c.Code, Reason: "no fields declared"}
	}
	if c.Layout == LayoutMultivalued && len(c.Fields) != 1 {
		return &DefinitionError{Command: c.Code, Reason: "multivalued layout requires exactly one field"}
	}
	if c.Framing.LengthPrefix && c.Framing.Binary {
		return &DefinitionError{Command: c.Code, Reason: "length prefix is not supported for binary framing"}
	}
	if c.Response.LengthOffset > 0 && c.Response.FixedLength > 0 {
		return &DefinitionError{Command: c.Code, Reason: "response declares both fixed length and length byte"}
	}

	keys := make(map[string]bool)
	indices := make(map[int]bool)
	for i := range c.Fields {
		f := &c.Fields[i]
		if err := f.validate(c.Layout); err != nil {
			return &DefinitionError{Command: c.Code, Field: f.Description, Reason: err.Error()}
		}
		switch c.Layout {
		case LayoutKeyed:
			if keys[f.Key] {
				return &DefinitionError{Command: c.Code, Field: f.Description, Reason: "duplicate key " + f.Key}
			}
			keys[f.Key] = true
		case LayoutIndexed:
			if indices[f.Index] {
				return &DefinitionError{Command: c.Code, Field: f.Description, Reason: fmt.Sprintf("duplicate index %d", f.Index)}
			}
			indices[f.Index] = true
		}
	}
	return nil
}

func (f *FieldDefinition) validate(layout Layout) error {
	if f.Kind != KindDiscard && f.Description == "" {
		return fmt.Errorf("missing description")
	}
	if layout == LayoutKeyed && f.Key == "" {
		return fmt.Errorf("keyed layout requires a key")
	}
	if layout == LayoutIndexed && f.Index < 0 {
		return fmt.Errorf("negative index %d", f.Index)
	}
	if layout == LayoutPositional && f.Width <= 0 {
		return fmt.Errorf("positional layout requires a positive width")
	}

	switch f.Kind {
	case KindScaledInt:
		switch f.Scale.Factor {
		case 10, 100, 1000:
		default:
			return fmt.Errorf("scale must be 10, 100 or 1000, got %d", f.Scale.Factor)
		}
	case KindOption, KindFlags, KindStatFlags:
		if len(f.Options) == 0 {
			return fmt.Errorf("%s requires options", f.Kind)
		}
	case KindKeyed:
		if len(f.Lookup) == 0 {
			return fmt.Errorf("keyed requires a lookup map")
		}
	case KindEnFlags:
		if len(f.EnFlags) == 0 {
			return fmt.Errorf("enflags requires a flag map")
		}
	case KindBitMask:
		if len(f.BitMask) == 0 {
			return fmt.Errorf("bitmask requires a mask map")
		}
		for bit := range f.BitMask {
			if bit&(bit-1) != 0 {
				return fmt.Errorf("bitmask key %#x is not a single bit", bit)
			}
		}
	case KindEndianInt:
		if f.Width != 2 && f.Width != 4 {
			return fmt.Errorf("endian_int width must be 2 or 4, got %d", f.Width)
		}
	case KindTemplate:
		if f.Formula == nil {
			return fmt.Errorf("template requires a formula")
		}
	case KindAck:
		if f.Ack.OK == "" || f.Ack.Fail == "" || f.Ack.OK == f.Ack.Fail {
			return fmt.Errorf("ack requires two distinct literals")
		}
	}
	return nil
}
