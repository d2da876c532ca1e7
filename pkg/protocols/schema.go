// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package protocols

import (
	"encoding/hex"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Thermoquad/photon/pkg/codec"
)

// hexPrefix marks a byte string written as hex digits
const hexPrefix = "hex:"

// wireBytes is a byte string in a definition file: plain text, or hex
// digits after a "hex:" prefix.
type wireBytes []byte

func (w *wireBytes) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	if !strings.HasPrefix(s, hexPrefix) {
		*w = wireBytes(s)
		return nil
	}
	raw, err := hex.DecodeString(strings.TrimPrefix(s, hexPrefix))
	if err != nil {
		return fmt.Errorf("line %d: bad hex byte string %q: %w", value.Line, s, err)
	}
	*w = raw
	return nil
}

type protocolDoc struct {
	Name        string       `yaml:"name"`
	Description string       `yaml:"description"`
	Extends     string       `yaml:"extends"`
	Framing     yaml.Node    `yaml:"framing"`
	Response    yaml.Node    `yaml:"response"`
	Commands    []commandDoc `yaml:"commands"`
	Overrides   []commandDoc `yaml:"overrides"`
}

type framingDoc struct {
	Prefix       wireBytes `yaml:"prefix"`
	LengthPrefix bool      `yaml:"length_prefix"`
	Binary       bool      `yaml:"binary"`
	ASCIIHex     bool      `yaml:"ascii_hex"`
	PadTo        int       `yaml:"pad_to"`
	Checksum     string    `yaml:"checksum"`
	ChecksumFrom int       `yaml:"checksum_from"`
	Terminator   wireBytes `yaml:"terminator"`
}

type responseDoc struct {
	Prefix         wireBytes   `yaml:"prefix"`
	Sync           wireBytes   `yaml:"sync"`
	LengthDigits   int         `yaml:"length_digits"`
	Checksum       string      `yaml:"checksum"`
	ChecksumFrom   int         `yaml:"checksum_from"`
	ASCIIHex       bool        `yaml:"ascii_hex"`
	Terminator     wireBytes   `yaml:"terminator"`
	FixedLength    int         `yaml:"fixed_length"`
	LengthOffset   int         `yaml:"length_offset"`
	LengthOverhead int         `yaml:"length_overhead"`
	TrailerMarker  wireBytes   `yaml:"trailer_marker"`
	Delimiter      string      `yaml:"delimiter"`
	NAK            []wireBytes `yaml:"nak"`
}

type commandDoc struct {
	Code        string      `yaml:"code"`
	Pattern     string      `yaml:"pattern"`
	Payload     string      `yaml:"payload"`
	Direction   string      `yaml:"direction"`
	Description string      `yaml:"description"`
	Layout      string      `yaml:"layout"`
	Framing     yaml.Node   `yaml:"framing"`
	Response    yaml.Node   `yaml:"response"`
	Fields      []fieldDoc  `yaml:"fields"`
	Tests       []vectorDoc `yaml:"tests"`
}

type fieldDoc struct {
	Name        string            `yaml:"name"`
	Key         string            `yaml:"key"`
	Index       *int              `yaml:"index"`
	Kind        string            `yaml:"kind"`
	Unit        string            `yaml:"unit"`
	Width       int               `yaml:"width"`
	Endian      string            `yaml:"endian"`
	Signed      bool              `yaml:"signed"`
	Scale       int               `yaml:"scale"`
	Multiply    bool              `yaml:"multiply"`
	Options     []string          `yaml:"options"`
	Map         map[string]string `yaml:"map"`
	Flags       map[string]string `yaml:"flags"`
	Mask        map[uint64]string `yaml:"mask"`
	Formula     string            `yaml:"formula"`
	Ack         []string          `yaml:"ack"`
	Repeat      int               `yaml:"repeat"`
	Icon        string            `yaml:"icon"`
	DeviceClass string            `yaml:"device_class"`
	StateClass  string            `yaml:"state_class"`
}

type vectorDoc struct {
	Command  string            `yaml:"command"`
	Request  string            `yaml:"request"`
	Response string            `yaml:"response"`
	Valid    *bool             `yaml:"valid"`
	Expect   map[string]string `yaml:"expect"`
}

// defaults holds the framing a protocol applies to commands that do
// not override it
type defaults struct {
	framing  framingDoc
	response responseDoc
}

// merge decodes the framing and response nodes on top of a copy of d.
// Keys absent from the nodes keep their inherited values.
func (d defaults) merge(framing, response *yaml.Node) (defaults, error) {
	out := d
	if framing.Kind != 0 {
		if err := framing.Decode(&out.framing); err != nil {
			return out, err
		}
	}
	if response.Kind != 0 {
		if err := response.Decode(&out.response); err != nil {
			return out, err
		}
	}
	return out, nil
}

func (f framingDoc) build() (codec.Framing, error) {
	kind, err := codec.ParseChecksumKind(f.Checksum)
	if err != nil {
		return codec.Framing{}, err
	}
	return codec.Framing{
		Prefix:       f.Prefix,
		LengthPrefix: f.LengthPrefix,
		Binary:       f.Binary,
		ASCIIHex:     f.ASCIIHex,
		PadTo:        f.PadTo,
		Checksum:     kind,
		ChecksumFrom: f.ChecksumFrom,
		Terminator:   f.Terminator,
	}, nil
}

func (r responseDoc) build() (codec.ResponseFraming, error) {
	kind, err := codec.ParseChecksumKind(r.Checksum)
	if err != nil {
		return codec.ResponseFraming{}, err
	}
	naks := make([][]byte, len(r.NAK))
	for i, nak := range r.NAK {
		naks[i] = nak
	}
	return codec.ResponseFraming{
		Prefix:         r.Prefix,
		Sync:           r.Sync,
		LengthDigits:   r.LengthDigits,
		Checksum:       kind,
		ChecksumFrom:   r.ChecksumFrom,
		ASCIIHex:       r.ASCIIHex,
		Terminator:     r.Terminator,
		FixedLength:    r.FixedLength,
		LengthOffset:   r.LengthOffset,
		LengthOverhead: r.LengthOverhead,
		TrailerMarker:  r.TrailerMarker,
		Delimiter:      r.Delimiter,
		NAK:            naks,
	}, nil
}

// expand turns one field entry into its definitions. A repeat count
// produces that many copies, with the 1-based copy number formatted into
// the name and added to the index.
func (f fieldDoc) expand(position int) ([]codec.FieldDefinition, error) {
	base, err := f.build()
	if err != nil {
		return nil, err
	}
	base.Index = position
	if f.Index != nil {
		base.Index = *f.Index
	}
	if f.Repeat <= 0 {
		return []codec.FieldDefinition{base}, nil
	}

	out := make([]codec.FieldDefinition, f.Repeat)
	for i := range out {
		fd := base
		fd.Description = fmt.Sprintf(f.Name, i+1)
		fd.Index = base.Index + i
		out[i] = fd
	}
	return out, nil
}

func (f fieldDoc) build() (codec.FieldDefinition, error) {
	kind, err := codec.ParseDecodeKind(f.Kind)
	if err != nil {
		return codec.FieldDefinition{}, err
	}
	endian, err := codec.ParseEndian(f.Endian)
	if err != nil {
		return codec.FieldDefinition{}, err
	}

	fd := codec.FieldDefinition{
		Description: f.Name,
		Key:         f.Key,
		Kind:        kind,
		Unit:        f.Unit,
		Width:       f.Width,
		Endian:      endian,
		Signed:      f.Signed,
		Scale:       codec.Scale{Factor: f.Scale, Multiply: f.Multiply},
		Options:     f.Options,
		Lookup:      f.Map,
		EnFlags:     f.Flags,
		BitMask:     f.Mask,
		Meta: codec.Metadata{
			Icon:        f.Icon,
			DeviceClass: f.DeviceClass,
			StateClass:  f.StateClass,
		},
	}
	if f.Formula != "" {
		fd.Formula, err = codec.ParseFormula(f.Formula)
		if err != nil {
			return fd, err
		}
	}
	switch len(f.Ack) {
	case 0:
	case 2:
		fd.Ack = codec.AckLiterals{OK: f.Ack[0], Fail: f.Ack[1]}
	default:
		return fd, fmt.Errorf("ack takes [ok, fail], got %d literals", len(f.Ack))
	}
	return fd, nil
}
