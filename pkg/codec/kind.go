// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package codec

import (
	"fmt"
	"strings"
)

// DecodeKind selects the decoding rule applied to a token
type DecodeKind int

const (
	KindString DecodeKind = iota
	KindInt
	KindFloat
	KindScaledInt
	KindOption
	KindKeyed
	KindFlags
	KindStatFlags
	KindEnFlags
	KindBitMask
	KindHexString
	KindHexASCII
	KindEndianInt
	KindTemplate
	KindUptime
	KindAck
	KindDiscard
)

var kindNames = []string{
	KindString:    "string",
	KindInt:       "int",
	KindFloat:     "float",
	KindScaledInt: "scaled_int",
	KindOption:    "option",
	KindKeyed:     "keyed",
	KindFlags:     "flags",
	KindStatFlags: "stat_flags",
	KindEnFlags:   "enflags",
	KindBitMask:   "bitmask",
	KindHexString: "hex_string",
	KindHexASCII:  "hex_ascii",
	KindEndianInt: "endian_int",
	KindTemplate:  "template",
	KindUptime:    "uptime",
	KindAck:       "ack",
	KindDiscard:   "discard",
}

func (k DecodeKind) String() string {
	if int(k) >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseDecodeKind maps a definition-file name to a DecodeKind
func ParseDecodeKind(s string) (DecodeKind, error) {
	for i, name := range kindNames {
		if strings.EqualFold(name, s) {
			return DecodeKind(i), nil
		}
	}
	return KindString, fmt.Errorf("%w: unknown decode kind %q", ErrInvalidDefinition, s)
}
