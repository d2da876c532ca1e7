// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package codec

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// EncodeCommand builds the wire frame for def with the given parameter
// text appended to its payload. Listen commands produce no frame.
//
// Frame layout: prefix | [P|S + 3-digit length] | payload | padding | checksum | terminator
func EncodeCommand(def *CommandDefinition, param string) ([]byte, error) {
	if def == nil {
		return nil, ErrUnknownCommand
	}
	if def.Direction == DirectionListen {
		return nil, nil
	}

	f := def.Framing
	payload, err := encodePayload(f, def.WirePayload(), param)
	if err != nil {
		return nil, fmt.Errorf("command %s: %w", def.Code, err)
	}

	frame := make([]byte, 0, len(f.Prefix)+len(payload)+8+f.PadTo)
	frame = append(frame, f.Prefix...)

	if f.LengthPrefix {
		letter := byte('P')
		if def.Direction == DirectionSetter {
			letter = 'S'
		}
		length := len(payload) + f.Checksum.Size() + len(f.Terminator)
		if length > 999 {
			return nil, fmt.Errorf("%w: payload too long for length prefix", ErrInvalidParameter)
		}
		frame = append(frame, letter)
		frame = append(frame, fmt.Sprintf("%03d", length)...)
	}

	frame = append(frame, payload...)

	if pad := f.PadTo - len(frame); pad > 0 {
		frame = append(frame, make([]byte, pad)...)
	}

	if f.Checksum != ChecksumNone {
		if f.ChecksumFrom > len(frame) {
			return nil, fmt.Errorf("%w: checksum offset %d beyond frame", ErrInvalidDefinition, f.ChecksumFrom)
		}
		covered := frame[f.ChecksumFrom:]
		if f.ASCIIHex {
			decoded, err := decodeHexText(string(covered))
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidParameter, err)
			}
			frame = append(frame, strings.ToUpper(hex.EncodeToString(f.Checksum.Compute(decoded)))...)
		} else {
			frame = append(frame, f.Checksum.Compute(covered)...)
		}
	}

	frame = append(frame, f.Terminator...)
	return frame, nil
}

func encodePayload(f Framing, payload, param string) ([]byte, error) {
	if !f.Binary {
		return []byte(payload + param), nil
	}
	raw, err := hex.DecodeString(payload + param)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not hex", ErrInvalidParameter, payload+param)
	}
	return raw, nil
}

// decodeHexText decodes hex text, treating an odd-length string as having
// an implicit leading zero nibble.
func decodeHexText(s string) ([]byte, error) {
	if len(s)%2 == 1 {
		s = "0" + s
	}
	return hex.DecodeString(s)
}
