// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package codec

import (
	"encoding/hex"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

// ============================================================
// Test Fixtures
// ============================================================

func piFraming() Framing {
	return Framing{Checksum: ChecksumCRCPI, Terminator: []byte("\r")}
}

func piResponse() ResponseFraming {
	return ResponseFraming{
		Prefix:     []byte("("),
		Checksum:   ChecksumCRCPI,
		Terminator: []byte("\r"),
		NAK:        [][]byte{[]byte("(NAK")},
	}
}

// piFrame wraps body with a PI CRC and carriage return
func piFrame(body string) []byte {
	frame := []byte(body)
	frame = append(frame, CRCPI(frame)...)
	return append(frame, '\r')
}

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func queryDef(code string, layout Layout, fields ...FieldDefinition) *CommandDefinition {
	return &CommandDefinition{
		Code:        code,
		Description: code + " inquiry",
		Direction:   DirectionQuery,
		Framing:     piFraming(),
		Response:    piResponse(),
		Layout:      layout,
		Fields:      fields,
	}
}

func setterDef(code, pattern string) *CommandDefinition {
	return &CommandDefinition{
		Code:        code,
		Description: code + " setter",
		Direction:   DirectionSetter,
		Pattern:     regexp.MustCompile(pattern),
		Framing:     piFraming(),
		Response:    piResponse(),
		Layout:      LayoutSequential,
		Fields: []FieldDefinition{
			{Description: "Command Execution", Kind: KindAck, Ack: AckLiterals{OK: "ACK", Fail: "NAK"}},
		},
	}
}

func statusDef() *CommandDefinition {
	return queryDef("QST", LayoutSequential,
		FieldDefinition{Description: "Grid Voltage", Kind: KindFloat, Unit: "V"},
		FieldDefinition{Description: "Load", Kind: KindInt, Unit: "%"},
		FieldDefinition{Description: "Mode", Kind: KindOption, Options: []string{"Standby", "Line", "Battery"}},
		FieldDefinition{Description: "Reserved", Kind: KindDiscard},
		FieldDefinition{Description: "Battery Current", Kind: KindScaledInt, Unit: "A", Scale: Scale{Factor: 10}},
	)
}

func testProtocol(t *testing.T) *Protocol {
	t.Helper()
	p, err := NewProtocol("test", "test protocol", []*CommandDefinition{
		statusDef(),
		setterDef("PBT", `PBT(0[012])`),
		queryDef("QCUR", LayoutMultivalued,
			FieldDefinition{Description: "Max Charging Current", Kind: KindInt, Unit: "A"}),
	})
	require.NoError(t, err)
	return p
}
