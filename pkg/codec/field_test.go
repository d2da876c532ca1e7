// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// ============================================================
// Field Decoder Tests
// ============================================================

func textToken(f FieldDefinition, text string) Token {
	return Token{Field: &f, Raw: []byte(text)}
}

func binaryToken(f FieldDefinition, raw ...byte) Token {
	return Token{Field: &f, Raw: raw, Binary: true}
}

func decodeOne(t *testing.T, tok Token) Reading {
	t.Helper()
	readings := DecodeToken(tok, nil)
	require.Len(t, readings, 1)
	return readings[0]
}

func TestDecodeToken_Scalars(t *testing.T) {
	tests := []struct {
		name     string
		tok      Token
		expected Value
	}{
		{"int with leading zeros", textToken(FieldDefinition{Description: "n", Kind: KindInt}, "0161"), IntValue(161)},
		{"int placeholder", textToken(FieldDefinition{Description: "n", Kind: KindInt}, "-----"), IntValue(0)},
		{"int from decimal text", textToken(FieldDefinition{Description: "n", Kind: KindInt}, "12.0"), IntValue(12)},
		{"int from binary", binaryToken(FieldDefinition{Description: "n", Kind: KindInt}, 0x01, 0x02), IntValue(258)},
		{"float", textToken(FieldDefinition{Description: "f", Kind: KindFloat}, "57.45"), FloatValue(57.45)},
		{"float placeholder", textToken(FieldDefinition{Description: "f", Kind: KindFloat}, "---.-"), FloatValue(0)},
		{"scaled divide", textToken(FieldDefinition{Description: "s", Kind: KindScaledInt, Scale: Scale{Factor: 10}}, "0523"), FloatValue(52.3)},
		{"scaled multiply", textToken(FieldDefinition{Description: "s", Kind: KindScaledInt, Scale: Scale{Factor: 1000, Multiply: true}}, "5"), IntValue(5000)},
		{"scaled invalid", textToken(FieldDefinition{Description: "s", Kind: KindScaledInt, Scale: Scale{Factor: 100}}, "A1"), StringValue("invalid(A1)")},
		{"string", textToken(FieldDefinition{Description: "s", Kind: KindString}, "PI30"), StringValue("PI30")},
		{"hex string", binaryToken(FieldDefinition{Description: "h", Kind: KindHexString}, 0x55, 0xaa, 0xeb, 0x90), StringValue("55aaeb90")},
		{"hex ascii skips nul", binaryToken(FieldDefinition{Description: "a", Kind: KindHexASCII}, 'J', 'K', 0, 0, 'B', 0), StringValue("JKB")},
		{"uptime", binaryToken(FieldDefinition{Description: "u", Kind: KindUptime}, 0xdb, 0x00, 0x03, 0x00), StringValue("2D6H40M27S")},
		{"uptime text", textToken(FieldDefinition{Description: "u", Kind: KindUptime}, "61"), StringValue("0D0H1M1S")},
		{"option", textToken(FieldDefinition{Description: "o", Kind: KindOption, Options: []string{"AGM", "Flooded", "User"}}, "2"), EnumValue("User")},
		{"option binary", binaryToken(FieldDefinition{Description: "o", Kind: KindOption, Options: []string{"Off", "On"}}, 0x01), EnumValue("On")},
		{"keyed text", textToken(FieldDefinition{Description: "k", Kind: KindKeyed, Lookup: map[string]string{"B": "Battery"}}, "B"), EnumValue("Battery")},
		{"keyed hex", binaryToken(FieldDefinition{Description: "k", Kind: KindKeyed, Lookup: map[string]string{"0a53": "X"}}, 0x0a, 0x53), EnumValue("X")},
		{"ack ok", textToken(FieldDefinition{Description: "a", Kind: KindAck, Ack: AckLiterals{OK: "ACK", Fail: "NAK"}}, "ACK"), BoolValue(true)},
		{"ack fail", textToken(FieldDefinition{Description: "a", Kind: KindAck, Ack: AckLiterals{OK: "ACK", Fail: "NAK"}}, "NAK"), BoolValue(false)},
		{"template", textToken(FieldDefinition{Description: "t", Kind: KindTemplate, Formula: MustParseFormula("r/1000")}, "-1200"), FloatValue(-1.2)},
		{"template binary offset", binaryToken(FieldDefinition{Description: "t", Kind: KindTemplate, Formula: MustParseFormula("(r-30000)/10")}, 0x74, 0xf9), FloatValue(-5.5)},
		{"stat flags", textToken(FieldDefinition{Description: "w", Kind: KindStatFlags, Options: []string{"", "Fault", "Bus Over", "Bus Under"}}, "0101"), StringValue("Fault\nBus Under")},
		{"stat flags none", textToken(FieldDefinition{Description: "w", Kind: KindStatFlags, Options: []string{"A", "B"}}, "00"), StringValue("")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rd := decodeOne(t, tt.tok)
			require.NoError(t, rd.Err)
			assert.Equal(t, tt.expected.Kind(), rd.Value.Kind())
			if tt.expected.Kind() == ValueFloat {
				assert.InDelta(t, tt.expected.Float(), rd.Value.Float(), 1e-9)
			} else {
				assert.Equal(t, tt.expected, rd.Value)
			}
		})
	}
}

func TestDecodeToken_EndianInt(t *testing.T) {
	tests := []struct {
		name     string
		f        FieldDefinition
		raw      []byte
		expected int64
	}{
		{"u16 little", FieldDefinition{Width: 2, Endian: LittleEndian}, []byte{0xe5, 0x0c}, 3301},
		{"u16 big", FieldDefinition{Width: 2, Endian: BigEndian}, []byte{0x0c, 0xe5}, 3301},
		{"i16 little negative", FieldDefinition{Width: 2, Endian: LittleEndian, Signed: true}, []byte{0xf4, 0xff}, -12},
		{"i16 big negative", FieldDefinition{Width: 2, Signed: true}, []byte{0xff, 0x6a}, -150},
		{"u32 little", FieldDefinition{Width: 4, Endian: LittleEndian}, []byte{0x2a, 0, 0, 0}, 42},
		{"i32 little negative", FieldDefinition{Width: 4, Endian: LittleEndian, Signed: true}, []byte{0x30, 0xf8, 0xff, 0xff}, -2000},
		{"u32 big unsigned high bit", FieldDefinition{Width: 4}, []byte{0xff, 0xff, 0xff, 0xfe}, 4294967294},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := tt.f
			f.Description = "v"
			f.Kind = KindEndianInt
			rd := decodeOne(t, binaryToken(f, tt.raw...))
			require.NoError(t, rd.Err)
			assert.Equal(t, IntValue(tt.expected), rd.Value)
		})
	}
}

func TestDecodeToken_HardErrors(t *testing.T) {
	tests := []struct {
		name string
		tok  Token
	}{
		{"option out of range", textToken(FieldDefinition{Description: "o", Kind: KindOption, Options: []string{"A"}}, "3")},
		{"option not a number", textToken(FieldDefinition{Description: "o", Kind: KindOption, Options: []string{"A"}}, "x")},
		{"keyed missing", textToken(FieldDefinition{Description: "k", Kind: KindKeyed, Lookup: map[string]string{"B": "Battery"}}, "Z")},
		{"ack unexpected", textToken(FieldDefinition{Description: "a", Kind: KindAck, Ack: AckLiterals{OK: "1", Fail: "0"}}, "2")},
		{"endian width mismatch", binaryToken(FieldDefinition{Description: "e", Kind: KindEndianInt, Width: 4}, 0x01, 0x02)},
		{"template divide by zero", textToken(FieldDefinition{Description: "t", Kind: KindTemplate, Formula: MustParseFormula("10/r")}, "0")},
		{"template bad number", textToken(FieldDefinition{Description: "t", Kind: KindTemplate, Formula: MustParseFormula("r")}, "abc")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rd := decodeOne(t, tt.tok)
			assert.Error(t, rd.Err)
			assert.Equal(t, tt.tok.Field.Description, rd.Name)
		})
	}
}

func TestDecodeToken_ParseFailureLogsAndSubstitutesZero(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	f := FieldDefinition{Description: "Load", Kind: KindInt}

	readings := DecodeToken(textToken(f, "abc"), zap.New(core))

	require.Len(t, readings, 1)
	assert.NoError(t, readings[0].Err)
	assert.Equal(t, IntValue(0), readings[0].Value)
	assert.Equal(t, 1, logs.Len())
}

func TestDecodeToken_ScaledParseFailureLogs(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	f := FieldDefinition{Description: "Battery Current", Kind: KindScaledInt, Scale: Scale{Factor: 10}}

	readings := DecodeToken(textToken(f, "A1"), zap.New(core))

	require.Len(t, readings, 1)
	assert.Equal(t, StringValue("invalid(A1)"), readings[0].Value)
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zap.DebugLevel, entry.Level)
	assert.Equal(t, "Battery Current", entry.ContextMap()["field"])
}

func TestDecodeToken_Flags(t *testing.T) {
	f := FieldDefinition{
		Description: "Device Status",
		Kind:        KindFlags,
		Options:     []string{"A", "", "C", "D"},
	}
	readings := DecodeToken(textToken(f, "1011"), nil)

	require.Len(t, readings, 3, "reserved position skipped")
	assert.Equal(t, "A", readings[0].Name)
	assert.Equal(t, BoolValue(true), readings[0].Value)
	assert.Equal(t, "C", readings[1].Name)
	assert.Equal(t, BoolValue(true), readings[1].Value)
	assert.Equal(t, "D", readings[2].Name)
	assert.Equal(t, BoolValue(true), readings[2].Value)

	readings = DecodeToken(textToken(f, "01"), nil)
	require.Len(t, readings, 3)
	assert.Equal(t, BoolValue(false), readings[0].Value)
	assert.Error(t, readings[1].Err, "missing bit")
}

func TestDecodeToken_FlagsBinary(t *testing.T) {
	f := FieldDefinition{Description: "DIO", Kind: KindFlags, Options: []string{"DO4", "DO3", "DO2", "DO1", "DI4", "DI3", "DI2", "DI1"}}
	readings := DecodeToken(binaryToken(f, 0x81), nil)

	require.Len(t, readings, 8)
	assert.Equal(t, BoolValue(true), readings[0].Value)
	assert.Equal(t, BoolValue(true), readings[7].Value)
	assert.Equal(t, BoolValue(false), readings[3].Value)
}

func TestDecodeToken_EnFlags(t *testing.T) {
	f := FieldDefinition{
		Description: "Flags",
		Kind:        KindEnFlags,
		EnFlags: map[string]string{
			"a": "Buzzer", "b": "Overload Bypass", "k": "LCD Reset", "x": "Backlight", "y": "Alarm",
		},
	}
	readings := DecodeToken(textToken(f, "EakDbxq"), nil)

	require.Len(t, readings, 5)
	expected := []struct {
		name  string
		state string
	}{
		{"Buzzer", "enabled"},
		{"LCD Reset", "enabled"},
		{"Overload Bypass", "disabled"},
		{"Backlight", "disabled"},
	}
	for i, e := range expected {
		assert.Equal(t, e.name, readings[i].Name)
		assert.Equal(t, EnumValue(e.state), readings[i].Value)
		assert.NoError(t, readings[i].Err)
	}
	assert.Equal(t, "Unknown Flag q", readings[4].Name)
	assert.Error(t, readings[4].Err)

	// State does not leak between calls
	readings = DecodeToken(textToken(f, "a"), nil)
	require.Len(t, readings, 1)
	assert.Error(t, readings[0].Err)
}

func TestDecodeToken_BitMask(t *testing.T) {
	f := FieldDefinition{
		Description: "Protection",
		Kind:        KindBitMask,
		BitMask:     map[uint64]string{0: "No protection", 1: "Cell overvoltage", 2: "Cell undervoltage", 4: "Pack overvoltage"},
	}

	assert.Equal(t, StringValue("Cell overvoltage,Pack overvoltage"), decodeOne(t, binaryToken(f, 0x00, 0x05)).Value)
	assert.Equal(t, StringValue("No protection"), decodeOne(t, binaryToken(f, 0x00, 0x00)).Value)
	assert.Equal(t, StringValue("Cell undervoltage"), decodeOne(t, textToken(f, "2")).Value)
	assert.Error(t, decodeOne(t, textToken(f, "x")).Err)
}

func TestDecodeToken_Discard(t *testing.T) {
	assert.Empty(t, DecodeToken(textToken(FieldDefinition{Kind: KindDiscard}, "123"), nil))
}

func TestDecodeToken_Unknown(t *testing.T) {
	rd := decodeOne(t, Token{Key: "XYZ", Raw: []byte("99")})
	assert.Equal(t, "Unknown Key XYZ", rd.Name)
	assert.Equal(t, StringValue("99"), rd.Value)

	rd = decodeOne(t, Token{Position: 21, Raw: []byte("777")})
	assert.Equal(t, "Unknown Value 21", rd.Name)

	rd = decodeOne(t, Token{Position: 3, Raw: []byte{0xde, 0xad}, Binary: true})
	assert.Equal(t, "Remainder", rd.Name)
	assert.Equal(t, StringValue("dead"), rd.Value)
}

func TestDecodeToken_PassesUnitAndMetadata(t *testing.T) {
	f := FieldDefinition{
		Description: "Battery Voltage",
		Kind:        KindFloat,
		Unit:        "V",
		Meta:        Metadata{Icon: "mdi:battery", DeviceClass: "voltage", StateClass: "measurement"},
	}
	rd := decodeOne(t, textToken(f, "57.50"))
	assert.Equal(t, "V", rd.Unit)
	assert.Equal(t, "voltage", rd.Meta.DeviceClass)
}

func TestFormatUptime(t *testing.T) {
	assert.Equal(t, "0D0H0M0S", FormatUptime(0))
	assert.Equal(t, "1D0H0M0S", FormatUptime(86400))
	assert.Equal(t, "2D6H40M27S", FormatUptime(196827))
}
