// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package codec

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================
// Splitter Tests
// ============================================================

func joinTokens(tokens []Token, sep string) string {
	parts := make([]string, len(tokens))
	for i, tok := range tokens {
		parts[i] = string(tok.Raw)
	}
	return strings.Join(parts, sep)
}

func TestSplit_SequentialKeepsDiscardTokens(t *testing.T) {
	def := statusDef()
	payload := "230.0 045 2 XX 125 EXTRA"
	tokens := Split([]byte(payload), def)

	require.Len(t, tokens, 6)
	assert.Equal(t, payload, joinTokens(tokens, " "))
	assert.Equal(t, "Reserved", tokens[3].Field.Description)
	assert.Nil(t, tokens[5].Field)
	assert.Equal(t, 5, tokens[5].Position)
}

func TestSplit_SequentialRejoinProperty(t *testing.T) {
	def := statusDef()
	rng := newFuzzRng(t)
	alphabet := "0123456789.-ABC"

	for i := 0; i < getFuzzRounds(); i++ {
		parts := make([]string, 1+rng.Intn(10))
		for j := range parts {
			b := make([]byte, 1+rng.Intn(6))
			for k := range b {
				b[k] = alphabet[rng.Intn(len(alphabet))]
			}
			parts[j] = string(b)
		}
		payload := strings.Join(parts, " ")
		require.Equal(t, payload, joinTokens(Split([]byte(payload), def), " "))
	}
}

func TestSplit_Delimited(t *testing.T) {
	def := &CommandDefinition{
		Code:     "GS",
		Layout:   LayoutIndexed,
		Response: ResponseFraming{Delimiter: ","},
		Fields: []FieldDefinition{
			{Description: "First", Index: 0, Kind: KindInt},
			{Description: "Third", Index: 2, Kind: KindInt},
		},
	}
	tokens := Split([]byte("1,,3,4"), def)

	require.Len(t, tokens, 4)
	assert.Equal(t, "1,,3,4", joinTokens(tokens, ","))
	assert.Equal(t, "First", tokens[0].Field.Description)
	assert.Nil(t, tokens[1].Field)
	assert.Equal(t, "Third", tokens[2].Field.Description)
	assert.Nil(t, tokens[3].Field)
}

func TestSplit_Multivalued(t *testing.T) {
	def := queryDef("QCUR", LayoutMultivalued, FieldDefinition{Description: "Current", Kind: KindInt})
	tokens := Split([]byte("010 020 030"), def)

	require.Len(t, tokens, 3)
	for _, tok := range tokens {
		assert.Same(t, &def.Fields[0], tok.Field)
	}
}

func TestSplit_Keyed(t *testing.T) {
	def := &CommandDefinition{
		Code:   "TEXT",
		Layout: LayoutKeyed,
		Fields: []FieldDefinition{
			{Description: "Voltage", Key: "V", Kind: KindInt},
			{Description: "Serial", Key: "SER#", Kind: KindString},
		},
	}
	tokens := Split([]byte("V\t13250\r\nSER#\tHQ2132\r\nXYZ 99\r\nChecksum\t"), def)

	require.Len(t, tokens, 4)
	assert.Equal(t, "V", tokens[0].Key)
	assert.Equal(t, "13250", string(tokens[0].Raw))
	assert.Equal(t, "Serial", tokens[1].Field.Description)
	assert.Equal(t, "XYZ", tokens[2].Key)
	assert.Equal(t, "99", string(tokens[2].Raw))
	assert.Nil(t, tokens[2].Field)
	assert.Equal(t, "Checksum", tokens[3].Key)
	assert.Empty(t, tokens[3].Raw)
}

func TestSplit_Positional(t *testing.T) {
	def := &CommandDefinition{
		Code:   "bin",
		Layout: LayoutPositional,
		Fields: []FieldDefinition{
			{Description: "Header", Kind: KindHexString, Width: 2},
			{Kind: KindDiscard, Width: 1},
			{Description: "Value", Kind: KindEndianInt, Width: 2},
		},
	}
	payload := []byte{0x55, 0xaa, 0xff, 0x01, 0x02, 0x03, 0x04}
	tokens := Split(payload, def)

	require.Len(t, tokens, 4)
	var joined []byte
	for _, tok := range tokens {
		assert.True(t, tok.Binary)
		joined = append(joined, tok.Raw...)
	}
	assert.True(t, bytes.Equal(payload, joined))
	assert.Nil(t, tokens[3].Field, "remainder token")
	assert.Equal(t, []byte{0x03, 0x04}, tokens[3].Raw)
}

func TestSplit_PositionalShortPayload(t *testing.T) {
	def := &CommandDefinition{
		Code:   "bin",
		Layout: LayoutPositional,
		Fields: []FieldDefinition{
			{Description: "A", Kind: KindEndianInt, Width: 2},
			{Description: "B", Kind: KindEndianInt, Width: 4},
			{Description: "C", Kind: KindEndianInt, Width: 2},
		},
	}
	tokens := Split([]byte{1, 2, 3, 4}, def)

	require.Len(t, tokens, 2)
	assert.Equal(t, []byte{3, 4}, tokens[1].Raw)
}
