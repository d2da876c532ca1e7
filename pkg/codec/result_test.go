// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package codec

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================
// Result Tests
// ============================================================

func TestValue_String(t *testing.T) {
	tests := []struct {
		value    Value
		expected string
	}{
		{IntValue(-42), "-42"},
		{FloatValue(230), "230.0"},
		{FloatValue(57.45), "57.45"},
		{FloatValue(0), "0.0"},
		{StringValue("PI30"), "PI30"},
		{EnumValue("Battery"), "Battery"},
		{BoolValue(true), "true"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.value.String())
		})
	}
}

func TestValue_Conversions(t *testing.T) {
	assert.Equal(t, 3.0, IntValue(3).Float())
	assert.Equal(t, int64(3), FloatValue(3.9).Int())
	assert.Equal(t, int64(7), IntValue(7).Interface())
	assert.Equal(t, "x", EnumValue("x").Interface())
	assert.Equal(t, ValueEnum, EnumValue("x").Kind())
}

func sampleResult() *Result {
	return &Result{
		Protocol:    "pi30",
		Command:     "QPIGS",
		Valid:       true,
		RawResponse: "(230.0",
		Readings: []Reading{
			{Name: "AC Output Voltage", Value: FloatValue(230), Unit: "V", Meta: Metadata{DeviceClass: "voltage"}},
			{Name: "Is Load On", Value: BoolValue(true)},
			{Name: "Mode", Value: StringValue("9"), Err: errors.New("option index out of range")},
		},
	}
}

func TestResult_JSON(t *testing.T) {
	data, err := json.Marshal(sampleResult())
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "QPIGS", doc["command"])
	assert.Equal(t, true, doc["valid"])
	assert.NotContains(t, doc, "errors")

	readings := doc["readings"].([]any)
	require.Len(t, readings, 3)
	first := readings[0].(map[string]any)
	assert.Equal(t, "AC Output Voltage", first["name"])
	assert.Equal(t, 230.0, first["value"])
	assert.Equal(t, "V", first["unit"])
	assert.Equal(t, "voltage", first["meta"].(map[string]any)["device_class"])
	assert.Equal(t, "option index out of range", readings[2].(map[string]any)["error"])
}

func TestResult_CBOR(t *testing.T) {
	data, err := sampleResult().EncodeCBOR()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, cbor.Unmarshal(data, &doc))
	assert.Equal(t, "pi30", doc["protocol"])
	assert.Equal(t, true, doc["valid"])

	readings := doc["readings"].([]any)
	require.Len(t, readings, 3)
	second := readings[1].(map[any]any)
	assert.Equal(t, "Is Load On", second["name"])
	assert.Equal(t, true, second["value"])
}

func TestResult_Lookup(t *testing.T) {
	r := sampleResult()
	rd, ok := r.Reading("Is Load On")
	require.True(t, ok)
	assert.Equal(t, BoolValue(true), rd.Value)

	_, ok = r.Reading("Missing")
	assert.False(t, ok)
	assert.Equal(t, 1, r.FieldErrors())
}

func TestEchoRaw(t *testing.T) {
	assert.Equal(t, "", echoRaw(nil))
	assert.Equal(t, `(ACK9 \r`, echoRaw([]byte("(ACK9 \r")))
	assert.Equal(t, `(NAKss\x9a\r`, echoRaw([]byte("(NAKss\x9a\r")))
	assert.Equal(t, "a5019008", echoRaw([]byte{0xa5, 0x01, 0x90, 0x08}))
}
