// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package codec

// Reserved control bytes. A PI-family CRC byte must never take one of
// these values, otherwise a receiver would mistake it for framing.
const (
	ControlNUL   = 0x00
	ControlLF    = 0x0A
	ControlCR    = 0x0D
	ControlParen = 0x28
)

const (
	crcPolynomial = 0x1021
	crcInitial    = 0x0000

	add55Base = 0x55
)

// Frame size limits
const (
	MaxFrameSize = 4096 // Upper bound for any buffered response frame
)

// Reading names used for tokens with no matching FieldDefinition
const (
	unknownKeyFormat   = "Unknown Key %s"
	unknownValueFormat = "Unknown Value %d"
	remainderName      = "Remainder"
)
