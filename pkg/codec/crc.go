// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package codec

import (
	"fmt"
	"strings"

	"github.com/sigurn/crc16"
)

// ChecksumKind identifies a frame integrity check family
type ChecksumKind int

const (
	ChecksumNone            ChecksumKind = iota
	ChecksumCRCPI                        // CRC-16/XMODEM with reserved-byte bump, big-endian
	ChecksumSum8                         // low 8 bits of the byte sum
	ChecksumSum8Plus1                    // low 8 bits of the byte sum plus one
	ChecksumAdd55                        // 0x55 minus the byte sum
	ChecksumSum8Zero                     // trailing byte brings the whole block sum to zero
	ChecksumSum16                        // 16-bit byte sum, big-endian
	ChecksumSum16Complement              // two's complement of the 16-bit byte sum, big-endian
)

var checksumNames = map[ChecksumKind]string{
	ChecksumNone:            "none",
	ChecksumCRCPI:           "crc_pi",
	ChecksumSum8:            "sum8",
	ChecksumSum8Plus1:       "sum8_plus1",
	ChecksumAdd55:           "add55",
	ChecksumSum8Zero:        "sum8_zero",
	ChecksumSum16:           "sum16",
	ChecksumSum16Complement: "sum16_complement",
}

func (k ChecksumKind) String() string {
	if name, ok := checksumNames[k]; ok {
		return name
	}
	return fmt.Sprintf("checksum(%d)", int(k))
}

// ParseChecksumKind maps a definition-file name to a ChecksumKind
func ParseChecksumKind(s string) (ChecksumKind, error) {
	if s == "" {
		return ChecksumNone, nil
	}
	for kind, name := range checksumNames {
		if strings.EqualFold(name, s) {
			return kind, nil
		}
	}
	return ChecksumNone, fmt.Errorf("%w: unknown checksum %q", ErrInvalidDefinition, s)
}

// Size returns the number of bytes the checksum occupies on the wire
func (k ChecksumKind) Size() int {
	switch k {
	case ChecksumNone:
		return 0
	case ChecksumCRCPI, ChecksumSum16, ChecksumSum16Complement:
		return 2
	default:
		return 1
	}
}

// Compute returns the checksum bytes for data in wire order
func (k ChecksumKind) Compute(data []byte) []byte {
	switch k {
	case ChecksumCRCPI:
		return CRCPI(data)
	case ChecksumSum8:
		return []byte{Sum8(data)}
	case ChecksumSum8Plus1:
		return []byte{Sum8(data) + 1}
	case ChecksumAdd55:
		return []byte{Add55(data)}
	case ChecksumSum8Zero:
		return []byte{-Sum8(data)}
	case ChecksumSum16:
		s := Sum16(data)
		return []byte{byte(s >> 8), byte(s)}
	case ChecksumSum16Complement:
		s := Sum16Complement(data)
		return []byte{byte(s >> 8), byte(s)}
	default:
		return nil
	}
}

var xmodemTable = crc16.MakeTable(crc16.CRC16_XMODEM)

// CalculateCRC computes CRC-16/XMODEM (poly 0x1021, init 0x0000) for the given data
func CalculateCRC(data []byte) uint16 {
	return crc16.Checksum(data, xmodemTable)
}

// CRCPI computes the PI-family CRC: CRC-16/XMODEM with every reserved
// control byte in the result incremented by one. Returns high byte first.
func CRCPI(data []byte) []byte {
	crc := CalculateCRC(data)
	return []byte{bumpReserved(byte(crc >> 8)), bumpReserved(byte(crc))}
}

func bumpReserved(b byte) byte {
	switch b {
	case ControlNUL, ControlLF, ControlCR, ControlParen:
		return b + 1
	}
	return b
}

// Sum8 returns the low 8 bits of the sum of data
func Sum8(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return sum
}

// Add55 returns 0x55 minus the 8-bit sum of data
func Add55(data []byte) byte {
	return add55Base - Sum8(data)
}

// Sum16 returns the low 16 bits of the sum of data
func Sum16(data []byte) uint16 {
	var sum uint16
	for _, b := range data {
		sum += uint16(b)
	}
	return sum
}

// Sum16Complement returns the two's complement of the 16-bit sum of data
func Sum16Complement(data []byte) uint16 {
	return 1 + (0xFFFF ^ Sum16(data))
}
