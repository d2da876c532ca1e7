// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package codec

import (
	"bytes"
	"strconv"
)

// ValidateFrame checks raw against the response framing rules and returns
// the payload with prefix, length digits, checksum and terminator removed.
//
// Checks run in order: empty input, NAK patterns, terminator, fixed length,
// prefix, checksum, length digits. The first failure is returned.
func ValidateFrame(raw []byte, rf ResponseFraming) ([]byte, error) {
	if len(raw) == 0 {
		return nil, ErrNoResponse
	}
	for _, nak := range rf.NAK {
		if matchesNAK(raw, nak) {
			return nil, ErrRejected
		}
	}

	body := raw
	if len(rf.Terminator) > 0 {
		if !bytes.HasSuffix(body, rf.Terminator) {
			return nil, frameError("missing terminator %q", rf.Terminator)
		}
		body = body[:len(body)-len(rf.Terminator)]
	}
	if rf.FixedLength > 0 && len(raw) != rf.FixedLength {
		return nil, frameError("expected %d bytes, got %d", rf.FixedLength, len(raw))
	}
	if rf.LengthOffset > 0 {
		if len(raw) <= rf.LengthOffset {
			return nil, frameError("frame too short for length byte")
		}
		if want := int(raw[rf.LengthOffset]) + rf.LengthOverhead; len(raw) != want {
			return nil, frameError("length byte declares %d bytes, got %d", want, len(raw))
		}
	}
	if !bytes.HasPrefix(body, rf.Prefix) {
		return nil, frameError("missing prefix %q", rf.Prefix)
	}

	start := len(rf.Prefix)
	if rf.ASCIIHex {
		decoded, err := decodeHexText(string(body[start:]))
		if err != nil {
			return nil, frameError("body is not hex: %v", err)
		}
		body = decoded
		start = 0
	}

	size := rf.Checksum.Size()
	if len(body) < start+size {
		return nil, frameError("frame too short: %d bytes", len(raw))
	}
	end := len(body) - size
	if size > 0 {
		if rf.ChecksumFrom > end {
			return nil, frameError("checksum offset %d beyond frame", rf.ChecksumFrom)
		}
		expected := rf.Checksum.Compute(body[rf.ChecksumFrom:end])
		actual := body[end:]
		if !bytes.Equal(expected, actual) {
			return nil, &ChecksumError{
				Kind:     rf.Checksum,
				Expected: expected,
				Actual:   append([]byte(nil), actual...),
			}
		}
	}

	payload := body[start:end]
	if rf.LengthDigits > 0 {
		if len(payload) < rf.LengthDigits {
			return nil, frameError("frame too short for length digits")
		}
		declared, err := strconv.Atoi(string(payload[:rf.LengthDigits]))
		if err != nil {
			return nil, frameError("bad length digits %q", payload[:rf.LengthDigits])
		}
		payload = payload[rf.LengthDigits:]
		if want := len(payload) + size + len(rf.Terminator); declared != want {
			return nil, frameError("length digits declare %d bytes, got %d", declared, want)
		}
	}
	return payload, nil
}

// matchesNAK reports whether raw is a rejection. Printable patterns may
// appear anywhere in the frame; binary patterns only at its start, since
// the same bytes can occur inside data.
func matchesNAK(raw, nak []byte) bool {
	if len(nak) == 0 {
		return false
	}
	for _, b := range nak {
		if b < 0x20 || b > 0x7e {
			return bytes.HasPrefix(raw, nak)
		}
	}
	return bytes.Contains(raw, nak)
}
