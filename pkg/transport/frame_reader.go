// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"bytes"
	"fmt"

	"github.com/Thermoquad/photon/pkg/codec"
)

// FrameReader assembles response frames from a byte stream. It discards
// bytes until the sync marker, then completes a frame by the first rule
// the framing declares: fixed length, length byte, trailer marker,
// terminator.
type FrameReader struct {
	rf     codec.ResponseFraming
	sync   []byte
	buffer []byte
	synced bool
}

// NewFrameReader creates a reader for frames described by rf
func NewFrameReader(rf codec.ResponseFraming) *FrameReader {
	r := &FrameReader{
		rf:     rf,
		sync:   rf.SyncMarker(),
		buffer: make([]byte, 0, 64),
	}
	r.Reset()
	return r
}

// Reset discards any partial frame
func (r *FrameReader) Reset() {
	r.buffer = r.buffer[:0]
	r.synced = len(r.sync) == 0
}

// Pending returns the bytes of the frame in progress
func (r *FrameReader) Pending() []byte {
	return r.buffer
}

// Feed processes a single byte. It returns the completed frame, or nil
// while the frame is incomplete. An oversized frame is dropped and
// reported as an error; the reader then waits for the next sync marker.
func (r *FrameReader) Feed(b byte) ([]byte, error) {
	r.buffer = append(r.buffer, b)

	if !r.synced {
		if len(r.buffer) > len(r.sync) {
			r.buffer = r.buffer[1:]
		}
		if bytes.Equal(r.buffer, r.sync) {
			r.synced = true
			r.buffer = append(make([]byte, 0, 64), r.buffer...)
		}
		return nil, nil
	}

	if len(r.buffer) > codec.MaxFrameSize {
		r.Reset()
		return nil, fmt.Errorf("%w: frame exceeds %d bytes", codec.ErrFrame, codec.MaxFrameSize)
	}

	done, err := r.complete()
	if err != nil {
		r.Reset()
		return nil, err
	}
	if !done {
		return nil, nil
	}
	frame := append([]byte(nil), r.buffer...)
	r.Reset()
	return frame, nil
}

func (r *FrameReader) complete() (bool, error) {
	n := len(r.buffer)
	switch {
	case r.rf.FixedLength > 0:
		return n == r.rf.FixedLength, nil

	case r.rf.LengthOffset > 0:
		if n <= r.rf.LengthOffset {
			return false, nil
		}
		want := int(r.buffer[r.rf.LengthOffset]) + r.rf.LengthOverhead
		if want <= r.rf.LengthOffset {
			return false, fmt.Errorf("%w: length byte declares %d bytes", codec.ErrFrame, want)
		}
		return n == want, nil

	case len(r.rf.TrailerMarker) > 0:
		idx := bytes.Index(r.buffer, r.rf.TrailerMarker)
		if idx < 0 {
			return false, nil
		}
		return n == idx+len(r.rf.TrailerMarker)+r.rf.Checksum.Size(), nil

	case len(r.rf.Terminator) > 0:
		return n > len(r.sync) && bytes.HasSuffix(r.buffer, r.rf.Terminator), nil
	}
	return false, nil
}
