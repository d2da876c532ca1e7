// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Thermoquad/photon/pkg/codec"
)

// Statistics tracks exchange outcomes and error rates. It is safe for
// concurrent use.
type Statistics struct {
	mu sync.Mutex
	StatisticsSnapshot
}

// StatisticsSnapshot is a point-in-time copy of the counters
type StatisticsSnapshot struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalExchanges uint64
	ValidResponses uint64
	NoResponse     uint64
	Rejected       uint64
	ChecksumErrors uint64
	FrameErrors    uint64
	OtherErrors    uint64
	FieldErrors    uint64 // readings carrying an error, across valid responses

	// Rates (calculated)
	ExchangeRate float64 // exchanges/sec
	ErrorRate    float64 // failed exchanges/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	s := &Statistics{}
	s.Reset()
	return s
}

// Record classifies one result
func (s *Statistics) Record(res *codec.Result) {
	if res == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.TotalExchanges++
	s.LastUpdateTime = time.Now()

	if res.Valid {
		s.ValidResponses++
		s.FieldErrors += uint64(res.FieldErrors())
		return
	}

	switch {
	case errors.Is(res.Cause, codec.ErrNoResponse):
		s.NoResponse++
	case errors.Is(res.Cause, codec.ErrRejected):
		s.Rejected++
	case errors.Is(res.Cause, codec.ErrChecksum):
		s.ChecksumErrors++
	case errors.Is(res.Cause, codec.ErrFrame):
		s.FrameErrors++
	default:
		s.OtherErrors++
	}
}

// Snapshot returns a copy of the counters with rates calculated
func (s *Statistics) Snapshot() StatisticsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.StatisticsSnapshot
	elapsed := time.Since(snap.StartTime).Seconds()
	if elapsed > 0 {
		snap.ExchangeRate = float64(snap.TotalExchanges) / elapsed
		snap.ErrorRate = float64(snap.Failed()) / elapsed
	}
	return snap
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.StatisticsSnapshot = StatisticsSnapshot{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	return s.Snapshot().String()
}

// Failed returns the number of exchanges that produced no valid response
func (s StatisticsSnapshot) Failed() uint64 {
	return s.NoResponse + s.Rejected + s.ChecksumErrors + s.FrameErrors + s.OtherErrors
}

// SuccessRate returns the share of valid responses in percent
func (s StatisticsSnapshot) SuccessRate() float64 {
	if s.TotalExchanges == 0 {
		return 0
	}
	return float64(s.ValidResponses) * 100.0 / float64(s.TotalExchanges)
}

func (s StatisticsSnapshot) percent(n uint64) float64 {
	if s.TotalExchanges == 0 {
		return 0
	}
	return float64(n) * 100.0 / float64(s.TotalExchanges)
}

// String returns a formatted statistics summary
func (s StatisticsSnapshot) String() string {
	var sb strings.Builder
	elapsed := time.Since(s.StartTime)

	fmt.Fprintf(&sb, "=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	fmt.Fprintf(&sb, "Total Exchanges: %8d\n", s.TotalExchanges)
	fmt.Fprintf(&sb, "Valid Responses: %8d (%.1f%%)\n", s.ValidResponses, s.SuccessRate())

	if s.NoResponse > 0 {
		fmt.Fprintf(&sb, "No Response:     %8d (%.1f%%)\n", s.NoResponse, s.percent(s.NoResponse))
	}
	if s.Rejected > 0 {
		fmt.Fprintf(&sb, "Rejected (NAK):  %8d (%.1f%%)\n", s.Rejected, s.percent(s.Rejected))
	}
	if s.ChecksumErrors > 0 {
		fmt.Fprintf(&sb, "Checksum Errors: %8d (%.1f%%)\n", s.ChecksumErrors, s.percent(s.ChecksumErrors))
	}
	if s.FrameErrors > 0 {
		fmt.Fprintf(&sb, "Frame Errors:    %8d (%.1f%%)\n", s.FrameErrors, s.percent(s.FrameErrors))
	}
	if s.OtherErrors > 0 {
		fmt.Fprintf(&sb, "Other Errors:    %8d (%.1f%%)\n", s.OtherErrors, s.percent(s.OtherErrors))
	}
	if s.FieldErrors > 0 {
		fmt.Fprintf(&sb, "Field Errors:    %8d\n", s.FieldErrors)
	}

	fmt.Fprintf(&sb, "Exchange Rate:   %8.1f exch/sec\n", s.ExchangeRate)
	fmt.Fprintf(&sb, "Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	sb.WriteString("================================\n")
	return sb.String()
}
