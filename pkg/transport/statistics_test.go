// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/photon/pkg/codec"
)

func failedResult(cause error) *codec.Result {
	return &codec.Result{Cause: cause, Errors: []string{cause.Error()}}
}

func TestStatisticsRecord(t *testing.T) {
	s := NewStatistics()

	s.Record(&codec.Result{Valid: true, Readings: []codec.Reading{
		{Name: "a"},
		{Name: "b", Err: errors.New("bad")},
	}})
	s.Record(failedResult(codec.ErrNoResponse))
	s.Record(failedResult(fmt.Errorf("%w: (NAK", codec.ErrRejected)))
	s.Record(failedResult(&codec.ChecksumError{Kind: codec.ChecksumCRCPI}))
	s.Record(failedResult(fmt.Errorf("%w: truncated", codec.ErrFrame)))
	s.Record(failedResult(codec.ErrUnknownCommand))
	s.Record(nil)

	snap := s.Snapshot()
	assert.Equal(t, uint64(6), snap.TotalExchanges)
	assert.Equal(t, uint64(1), snap.ValidResponses)
	assert.Equal(t, uint64(1), snap.FieldErrors)
	assert.Equal(t, uint64(1), snap.NoResponse)
	assert.Equal(t, uint64(1), snap.Rejected)
	assert.Equal(t, uint64(1), snap.ChecksumErrors)
	assert.Equal(t, uint64(1), snap.FrameErrors)
	assert.Equal(t, uint64(1), snap.OtherErrors)
	assert.Equal(t, uint64(5), snap.Failed())
	assert.InDelta(t, 16.67, snap.SuccessRate(), 0.01)
}

func TestStatisticsReset(t *testing.T) {
	s := NewStatistics()
	s.Record(failedResult(codec.ErrNoResponse))
	s.Reset()

	snap := s.Snapshot()
	assert.Zero(t, snap.TotalExchanges)
	assert.Zero(t, snap.SuccessRate())
	assert.False(t, snap.StartTime.IsZero())
}

func TestStatisticsString(t *testing.T) {
	s := NewStatistics()
	s.Record(&codec.Result{Valid: true})
	s.Record(failedResult(codec.ErrNoResponse))

	out := s.String()
	assert.Contains(t, out, "Total Exchanges:        2")
	assert.Contains(t, out, "Valid Responses:        1 (50.0%)")
	assert.Contains(t, out, "No Response:            1 (50.0%)")
	assert.NotContains(t, out, "Checksum Errors")
}

func TestStatisticsConcurrentRecord(t *testing.T) {
	s := NewStatistics()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.Record(&codec.Result{Valid: true})
			}
		}()
	}
	wg.Wait()

	snap := s.Snapshot()
	require.Equal(t, uint64(800), snap.TotalExchanges)
	assert.Equal(t, 100.0, snap.SuccessRate())
}
