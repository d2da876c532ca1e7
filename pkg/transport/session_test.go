// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"bufio"
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Thermoquad/photon/pkg/codec"
	"github.com/Thermoquad/photon/pkg/protocols"
)

// ============================================================
// Fake Device
// ============================================================

// fakeDevice answers carriage-return terminated requests on one end of
// a pipe. respond returns the bytes to send back, or nil for silence.
type fakeDevice struct {
	conn     net.Conn
	mu       sync.Mutex
	requests [][]byte
}

func startDevice(t *testing.T, respond func(req []byte) []byte) (*fakeDevice, net.Conn) {
	t.Helper()
	host, device := net.Pipe()
	d := &fakeDevice{conn: device}

	go func() {
		reader := bufio.NewReader(device)
		for {
			req, err := reader.ReadBytes('\r')
			if err != nil {
				return
			}
			d.mu.Lock()
			d.requests = append(d.requests, req)
			d.mu.Unlock()
			if resp := respond(req); resp != nil {
				if _, err := device.Write(resp); err != nil {
					return
				}
			}
		}
	}()

	t.Cleanup(func() { device.Close() })
	return d, host
}

func (d *fakeDevice) Requests() [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([][]byte(nil), d.requests...)
}

func newSession(t *testing.T, protocol string, conn Conn, opts ...SessionOption) *Session {
	t.Helper()
	def, err := protocols.Load(protocol)
	require.NoError(t, err)

	opts = append([]SessionOption{WithSessionLogger(zaptest.NewLogger(t))}, opts...)
	s := NewSession(conn, codec.NewEngine(def.Protocol), opts...)
	t.Cleanup(func() { s.Close() })
	return s
}

// ============================================================
// Exchanges
// ============================================================

func TestSessionExchange(t *testing.T) {
	device, conn := startDevice(t, func(req []byte) []byte {
		if string(req[:3]) == "QPI" {
			return piFrame("(PI30")
		}
		return nil
	})
	s := newSession(t, "pi30", conn)

	res, err := s.Exchange(context.Background(), "QPI")
	require.NoError(t, err)
	require.True(t, res.Valid, res.Errors)

	rd, ok := res.Reading("Protocol ID")
	require.True(t, ok)
	assert.Equal(t, "PI30", rd.Value.String())

	reqs := device.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, piFrame("QPI"), reqs[0])

	snap := s.Statistics().Snapshot()
	assert.Equal(t, uint64(1), snap.TotalExchanges)
	assert.Equal(t, uint64(1), snap.ValidResponses)
}

func TestSessionExchangeRejected(t *testing.T) {
	_, conn := startDevice(t, func(req []byte) []byte {
		return piFrame("(NAK")
	})
	s := newSession(t, "pi30", conn)

	res, err := s.Exchange(context.Background(), "PBT01")
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.True(t, codec.IsRejected(res))
	assert.Empty(t, res.Readings)
	assert.Equal(t, uint64(1), s.Statistics().Snapshot().Rejected)
}

func TestSessionExchangeTimeout(t *testing.T) {
	_, conn := startDevice(t, func(req []byte) []byte { return nil })
	s := newSession(t, "pi30", conn, WithReadTimeout(50*time.Millisecond))

	res, err := s.Exchange(context.Background(), "QPIGS")
	assert.ErrorIs(t, err, ErrTimeout)
	require.NotNil(t, res)
	assert.False(t, res.Valid)
	assert.Equal(t, []string{codec.ErrNoResponse.Error()}, res.Errors)
	assert.Equal(t, uint64(1), s.Statistics().Snapshot().NoResponse)
}

func TestSessionExchangeCanceled(t *testing.T) {
	_, conn := startDevice(t, func(req []byte) []byte { return nil })
	s := newSession(t, "pi30", conn)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	res, err := s.Exchange(ctx, "QPIGS")
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestSessionUnknownCommand(t *testing.T) {
	device, conn := startDevice(t, func(req []byte) []byte { return nil })
	s := newSession(t, "pi30", conn)

	_, err := s.Exchange(context.Background(), "QXYZ")
	assert.ErrorIs(t, err, codec.ErrUnknownCommand)
	assert.Empty(t, device.Requests())
	assert.Zero(t, s.Statistics().Snapshot().TotalExchanges)
}

func TestSessionSequentialExchanges(t *testing.T) {
	_, conn := startDevice(t, func(req []byte) []byte {
		switch string(req[:4]) {
		case "QMOD":
			return piFrame("(B")
		case "QPI\xbe":
			return piFrame("(PI30")
		}
		return nil
	})
	s := newSession(t, "pi30", conn, WithSettle(5*time.Millisecond))

	for i := 0; i < 3; i++ {
		res, err := s.Exchange(context.Background(), "QMOD")
		require.NoError(t, err)
		rd, ok := res.Reading("Device Mode")
		require.True(t, ok)
		assert.Equal(t, "Battery", rd.Value.String())

		res, err = s.Exchange(context.Background(), "QPI")
		require.NoError(t, err)
		assert.True(t, res.Valid)
	}
	assert.Equal(t, uint64(6), s.Statistics().Snapshot().ValidResponses)
}

// ============================================================
// Listen
// ============================================================

func TestSessionListen(t *testing.T) {
	def, err := protocols.Load("vedirect")
	require.NoError(t, err)

	var block []byte
	for _, v := range def.Vectors {
		if v.Command == "text" {
			block = v.Response
		}
	}
	require.NotEmpty(t, block)

	host, device := net.Pipe()
	t.Cleanup(func() { device.Close() })
	s := newSession(t, "vedirect", host)

	go func() {
		stream := append(append([]byte("\x00\x00"), block...), block...)
		device.Write(stream)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var results []*codec.Result
	err = s.Listen(ctx, "text", func(res *codec.Result) {
		results = append(results, res)
		if len(results) == 2 {
			cancel()
		}
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, res := range results {
		assert.True(t, res.Valid, res.Errors)
		rd, ok := res.Reading("Battery Voltage")
		require.True(t, ok)
		assert.Equal(t, 13.28, rd.Value.Float())
	}
}

func TestSessionListenRejectsQuery(t *testing.T) {
	_, conn := startDevice(t, func(req []byte) []byte { return nil })
	s := newSession(t, "vedirect", conn)

	err := s.Listen(context.Background(), "ping", func(*codec.Result) {})
	assert.ErrorIs(t, err, ErrNotListen)
}

func TestSessionReadError(t *testing.T) {
	host, device := net.Pipe()
	s := newSession(t, "pi30", host)

	go func() {
		reader := bufio.NewReader(device)
		reader.ReadBytes('\r')
		device.Close()
	}()

	_, err := s.Exchange(context.Background(), "QPI")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTimeout)
}
