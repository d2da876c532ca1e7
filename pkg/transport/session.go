// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Thermoquad/photon/pkg/codec"
)

// ErrTimeout is returned when no complete frame arrives before the deadline
var ErrTimeout = errors.New("response timeout")

// ErrSessionClosed is returned by exchanges on a closed session
var ErrSessionClosed = errors.New("session closed")

// ErrNotListen is returned by Listen for commands that expect a request
var ErrNotListen = errors.New("not a listen command")

// Session defaults
const (
	DefaultReadTimeout = 2 * time.Second
	readChunkSize      = 256
	chunkBacklog       = 64
)

// Session runs request/response exchanges for one protocol over one
// connection. Exchanges are serialized: one command is in flight per
// port at a time.
type Session struct {
	conn    Conn
	engine  *codec.Engine
	logger  *zap.Logger
	stats   *Statistics
	timeout time.Duration
	settle  time.Duration

	mu       sync.Mutex
	last     time.Time
	leftover []byte // bytes received after the last completed frame

	chunks    chan []byte
	readErr   chan error
	done      chan struct{}
	closeOnce sync.Once
}

// SessionOption configures a Session
type SessionOption func(*Session)

// WithSessionLogger sets the logger for exchange diagnostics
func WithSessionLogger(logger *zap.Logger) SessionOption {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithReadTimeout bounds the wait for a response when the caller's
// context carries no deadline
func WithReadTimeout(d time.Duration) SessionOption {
	return func(s *Session) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithSettle sets the minimum quiet time between two exchanges
func WithSettle(d time.Duration) SessionOption {
	return func(s *Session) {
		s.settle = d
	}
}

// WithStatistics records every exchange into stats
func WithStatistics(stats *Statistics) SessionOption {
	return func(s *Session) {
		if stats != nil {
			s.stats = stats
		}
	}
}

// NewSession starts reading from conn in the background
func NewSession(conn Conn, engine *codec.Engine, opts ...SessionOption) *Session {
	s := &Session{
		conn:    conn,
		engine:  engine,
		logger:  zap.NewNop(),
		stats:   NewStatistics(),
		timeout: DefaultReadTimeout,
		chunks:  make(chan []byte, chunkBacklog),
		readErr: make(chan error, 1),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("protocol", engine.Protocol().Name))

	go s.readLoop()
	return s
}

// Engine returns the codec engine used by the session
func (s *Session) Engine() *codec.Engine {
	return s.engine
}

// Statistics returns the session's exchange counters
func (s *Session) Statistics() *Statistics {
	return s.stats
}

// Close stops the session and closes the connection
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.conn.Close()
	})
	return err
}

func (s *Session) readLoop() {
	buf := make([]byte, readChunkSize)
	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			select {
			case s.chunks <- chunk:
			case <-s.done:
				return
			}
		}
		if err != nil {
			select {
			case s.readErr <- err:
			default:
			}
			return
		}
	}
}

// Exchange encodes text, writes the frame and decodes the response.
// When no frame arrives in time the result is the "no response" result
// and the error is ErrTimeout. LISTEN commands write nothing and wait
// for the next pushed frame.
func (s *Session) Exchange(ctx context.Context, text string) (*codec.Result, error) {
	frame, cmd, err := s.engine.Encode(text)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.waitSettle(ctx); err != nil {
		return nil, err
	}
	defer func() { s.last = time.Now() }()

	s.drain()
	start := time.Now()
	if frame != nil {
		s.logger.Debug("tx", zap.String("command", text), zap.String("frame", codec.FormatFrame(frame)))
		if _, err := s.conn.Write(frame); err != nil {
			return nil, fmt.Errorf("write %s: %w", text, err)
		}
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	raw, readErr := s.readFrame(ctx, cmd.Definition.Response)
	if readErr != nil && !errors.Is(readErr, ErrTimeout) {
		return nil, readErr
	}

	res := s.engine.Decode(cmd, raw)
	s.stats.Record(res)
	s.logger.Debug("rx",
		zap.String("command", text),
		zap.String("frame", codec.FormatFrame(raw)),
		zap.Bool("valid", res.Valid),
		zap.Duration("duration", time.Since(start)))
	return res, readErr
}

// Listen decodes pushed frames of a LISTEN command until ctx is done,
// passing each result to fn. Cancellation ends it without error.
func (s *Session) Listen(ctx context.Context, text string, fn func(*codec.Result)) error {
	cmd, err := s.engine.Resolve(text)
	if err != nil {
		return err
	}
	if cmd.Definition.Direction != codec.DirectionListen {
		return fmt.Errorf("%s is a %s command: %w", cmd.Definition.Code, cmd.Definition.Direction, ErrNotListen)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		raw, err := s.readFrame(ctx, cmd.Definition.Response)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		res := s.engine.Decode(cmd, raw)
		s.stats.Record(res)
		fn(res)
	}
}

// readFrame feeds incoming bytes to a frame reader until a frame
// completes. A deadline yields ErrTimeout; cancellation yields ctx.Err().
func (s *Session) readFrame(ctx context.Context, rf codec.ResponseFraming) ([]byte, error) {
	fr := NewFrameReader(rf)
	if frame := s.feed(fr, s.leftover); frame != nil {
		return frame, nil
	}
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				if pending := fr.Pending(); len(pending) > 0 {
					s.logger.Debug("partial frame at deadline", zap.String("bytes", codec.FormatFrame(pending)))
				}
				return nil, ErrTimeout
			}
			return nil, ctx.Err()

		case <-s.done:
			return nil, ErrSessionClosed

		case err := <-s.readErr:
			s.readErr <- err
			select {
			case chunk := <-s.chunks:
				if frame := s.feed(fr, chunk); frame != nil {
					return frame, nil
				}
				continue
			default:
			}
			return nil, fmt.Errorf("read: %w", err)

		case chunk := <-s.chunks:
			if frame := s.feed(fr, chunk); frame != nil {
				return frame, nil
			}
		}
	}
}

// feed passes data to fr and keeps whatever follows a completed frame
// for the next read
func (s *Session) feed(fr *FrameReader, data []byte) []byte {
	s.leftover = nil
	for i, b := range data {
		frame, err := fr.Feed(b)
		if err != nil {
			s.logger.Debug("frame dropped", zap.Error(err))
			continue
		}
		if frame != nil {
			s.leftover = append([]byte(nil), data[i+1:]...)
			return frame
		}
	}
	return nil
}

// drain discards bytes that arrived between exchanges
func (s *Session) drain() {
	s.leftover = nil
	for {
		select {
		case chunk := <-s.chunks:
			s.logger.Debug("discarding stale bytes", zap.Int("bytes", len(chunk)))
		default:
			return
		}
	}
}

func (s *Session) waitSettle(ctx context.Context) error {
	if s.settle <= 0 || s.last.IsZero() {
		return nil
	}
	wait := s.settle - time.Since(s.last)
	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
