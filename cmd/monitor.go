// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/photon/pkg/codec"
	"github.com/Thermoquad/photon/pkg/transport"
)

var monitorInterval int

var monitorCmd = &cobra.Command{
	Use:   "monitor <command>",
	Short: "Interactive TUI polling a device",
	Long: `Poll one command at a fixed interval and show the latest readings in a
terminal UI, together with exchange statistics and an event log.

Listen commands are not polled: every pushed frame updates the display.

Features:
  - Latest readings table
  - Statistics (valid, timeouts, NAKs, checksum errors, rates)
  - Event logging
  - Ad-hoc commands (Tab to focus the input, Enter to send)
  - Automatic reconnection on connection loss

Example:
  photon --port /dev/ttyUSB0 monitor QPIGS --interval 2000`,
	Args: cobra.ExactArgs(1),
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().IntVar(&monitorInterval, "interval", 5000, "Poll interval in milliseconds")
}

// Reconnection backoff
const (
	minBackoff = 1 * time.Second
	maxBackoff = 30 * time.Second
)

// pollManager owns the session: it polls, runs ad-hoc commands and
// reconnects when the link drops
type pollManager struct {
	engine   *codec.Engine
	stats    *transport.Statistics
	command  codec.Resolved
	interval time.Duration

	mu      sync.Mutex
	session *transport.Session

	p      *tea.Program
	adhoc  chan string
	ctx    context.Context
	cancel context.CancelFunc
}

func runMonitor(cmd *cobra.Command, args []string) error {
	_, engine, err := loadEngine()
	if err != nil {
		return err
	}
	resolved, err := engine.Resolve(args[0])
	if err != nil {
		return failure(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pm := &pollManager{
		engine:   engine,
		stats:    transport.NewStatistics(),
		command:  resolved,
		interval: time.Duration(monitorInterval) * time.Millisecond,
		adhoc:    make(chan string, 8),
		ctx:      ctx,
		cancel:   cancel,
	}

	connInfo, err := pm.connect()
	if err != nil {
		return connectionError(err)
	}
	defer pm.close()

	m := initialMonitorModel(monitorOptions{
		connInfo:  connInfo,
		protocol:  engine.Protocol().Name,
		command:   args[0],
		listening: resolved.Definition.Direction == codec.DirectionListen,
		interval:  pm.interval,
		stats:     pm.stats,
		send:      pm.submit,
	})

	p := tea.NewProgram(m, tea.WithAltScreen())
	pm.p = p

	go pm.run()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

func (pm *pollManager) connect() (string, error) {
	conn, connInfo, err := OpenConnection(pm.ctx)
	if err != nil {
		return "", err
	}
	session := transport.NewSession(conn, pm.engine,
		transport.WithSessionLogger(logger.Named("session")),
		transport.WithReadTimeout(cfg.ReadTimeout()),
		transport.WithSettle(cfg.Settle()),
		transport.WithStatistics(pm.stats),
	)

	pm.mu.Lock()
	pm.session = session
	pm.mu.Unlock()
	return connInfo, nil
}

func (pm *pollManager) getSession() *transport.Session {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return pm.session
}

func (pm *pollManager) close() {
	pm.cancel()
	if s := pm.getSession(); s != nil {
		s.Close()
	}
}

// submit queues an ad-hoc command; it reports false when the queue is full
func (pm *pollManager) submit(text string) bool {
	select {
	case pm.adhoc <- text:
		return true
	default:
		return false
	}
}

// run drives the session until shutdown, reconnecting as needed
func (pm *pollManager) run() {
	for {
		var err error
		if pm.command.Definition.Direction == codec.DirectionListen {
			err = pm.listen()
		} else {
			err = pm.poll()
		}
		if pm.ctx.Err() != nil {
			return
		}

		logger.Warn("connection lost", zap.Error(err))
		pm.p.Send(connectionLostMsg{err: err})
		if !pm.reconnect() {
			return
		}
	}
}

// poll exchanges the polled command every interval and ad-hoc commands
// as they arrive. It returns when the link fails or on shutdown.
func (pm *pollManager) poll() error {
	ticker := time.NewTicker(pm.interval)
	defer ticker.Stop()

	if err := pm.exchange(pm.command.Text, false); err != nil {
		return err
	}
	for {
		select {
		case <-pm.ctx.Done():
			return nil
		case <-ticker.C:
			if err := pm.exchange(pm.command.Text, false); err != nil {
				return err
			}
		case text := <-pm.adhoc:
			if err := pm.exchange(text, true); err != nil {
				return err
			}
		}
	}
}

// exchange runs one command and reports it to the TUI. Only link
// failures are returned.
func (pm *pollManager) exchange(text string, adhoc bool) error {
	start := time.Now()
	res, err := pm.getSession().Exchange(pm.ctx, text)
	msg := resultMsg{command: text, adhoc: adhoc, res: res, err: err, elapsed: time.Since(start)}

	switch {
	case err == nil, errors.Is(err, transport.ErrTimeout):
	case errors.Is(err, context.Canceled):
		return nil
	case errors.Is(err, codec.ErrUnknownCommand), errors.Is(err, codec.ErrInvalidParameter):
	default:
		return err
	}
	pm.p.Send(msg)
	return nil
}

func (pm *pollManager) listen() error {
	return pm.getSession().Listen(pm.ctx, pm.command.Text, func(res *codec.Result) {
		pm.p.Send(resultMsg{command: pm.command.Text, res: res})
	})
}

// reconnect attempts to reconnect with exponential backoff
// Returns false if shutdown was requested during reconnection
func (pm *pollManager) reconnect() bool {
	if s := pm.getSession(); s != nil {
		s.Close()
	}

	backoff := minBackoff
	for {
		select {
		case <-pm.ctx.Done():
			return false
		case <-time.After(backoff):
		}

		connInfo, err := pm.connect()
		if err == nil {
			pm.p.Send(reconnectedMsg{connInfo: connInfo})
			return true
		}
		logger.Debug("reconnect failed", zap.Error(err), zap.Duration("backoff", backoff))

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
