// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/Thermoquad/photon/pkg/codec"
	"github.com/Thermoquad/photon/pkg/protocols"
	"github.com/Thermoquad/photon/pkg/transport"
)

// passwordEnv holds the WebSocket password when set
const passwordEnv = "PHOTON_PASSWORD"

// promptedPassword is kept so reconnects do not prompt again
var promptedPassword string

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	if pw := os.Getenv(passwordEnv); pw != "" {
		return pw, nil
	}
	if promptedPassword != "" {
		return promptedPassword, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr)
		promptedPassword = strings.TrimSpace(password)
		return promptedPassword, nil
	}

	fmt.Fprintln(os.Stderr)
	promptedPassword = string(passwordBytes)
	return promptedPassword, nil
}

// OpenConnection opens either a serial or WebSocket connection from the
// loaded configuration
func OpenConnection(ctx context.Context) (transport.Conn, string, error) {
	conn := cfg.Connection

	if conn.URL != "" {
		opts := transport.WebSocketOptions{
			Username:      conn.Username,
			SkipSSLVerify: conn.NoSSLVerify,
		}
		if conn.Username != "" {
			password, err := GetPassword()
			if err != nil {
				return nil, "", err
			}
			opts.Password = password
		}

		ws, err := transport.OpenWebSocket(ctx, conn.URL, opts)
		if err != nil {
			return nil, "", err
		}
		return ws, fmt.Sprintf("WebSocket: %s", conn.URL), nil
	}

	if conn.Port != "" {
		serial, err := transport.OpenSerial(conn.Port, conn.Baud)
		if err != nil {
			return nil, "", err
		}
		return serial, fmt.Sprintf("Serial: %s @ %d baud", conn.Port, conn.Baud), nil
	}

	return nil, "", errors.New("either --port or --url must be specified")
}

// loadEngine builds the codec engine for the configured protocol
func loadEngine() (*protocols.Definition, *codec.Engine, error) {
	def, err := protocols.Load(cfg.Protocol)
	if err != nil {
		return nil, nil, err
	}
	return def, codec.NewEngine(def.Protocol, codec.WithLogger(logger.Named("codec"))), nil
}

// openSession connects and starts a session for the configured protocol.
// Connection failures are reported with the connection exit code.
func openSession(ctx context.Context) (*transport.Session, string, error) {
	_, engine, err := loadEngine()
	if err != nil {
		return nil, "", err
	}

	conn, connInfo, err := OpenConnection(ctx)
	if err != nil {
		return nil, "", connectionError(err)
	}
	logger.Info("connected", zap.String("connection", connInfo), zap.String("protocol", cfg.Protocol))

	session := transport.NewSession(conn, engine,
		transport.WithSessionLogger(logger.Named("session")),
		transport.WithReadTimeout(cfg.ReadTimeout()),
		transport.WithSettle(cfg.Settle()),
	)
	return session, connInfo, nil
}
