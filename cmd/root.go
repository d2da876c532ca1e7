// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/carlmjohnson/versioninfo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/Thermoquad/photon/internal/config"
)

// Exit codes
const (
	exitOK         = 0
	exitFailure    = 1 // protocol failure, timeout, invalid response
	exitConnection = 2 // connection could not be opened or was lost
)

var (
	v       = viper.New()
	cfg     *config.Config
	logger  = zap.NewNop()
	verbose bool
)

// exitError carries the process exit code of a failed command
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func failure(err error) error {
	return &exitError{code: exitFailure, err: err}
}

func connectionError(err error) error {
	return &exitError{code: exitConnection, err: err}
}

var rootCmd = &cobra.Command{
	Use:   "photon",
	Short: "Inverter and BMS protocol codec",
	Long: `Photon - encode commands for and decode responses from solar inverters and
battery management systems.

Protocols are table driven and embedded in the binary: Voltronic/MPP-Solar
PI30, PI30MAX and PI17 inverters, JK, Daly and JBD battery monitors, and
Victron VE.Direct devices.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 2400]
  WebSocket: --url ws://host/path [--username user]

For WebSocket authentication, the password is read from the PHOTON_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.

Every flag can also be set in a YAML config file (--config or CONFIG_FILE) or
through PHOTON_ environment variables, e.g. PHOTON_CONNECTION_PORT.`,
	Version:           versioninfo.Short(),
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initConfig,
}

func init() {
	flags := rootCmd.PersistentFlags()

	// Serial connection flags
	flags.StringP("port", "p", "", "Serial port device")
	flags.IntP("baud", "b", 2400, "Baud rate (serial only)")

	// WebSocket connection flags
	flags.StringP("url", "u", "", "WebSocket URL (ws:// or wss://)")
	flags.String("username", "", "Username for HTTP Basic auth")
	flags.Bool("no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	flags.StringP("protocol", "P", "pi30", "Protocol name (see 'photon protocols')")
	flags.StringP("format", "f", "text", "Output format (text, json, cbor, hex)")
	flags.Int("timeout", 2000, "Response timeout in milliseconds")
	flags.Int("settle", 0, "Minimum quiet time between commands in milliseconds")
	flags.String("config", "", "YAML config file")
	flags.String("log-level", "warn", "Log level (debug, info, warn, error)")
	flags.BoolVar(&verbose, "verbose", false, "Development logging to stderr")

	bindFlag("connection.port", "port")
	bindFlag("connection.baud", "baud")
	bindFlag("connection.url", "url")
	bindFlag("connection.username", "username")
	bindFlag("connection.no_ssl_verify", "no-ssl-verify")
	bindFlag("protocol", "protocol")
	bindFlag("output.format", "format")
	bindFlag("timeouts.read_millis", "timeout")
	bindFlag("timeouts.settle_millis", "settle")
	bindFlag("config", "config")
	bindFlag("log_level", "log-level")
}

func bindFlag(key, flag string) {
	if err := v.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(v)
	if err != nil {
		return err
	}
	cfg = loaded

	zapCfg := zap.NewProductionConfig()
	if verbose {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	}
	built, err := zapCfg.Build()
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	logger = built.Named("photon")

	config.SafePrint(*cfg, logger)
	return nil
}

// Execute runs the root command and returns the process exit code
func Execute() int {
	defer func() { _ = logger.Sync() }()

	err := rootCmd.Execute()
	if err == nil {
		return exitOK
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	var exit *exitError
	if errors.As(err, &exit) {
		return exit.code
	}
	return exitFailure
}
