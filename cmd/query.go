// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/photon/pkg/codec"
	"github.com/Thermoquad/photon/pkg/transport"
)

var (
	queryCount    int
	queryInterval int
)

var queryCmd = &cobra.Command{
	Use:   "query <command>...",
	Short: "Send commands to a device and decode the responses",
	Long: `Send each command over the connection, wait for the response and print the
decoded result. Commands run one at a time, in order.

With --count the command list is repeated, which makes this a link test: a
statistics summary is printed at the end.

Examples:
  photon --port /dev/ttyUSB0 query QPI QPIGS
  photon --port /dev/ttyUSB0 --protocol daly query soc --count 10

Exit codes:
  0 - Every response was valid
  1 - At least one response was invalid, rejected or timed out
  2 - Connection error`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().IntVarP(&queryCount, "count", "n", 1, "Number of times to send the command list")
	queryCmd.Flags().IntVar(&queryInterval, "interval", 1000, "Pause between rounds in milliseconds")
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	session, connInfo, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer session.Close()

	if cfg.Output.Format == "text" {
		fmt.Printf("Photon - Query\n")
		fmt.Printf("Connection: %s\n", connInfo)
		fmt.Printf("Protocol: %s\n\n", cfg.Protocol)
	}

	failed := 0
	for round := 0; round < queryCount; round++ {
		if round > 0 {
			select {
			case <-ctx.Done():
				return summarize(session, failed)
			case <-time.After(time.Duration(queryInterval) * time.Millisecond):
			}
		}

		for _, text := range args {
			res, err := session.Exchange(ctx, text)
			switch {
			case errors.Is(err, context.Canceled):
				return summarize(session, failed)
			case errors.Is(err, transport.ErrTimeout):
				// reported through the result
			case err != nil:
				return exchangeError(err)
			}

			if err := writeResult(os.Stdout, res, cfg.Output.Format); err != nil {
				return err
			}
			if !res.Valid {
				failed++
			}
		}
	}

	return summarize(session, failed)
}

func summarize(session *transport.Session, failed int) error {
	snap := session.Statistics().Snapshot()
	if queryCount > 1 && cfg.Output.Format == "text" {
		fmt.Println()
		fmt.Print(snap.String())
	}
	if failed > 0 {
		return failure(fmt.Errorf("%d of %d exchanges failed", failed, snap.TotalExchanges))
	}
	return nil
}

// exchangeError maps a session error to an exit code: bad command text is
// a usage failure, anything else came from the link
func exchangeError(err error) error {
	if errors.Is(err, codec.ErrUnknownCommand) || errors.Is(err, codec.ErrInvalidParameter) ||
		errors.Is(err, transport.ErrNotListen) {
		return failure(err)
	}
	return connectionError(err)
}
