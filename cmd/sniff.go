// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var sniffDuration int

var sniffCmd = &cobra.Command{
	Use:   "sniff",
	Short: "Dump raw bytes received on the connection",
	Long: `Connect and print every chunk of bytes received, as a hex dump with
timestamps, without decoding anything. Nothing is sent.

Useful for checking baud rate, wiring and bridge stability before decoding.

Exit codes:
  0 - Duration elapsed or interrupted
  2 - Connection error`,
	Args: cobra.NoArgs,
	RunE: runSniff,
}

func init() {
	rootCmd.AddCommand(sniffCmd)
	sniffCmd.Flags().IntVar(&sniffDuration, "duration", 0, "Stop after this many seconds (0 runs until Ctrl+C)")
}

func runSniff(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if sniffDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(sniffDuration)*time.Second)
		defer cancel()
	}

	conn, connInfo, err := OpenConnection(ctx)
	if err != nil {
		return connectionError(err)
	}
	defer conn.Close()

	fmt.Printf("Photon - Raw Byte Dump\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	readChan := make(chan []byte, 100)
	errChan := make(chan error, 1)

	go func() {
		buf := make([]byte, 256)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				errChan <- err
				return
			}
			if n > 0 {
				data := make([]byte, n)
				copy(data, buf[:n])
				readChan <- data
			}
		}
	}()

	start := time.Now()
	total := 0
	for {
		select {
		case <-ctx.Done():
			fmt.Printf("\nReceived %d bytes in %.1f seconds\n", total, time.Since(start).Seconds())
			return nil

		case err := <-errChan:
			fmt.Printf("\nReceived %d bytes before the connection failed\n", total)
			return connectionError(err)

		case data := <-readChan:
			total += len(data)
			fmt.Printf("[%s] %d bytes\n", time.Now().Format("15:04:05.000"), len(data))
			fmt.Fprint(os.Stdout, hex.Dump(data))
		}
	}
}
