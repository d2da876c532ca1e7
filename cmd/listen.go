// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/photon/pkg/codec"
)

var listenShowInvalid bool

var listenCmd = &cobra.Command{
	Use:   "listen <command>",
	Short: "Decode frames a device pushes on its own",
	Long: `Continuously decode and display frames of a listen command as they arrive,
for devices that stream data without being asked (e.g. VE.Direct text blocks).

Invalid frames are counted and logged; --show-invalid prints them as well.
A statistics summary is printed on exit.

Example:
  photon --port /dev/ttyUSB0 --baud 19200 --protocol vedirect listen text`,
	Args: cobra.ExactArgs(1),
	RunE: runListen,
}

func init() {
	rootCmd.AddCommand(listenCmd)
	listenCmd.Flags().BoolVar(&listenShowInvalid, "show-invalid", false, "Print invalid frames too")
}

func runListen(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	session, connInfo, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer session.Close()

	if cfg.Output.Format == "text" {
		fmt.Printf("Photon - Listen\n")
		fmt.Printf("Connection: %s\n", connInfo)
		fmt.Printf("Press Ctrl+C to exit\n\n")
	}

	err = session.Listen(ctx, args[0], func(res *codec.Result) {
		if !res.Valid {
			logger.Warn("invalid frame", zap.Strings("errors", res.Errors))
			if !listenShowInvalid {
				return
			}
		}
		if cfg.Output.Format == "text" {
			fmt.Printf("[%s] ", time.Now().Format("15:04:05.000"))
		}
		if err := writeResult(os.Stdout, res, cfg.Output.Format); err != nil {
			logger.Error("write failed", zap.Error(err))
		}
	})

	if cfg.Output.Format == "text" {
		fmt.Println()
		fmt.Print(session.Statistics().String())
	}
	if err != nil {
		return exchangeError(err)
	}
	return nil
}
