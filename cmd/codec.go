// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/photon/pkg/codec"
)

var encodeCmd = &cobra.Command{
	Use:   "encode <command>",
	Short: "Print the request frame of a command",
	Long: `Encode a command of the selected protocol and print the frame as hex and as
escaped text. Nothing is sent; no connection is needed.

Examples:
  photon encode QPIGS
  photon --protocol jbd encode basicInfo
  photon encode POP02`,
	Args: cobra.ExactArgs(1),
	RunE: runEncode,
}

var decodeText bool

var decodeCmd = &cobra.Command{
	Use:   "decode <command> <response>",
	Short: "Decode a captured response offline",
	Long: `Decode a response captured from a device as if it had answered <command>.

The response is hex by default; spaces are ignored, so output of 'photon encode'
or a logic analyzer can be pasted directly. With --text the response is taken
as a Go-quoted string, e.g. '(230.0 50.0\r'.

Exit codes:
  0 - Response is valid
  1 - Response is invalid (checksum, framing, NAK)`,
	Args: cobra.MinimumNArgs(2),
	RunE: runDecode,
}

func init() {
	rootCmd.AddCommand(encodeCmd)
	rootCmd.AddCommand(decodeCmd)
	decodeCmd.Flags().BoolVar(&decodeText, "text", false, "Response is escaped text instead of hex")
}

func runEncode(cmd *cobra.Command, args []string) error {
	_, engine, err := loadEngine()
	if err != nil {
		return err
	}

	frame, resolved, err := engine.Encode(args[0])
	if err != nil {
		return failure(err)
	}
	if frame == nil {
		fmt.Printf("%s is a %s command: nothing is sent\n", resolved.Definition.Code, resolved.Definition.Direction)
		return nil
	}

	fmt.Printf("Hex:   %s\n", codec.FormatFrame(frame))
	fmt.Printf("Text:  %s\n", escapeFrame(frame))
	fmt.Printf("Bytes: %d\n", len(frame))
	return nil
}

func runDecode(cmd *cobra.Command, args []string) error {
	_, engine, err := loadEngine()
	if err != nil {
		return err
	}

	raw, err := parseCapture(strings.Join(args[1:], " "), decodeText)
	if err != nil {
		return err
	}

	res := engine.DecodeText(args[0], raw)
	if err := writeResult(os.Stdout, res, cfg.Output.Format); err != nil {
		return err
	}
	if !res.Valid {
		return failure(res.Cause)
	}
	return nil
}

// parseCapture turns a pasted response into bytes
func parseCapture(s string, text bool) ([]byte, error) {
	if text {
		unquoted, err := strconv.Unquote(`"` + strings.ReplaceAll(s, `"`, `\"`) + `"`)
		if err != nil {
			return nil, fmt.Errorf("invalid escaped text: %w", err)
		}
		return []byte(unquoted), nil
	}

	clean := strings.NewReplacer(" ", "", ":", "", "\t", "", "\n", "").Replace(s)
	clean = strings.TrimPrefix(strings.TrimPrefix(clean, "0x"), "0X")
	raw, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid hex response: %w", err)
	}
	return raw, nil
}
