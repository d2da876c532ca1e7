// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/photon/pkg/codec"
	"github.com/Thermoquad/photon/pkg/protocols"
)

var selftestShowPassed bool

var selftestCmd = &cobra.Command{
	Use:   "selftest [protocol]...",
	Short: "Replay the test vectors embedded in the protocol definitions",
	Long: `Encode every command that carries a test vector and compare the frame, then
decode the captured response and check the expected readings.

Without arguments every embedded protocol is tested.

Exit codes:
  0 - All vectors passed
  1 - One or more vectors failed`,
	RunE: runSelftest,
}

func init() {
	rootCmd.AddCommand(selftestCmd)
	selftestCmd.Flags().BoolVarP(&selftestShowPassed, "show-passed", "s", false, "List passing vectors too")
}

func runSelftest(cmd *cobra.Command, args []string) error {
	names := args
	if len(names) == 0 {
		names = protocols.Names()
	}

	passed, failed := 0, 0
	for _, name := range names {
		def, err := protocols.Load(name)
		if err != nil {
			return failure(err)
		}
		engine := codec.NewEngine(def.Protocol, codec.WithLogger(logger.Named("selftest")))

		for _, r := range protocols.RunVectors(def, engine) {
			label := fmt.Sprintf("%s %s", name, r.Vector.Command)
			if r.Passed() {
				passed++
				if selftestShowPassed {
					fmt.Printf("PASS  %s\n", label)
				}
				continue
			}
			failed++
			fmt.Printf("FAIL  %s\n", label)
			for _, f := range r.Failures {
				fmt.Printf("      %s\n", f)
			}
		}
	}

	fmt.Printf("\n%d passed, %d failed\n", passed, failed)
	if failed > 0 {
		return failure(fmt.Errorf("%d vectors failed", failed))
	}
	return nil
}
