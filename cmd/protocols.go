// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/photon/pkg/codec"
	"github.com/Thermoquad/photon/pkg/protocols"
	"github.com/Thermoquad/photon/pkg/transport"
)

var protocolsCmd = &cobra.Command{
	Use:   "protocols",
	Short: "List the embedded protocols",
	Args:  cobra.NoArgs,
	RunE:  runProtocols,
}

var commandsFields bool

var commandsCmd = &cobra.Command{
	Use:   "commands",
	Short: "List the commands of the selected protocol",
	Long: `List every command the selected protocol (--protocol) defines.

With --verbose each command is followed by its field layout.`,
	Args: cobra.NoArgs,
	RunE: runCommands,
}

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports present on this machine",
	Args:  cobra.NoArgs,
	RunE:  runPorts,
}

func init() {
	rootCmd.AddCommand(protocolsCmd)
	rootCmd.AddCommand(commandsCmd)
	rootCmd.AddCommand(portsCmd)
	commandsCmd.Flags().BoolVarP(&commandsFields, "fields", "F", false, "Show field definitions")
}

func runProtocols(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tCOMMANDS\tDESCRIPTION")
	for _, name := range protocols.Names() {
		def, err := protocols.Load(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%d\t%s\n", name, len(def.Protocol.Commands()), def.Protocol.Description)
	}
	return w.Flush()
}

func runCommands(cmd *cobra.Command, args []string) error {
	def, err := protocols.Load(cfg.Protocol)
	if err != nil {
		return err
	}

	if commandsFields {
		for _, c := range def.Protocol.Commands() {
			fmt.Println(codec.FormatDefinition(c))
			for _, f := range c.Fields {
				fmt.Printf("    %-40s %-14s %s\n", f.Description, f.Kind, f.Unit)
			}
		}
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CODE\tDIRECTION\tLAYOUT\tPATTERN\tDESCRIPTION")
	for _, c := range def.Protocol.Commands() {
		pattern := "-"
		if c.Pattern != nil {
			pattern = c.Pattern.String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", c.Code, c.Direction, c.Layout, pattern, c.Description)
	}
	return w.Flush()
}

func runPorts(cmd *cobra.Command, args []string) error {
	ports, err := transport.SerialPorts()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Println("No serial ports found")
		return nil
	}
	for _, p := range ports {
		fmt.Println(p)
	}
	return nil
}
