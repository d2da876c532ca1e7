// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/photon/pkg/codec"
	"github.com/Thermoquad/photon/pkg/protocols"
)

// ============================================================
// Help Examples
// ============================================================

// exampleCommands returns the protocol and command arguments of every
// "photon ... <sub> <command>..." line in c's help text
func exampleCommands(c *cobra.Command) [][2]string {
	var out [][2]string
	for _, line := range strings.Split(c.Long, "\n") {
		words := strings.Fields(line)
		if len(words) == 0 || words[0] != "photon" {
			continue
		}
		protocol := "pi30"
		for i, w := range words {
			if w == "--protocol" && i+1 < len(words) {
				protocol = words[i+1]
			}
			if w != c.Name() {
				continue
			}
			for _, arg := range words[i+1:] {
				if strings.HasPrefix(arg, "-") {
					break
				}
				out = append(out, [2]string{protocol, arg})
			}
			break
		}
	}
	return out
}

func TestHelpExamplesResolve(t *testing.T) {
	for _, c := range []*cobra.Command{encodeCmd, queryCmd, listenCmd, monitorCmd} {
		examples := exampleCommands(c)
		require.NotEmpty(t, examples, c.Name())

		for _, ex := range examples {
			def, err := protocols.Load(ex[0])
			require.NoError(t, err, ex[0])

			_, err = codec.NewEngine(def.Protocol).Resolve(ex[1])
			assert.NoError(t, err, "%s: %s %s", c.Name(), ex[0], ex[1])
		}
	}
}

func TestEncodeExampleFrame(t *testing.T) {
	def, err := protocols.Load("jbd")
	require.NoError(t, err)

	frame, _, err := codec.NewEngine(def.Protocol).Encode("basicInfo")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xdd, 0xa5, 0x03}, frame[:3])
}
