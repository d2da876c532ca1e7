// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/Thermoquad/photon/pkg/codec"
)

// writeResult renders res in the configured output format
func writeResult(w io.Writer, res *codec.Result, format string) error {
	switch format {
	case "json":
		data, err := json.Marshal(res)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err

	case "cbor":
		data, err := res.EncodeCBOR()
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err

	case "hex":
		_, err := fmt.Fprintf(w, "%s\n", codec.FormatFrame(res.Raw))
		return err

	default:
		_, err := io.WriteString(w, codec.FormatResult(res))
		return err
	}
}

// escapeFrame renders a frame as text with control bytes escaped
func escapeFrame(frame []byte) string {
	var sb strings.Builder
	for _, b := range frame {
		switch {
		case b == '\r':
			sb.WriteString(`\r`)
		case b == '\n':
			sb.WriteString(`\n`)
		case b == '\t':
			sb.WriteString(`\t`)
		case b >= 0x20 && b < 0x7F:
			sb.WriteByte(b)
		default:
			fmt.Fprintf(&sb, `\x%02x`, b)
		}
	}
	return sb.String()
}
