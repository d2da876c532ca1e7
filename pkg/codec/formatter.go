// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package codec

import (
	"fmt"
	"strings"
)

// FormatResult formats a result into a human-readable block
func FormatResult(r *Result) string {
	var sb strings.Builder

	status := "OK"
	if !r.Valid {
		status = "INVALID"
	}
	fmt.Fprintf(&sb, "%s %s [%s]\n", r.Protocol, r.Command, status)

	for _, e := range r.Errors {
		fmt.Fprintf(&sb, "  error: %s\n", e)
	}

	width := 0
	for _, rd := range r.Readings {
		if len(rd.Name) > width {
			width = len(rd.Name)
		}
	}
	for _, rd := range r.Readings {
		sb.WriteString("  ")
		sb.WriteString(FormatReading(rd, width))
		sb.WriteString("\n")
	}
	return sb.String()
}

// FormatReading formats one reading with its name padded to width
func FormatReading(rd Reading, width int) string {
	value := strings.ReplaceAll(rd.Value.String(), "\n", ", ")
	line := fmt.Sprintf("%-*s  %s", width, rd.Name, value)
	if rd.Unit != "" {
		line += " " + rd.Unit
	}
	if rd.Err != nil {
		line += fmt.Sprintf("  (error: %v)", rd.Err)
	}
	return line
}

// FormatFrame renders a wire frame as spaced uppercase hex
func FormatFrame(frame []byte) string {
	parts := make([]string, len(frame))
	for i, b := range frame {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, " ")
}

// FormatDefinition summarises a command definition on one line
func FormatDefinition(def *CommandDefinition) string {
	code := def.Code
	if def.Pattern != nil {
		code = def.Pattern.String()
	}
	return fmt.Sprintf("%-20s %-7s %-12s %s", code, def.Direction, def.Layout, def.Description)
}
