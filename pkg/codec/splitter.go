// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package codec

import (
	"strings"
)

// Token is one unit of a response payload paired with the field that
// decodes it. Field is nil for tokens no definition claims.
type Token struct {
	Field    *FieldDefinition
	Key      string // keyed layouts only
	Position int
	Raw      []byte
	Binary   bool // Raw holds binary bytes rather than text
}

// Split divides a validated payload into tokens according to the
// command's layout. Discard tokens are included so that joining the raw
// tokens with the layout's separator reproduces the payload.
func Split(payload []byte, def *CommandDefinition) []Token {
	switch def.Layout {
	case LayoutKeyed:
		return splitKeyed(payload, def)
	case LayoutPositional:
		return splitPositional(payload, def)
	}

	parts := splitDelimited(string(payload), def.Response.Delimiter)
	tokens := make([]Token, 0, len(parts))
	for i, part := range parts {
		tok := Token{Position: i, Raw: []byte(part)}
		switch def.Layout {
		case LayoutSequential:
			if i < len(def.Fields) {
				tok.Field = &def.Fields[i]
			}
		case LayoutIndexed:
			tok.Field = def.FieldByIndex(i)
		case LayoutMultivalued:
			tok.Field = &def.Fields[0]
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

func splitDelimited(payload, delimiter string) []string {
	if delimiter == "" {
		return strings.Fields(payload)
	}
	if payload == "" {
		return nil
	}
	return strings.Split(payload, delimiter)
}

// splitKeyed treats each CR/LF separated line as a key and a value
// separated by the first tab or space.
func splitKeyed(payload []byte, def *CommandDefinition) []Token {
	lines := strings.FieldsFunc(string(payload), func(r rune) bool {
		return r == '\r' || r == '\n'
	})
	tokens := make([]Token, 0, len(lines))
	for i, line := range lines {
		key, value := line, ""
		if idx := strings.IndexAny(line, "\t "); idx >= 0 {
			key, value = line[:idx], line[idx+1:]
		}
		tokens = append(tokens, Token{
			Field:    def.FieldByKey(key),
			Key:      key,
			Position: i,
			Raw:      []byte(value),
		})
	}
	return tokens
}

// splitPositional slices fixed widths off the payload in field order.
// Bytes left over after the last field become a single unclaimed token.
func splitPositional(payload []byte, def *CommandDefinition) []Token {
	tokens := make([]Token, 0, len(def.Fields)+1)
	offset := 0
	for i := range def.Fields {
		if offset >= len(payload) {
			break
		}
		end := offset + def.Fields[i].Width
		if end > len(payload) {
			end = len(payload)
		}
		tokens = append(tokens, Token{
			Field:    &def.Fields[i],
			Position: i,
			Raw:      payload[offset:end],
			Binary:   true,
		})
		offset = end
	}
	if offset < len(payload) {
		tokens = append(tokens, Token{
			Position: len(def.Fields),
			Raw:      payload[offset:],
			Binary:   true,
		})
	}
	return tokens
}
