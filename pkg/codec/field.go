// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package codec

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// DecodeToken turns one token into zero or more readings. Tokens with no
// field become "unknown" readings so nothing the device sent is dropped.
func DecodeToken(tok Token, logger *zap.Logger) []Reading {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tok.Field == nil {
		return []Reading{unknownReading(tok)}
	}
	return decodeField(tok.Field, tok, logger)
}

func unknownReading(tok Token) Reading {
	switch {
	case tok.Key != "":
		return Reading{Name: fmt.Sprintf(unknownKeyFormat, tok.Key), Value: StringValue(tokenText(tok))}
	case tok.Binary:
		return Reading{Name: remainderName, Value: StringValue(hex.EncodeToString(tok.Raw))}
	default:
		return Reading{Name: fmt.Sprintf(unknownValueFormat, tok.Position), Value: StringValue(tokenText(tok))}
	}
}

func decodeField(f *FieldDefinition, tok Token, logger *zap.Logger) []Reading {
	text := tokenText(tok)

	switch f.Kind {
	case KindDiscard:
		return nil

	case KindString:
		if tok.Binary {
			return single(f, StringValue(asciiText(tok.Raw)))
		}
		return single(f, StringValue(text))

	case KindInt:
		n, err := tokenInt(tok, f)
		if err != nil {
			logger.Debug("integer parse failed, substituting 0",
				zap.String("field", f.Description), zap.String("token", text), zap.Error(err))
			n = 0
		}
		return single(f, IntValue(n))

	case KindFloat:
		v, err := tokenNumber(tok, f)
		if err != nil {
			logger.Debug("float parse failed, substituting 0",
				zap.String("field", f.Description), zap.String("token", text), zap.Error(err))
			v = 0
		}
		return single(f, FloatValue(v))

	case KindScaledInt:
		n, err := tokenInt(tok, f)
		if err != nil {
			logger.Debug("scaled integer parse failed, substituting placeholder",
				zap.String("field", f.Description), zap.String("token", text), zap.Error(err))
			return single(f, StringValue(fmt.Sprintf("invalid(%s)", text)))
		}
		if f.Scale.Multiply {
			return single(f, IntValue(n*int64(f.Scale.Factor)))
		}
		return single(f, FloatValue(float64(n)/float64(f.Scale.Factor)))

	case KindOption:
		idx, err := tokenInt(tok, f)
		if err != nil || idx < 0 || idx >= int64(len(f.Options)) {
			return failed(f, text, fmt.Errorf("option index %q out of range 0-%d", text, len(f.Options)-1))
		}
		return single(f, EnumValue(f.Options[idx]))

	case KindKeyed:
		key := text
		if tok.Binary {
			key = hex.EncodeToString(tok.Raw)
		}
		label, ok := f.Lookup[key]
		if !ok {
			return failed(f, key, fmt.Errorf("no mapping for %q", key))
		}
		return single(f, EnumValue(label))

	case KindFlags:
		return decodeFlags(f, tok)

	case KindStatFlags:
		bits := flagBits(tok)
		var active []string
		for i, name := range f.Options {
			if name != "" && i < len(bits) && bits[i] == '1' {
				active = append(active, name)
			}
		}
		return single(f, StringValue(strings.Join(active, "\n")))

	case KindEnFlags:
		return decodeEnFlags(f, text)

	case KindBitMask:
		n, err := tokenInt(tok, f)
		if err != nil {
			return failed(f, text, fmt.Errorf("bit mask %q is not an integer: %w", text, err))
		}
		return single(f, StringValue(maskLabels(f.BitMask, uint64(n))))

	case KindHexString:
		return single(f, StringValue(hex.EncodeToString(tok.Raw)))

	case KindHexASCII:
		return single(f, StringValue(asciiText(tok.Raw)))

	case KindEndianInt:
		if len(tok.Raw) != f.Width {
			return failed(f, hex.EncodeToString(tok.Raw), fmt.Errorf("expected %d bytes, got %d", f.Width, len(tok.Raw)))
		}
		n, err := binaryInt(tok.Raw, f.Endian, f.Signed)
		if err != nil {
			return failed(f, hex.EncodeToString(tok.Raw), err)
		}
		return single(f, IntValue(n))

	case KindTemplate:
		r, err := tokenNumber(tok, f)
		if err != nil {
			return failed(f, text, err)
		}
		v, err := f.Formula.Eval(r)
		if err != nil {
			return failed(f, text, err)
		}
		return single(f, FloatValue(v))

	case KindUptime:
		var secs int64
		var err error
		if tok.Binary {
			secs, err = binaryInt(tok.Raw, LittleEndian, false)
		} else {
			secs, err = strconv.ParseInt(text, 10, 64)
		}
		if err != nil {
			return failed(f, text, err)
		}
		return single(f, StringValue(FormatUptime(secs)))

	case KindAck:
		switch text {
		case f.Ack.OK:
			return single(f, BoolValue(true))
		case f.Ack.Fail:
			return single(f, BoolValue(false))
		}
		return failed(f, text, fmt.Errorf("unexpected acknowledgement %q", text))
	}

	return failed(f, text, fmt.Errorf("unsupported decode kind %s", f.Kind))
}

func single(f *FieldDefinition, v Value) []Reading {
	return []Reading{{Name: f.Description, Value: v, Unit: f.Unit, Meta: f.Meta}}
}

func failed(f *FieldDefinition, raw string, err error) []Reading {
	return []Reading{{Name: f.Description, Value: StringValue(raw), Unit: f.Unit, Meta: f.Meta, Err: err}}
}

func decodeFlags(f *FieldDefinition, tok Token) []Reading {
	bits := flagBits(tok)
	readings := make([]Reading, 0, len(f.Options))
	for i, name := range f.Options {
		if name == "" {
			continue
		}
		rd := Reading{Name: name, Meta: f.Meta}
		switch {
		case i >= len(bits):
			rd.Value = StringValue("")
			rd.Err = fmt.Errorf("flag bit %d missing", i)
		case bits[i] == '1':
			rd.Value = BoolValue(true)
		case bits[i] == '0':
			rd.Value = BoolValue(false)
		default:
			rd.Value = StringValue(string(bits[i]))
			rd.Err = fmt.Errorf("flag bit %d is %q", i, bits[i])
		}
		readings = append(readings, rd)
	}
	return readings
}

// flagBits returns the token as a '0'/'1' string, most significant bit
// first for binary tokens.
func flagBits(tok Token) string {
	if !tok.Binary {
		return tokenText(tok)
	}
	var sb strings.Builder
	for _, b := range tok.Raw {
		fmt.Fprintf(&sb, "%08b", b)
	}
	return sb.String()
}

// decodeEnFlags scans letters left to right. E and D switch the state
// applied to the codes that follow.
func decodeEnFlags(f *FieldDefinition, text string) []Reading {
	var readings []Reading
	state := ""
	for _, c := range text {
		switch c {
		case 'E':
			state = "enabled"
			continue
		case 'D':
			state = "disabled"
			continue
		}
		code := string(c)
		name, ok := f.EnFlags[code]
		switch {
		case !ok:
			readings = append(readings, Reading{
				Name:  fmt.Sprintf("Unknown Flag %s", code),
				Value: StringValue(state),
				Err:   fmt.Errorf("no flag for code %q", code),
			})
		case state == "":
			readings = append(readings, Reading{
				Name:  name,
				Value: StringValue(""),
				Meta:  f.Meta,
				Err:   fmt.Errorf("flag %q before any E/D marker", code),
			})
		default:
			readings = append(readings, Reading{Name: name, Value: EnumValue(state), Meta: f.Meta})
		}
	}
	return readings
}

func maskLabels(mask map[uint64]string, n uint64) string {
	if n == 0 {
		return mask[0]
	}
	bits := make([]uint64, 0, len(mask))
	for bit := range mask {
		if bit != 0 && n&bit == bit {
			bits = append(bits, bit)
		}
	}
	sort.Slice(bits, func(i, j int) bool { return bits[i] < bits[j] })
	labels := make([]string, len(bits))
	for i, bit := range bits {
		labels[i] = mask[bit]
	}
	return strings.Join(labels, ",")
}

// FormatUptime renders a second count as "{d}D{h}H{m}M{s}S"
func FormatUptime(secs int64) string {
	const (
		secondsPerMinute = 60
		secondsPerHour   = 60 * secondsPerMinute
		secondsPerDay    = 24 * secondsPerHour
	)

	days := secs / secondsPerDay
	secs %= secondsPerDay

	hours := secs / secondsPerHour
	secs %= secondsPerHour

	minutes := secs / secondsPerMinute
	secs %= secondsPerMinute

	return fmt.Sprintf("%dD%dH%dM%dS", days, hours, minutes, secs)
}

func tokenText(tok Token) string {
	return strings.TrimSpace(string(tok.Raw))
}

// isPlaceholder reports a dash-only token such as "---.-", which devices
// send for values that do not apply.
func isPlaceholder(s string) bool {
	dash := false
	for _, c := range s {
		switch c {
		case '-':
			dash = true
		case '.':
		default:
			return false
		}
	}
	return dash
}

func tokenInt(tok Token, f *FieldDefinition) (int64, error) {
	if tok.Binary {
		return binaryInt(tok.Raw, f.Endian, f.Signed)
	}
	text := tokenText(tok)
	if isPlaceholder(text) {
		return 0, nil
	}
	n, err := strconv.ParseInt(text, 10, 64)
	if err == nil {
		return n, nil
	}
	if v, ferr := strconv.ParseFloat(text, 64); ferr == nil {
		return int64(v), nil
	}
	return 0, err
}

func tokenNumber(tok Token, f *FieldDefinition) (float64, error) {
	if tok.Binary {
		n, err := binaryInt(tok.Raw, f.Endian, f.Signed)
		return float64(n), err
	}
	text := tokenText(tok)
	if isPlaceholder(text) {
		return 0, nil
	}
	return strconv.ParseFloat(text, 64)
}

func binaryInt(raw []byte, endian Endian, signed bool) (int64, error) {
	if len(raw) == 0 || len(raw) > 8 {
		return 0, fmt.Errorf("cannot read %d bytes as an integer", len(raw))
	}
	var u uint64
	if endian == LittleEndian {
		for i := len(raw) - 1; i >= 0; i-- {
			u = u<<8 | uint64(raw[i])
		}
	} else {
		for _, b := range raw {
			u = u<<8 | uint64(b)
		}
	}
	if signed {
		shift := uint(64 - 8*len(raw))
		return int64(u<<shift) >> shift, nil
	}
	return int64(u), nil
}

func asciiText(raw []byte) string {
	var sb strings.Builder
	for _, b := range raw {
		if b != 0 {
			sb.WriteByte(b)
		}
	}
	return strings.TrimSpace(sb.String())
}
