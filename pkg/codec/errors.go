// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package codec

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownCommand is returned when a command text resolves to no definition
	ErrUnknownCommand = errors.New("unknown command")

	// ErrNoResponse is reported when the transport produced no bytes
	ErrNoResponse = errors.New("no response")

	// ErrRejected is reported when the device answered with a NAK
	ErrRejected = errors.New("command rejected by device")

	// ErrChecksum is the sentinel wrapped by ChecksumError
	ErrChecksum = errors.New("checksum mismatch")

	// ErrFrame is reported for truncated or malformed frames
	ErrFrame = errors.New("malformed frame")

	// ErrDuplicateCommand is returned when two definitions claim the same code
	ErrDuplicateCommand = errors.New("duplicate command code")

	// ErrInvalidDefinition is the sentinel wrapped by DefinitionError
	ErrInvalidDefinition = errors.New("invalid definition")

	// ErrInvalidParameter is returned when a parameter cannot be encoded
	ErrInvalidParameter = errors.New("invalid parameter")
)

// ChecksumError describes a checksum verification failure
type ChecksumError struct {
	Kind     ChecksumKind
	Expected []byte
	Actual   []byte
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("%s checksum mismatch: expected %X, got %X", e.Kind, e.Expected, e.Actual)
}

func (e *ChecksumError) Unwrap() error {
	return ErrChecksum
}

// DefinitionError describes a protocol definition rejected at load time
type DefinitionError struct {
	Protocol string
	Command  string
	Field    string
	Reason   string
}

func (e *DefinitionError) Error() string {
	msg := fmt.Sprintf("command %s: %s", e.Command, e.Reason)
	if e.Field != "" {
		msg = fmt.Sprintf("command %s: field %q: %s", e.Command, e.Field, e.Reason)
	}
	if e.Protocol != "" {
		msg = e.Protocol + ": " + msg
	}
	return msg
}

func (e *DefinitionError) Unwrap() error {
	return ErrInvalidDefinition
}

func frameError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrFrame, fmt.Sprintf(format, args...))
}
