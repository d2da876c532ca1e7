// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package codec

import (
	"errors"

	"go.uber.org/zap"
)

// Protocol is a named, validated set of command definitions
type Protocol struct {
	Name        string
	Description string
	registry    *Registry
}

// NewProtocol validates defs and builds a Protocol
func NewProtocol(name, description string, defs []*CommandDefinition) (*Protocol, error) {
	reg, err := NewRegistry(defs)
	if err != nil {
		return nil, err
	}
	return &Protocol{Name: name, Description: description, registry: reg}, nil
}

// Resolve finds the definition for command text
func (p *Protocol) Resolve(text string) (Resolved, error) {
	return p.registry.Resolve(text)
}

// Lookup returns the definition registered under code
func (p *Protocol) Lookup(code string) (*CommandDefinition, bool) {
	return p.registry.Lookup(code)
}

// Commands returns every definition in declaration order
func (p *Protocol) Commands() []*CommandDefinition {
	return p.registry.Commands()
}

// Engine encodes commands and decodes responses for one protocol. It
// performs no I/O and is safe for concurrent use.
type Engine struct {
	protocol *Protocol
	logger   *zap.Logger
}

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithLogger sets the logger used for decode diagnostics
func WithLogger(logger *zap.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine creates an engine for p
func NewEngine(p *Protocol, opts ...EngineOption) *Engine {
	e := &Engine{protocol: p, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(zap.String("protocol", p.Name))
	return e
}

// Protocol returns the protocol this engine serves
func (e *Engine) Protocol() *Protocol {
	return e.protocol
}

// Resolve finds the definition for command text
func (e *Engine) Resolve(text string) (Resolved, error) {
	return e.protocol.Resolve(text)
}

// Encode resolves text and builds its request frame. Listen commands
// return a nil frame.
func (e *Engine) Encode(text string) ([]byte, Resolved, error) {
	res, err := e.protocol.Resolve(text)
	if err != nil {
		return nil, res, err
	}
	frame, err := EncodeCommand(res.Definition, res.Param)
	if err != nil {
		return nil, res, err
	}
	return frame, res, nil
}

// Decode validates raw against the resolved command's framing and decodes
// its payload. Failures are reported in the Result, never as an error.
func (e *Engine) Decode(cmd Resolved, raw []byte) *Result {
	res := &Result{
		Protocol:    e.protocol.Name,
		Command:     cmd.Text,
		RawResponse: echoRaw(raw),
		Readings:    []Reading{},
	}
	if len(raw) > 0 {
		res.Raw = append([]byte(nil), raw...)
	}
	def := cmd.Definition
	if def == nil {
		return invalid(res, ErrUnknownCommand)
	}
	if res.Command == "" {
		res.Command = def.Code
	}

	payload, err := ValidateFrame(raw, def.Response)
	if err != nil {
		e.logger.Debug("response rejected",
			zap.String("command", res.Command),
			zap.Int("bytes", len(raw)),
			zap.Error(err))
		return invalid(res, err)
	}

	logger := e.logger.With(zap.String("command", res.Command))
	for _, tok := range Split(payload, def) {
		res.Readings = append(res.Readings, DecodeToken(tok, logger)...)
	}
	res.Valid = true
	return res
}

// DecodeText resolves text and decodes raw as its response
func (e *Engine) DecodeText(text string, raw []byte) *Result {
	cmd, err := e.protocol.Resolve(text)
	if err != nil {
		res := &Result{Protocol: e.protocol.Name, Command: text, RawResponse: echoRaw(raw), Readings: []Reading{}}
		return invalid(res, err)
	}
	return e.Decode(cmd, raw)
}

func invalid(res *Result, err error) *Result {
	res.Valid = false
	res.Cause = err
	res.Errors = []string{err.Error()}
	return res
}

// IsRejected reports whether a result was invalidated by a device NAK
func IsRejected(res *Result) bool {
	return res != nil && errors.Is(res.Cause, ErrRejected)
}
