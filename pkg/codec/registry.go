// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package codec

import (
	"fmt"
	"regexp"
)

// Resolved is a command definition matched from user-supplied command
// text, together with any parameter captured from that text.
type Resolved struct {
	Definition *CommandDefinition
	Text       string
	Param      string
	HasParam   bool
}

// Registry maps command text to definitions. It is immutable once built
// and safe for concurrent use.
type Registry struct {
	exact    map[string]*CommandDefinition
	patterns []patternEntry
	ordered  []*CommandDefinition
}

type patternEntry struct {
	def *CommandDefinition
	re  *regexp.Regexp
}

// NewRegistry validates defs and indexes them. Two definitions with the
// same code are rejected.
func NewRegistry(defs []*CommandDefinition) (*Registry, error) {
	r := &Registry{exact: make(map[string]*CommandDefinition, len(defs))}
	seen := make(map[string]bool, len(defs))

	for _, def := range defs {
		if err := def.Validate(); err != nil {
			return nil, err
		}
		if seen[def.Code] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateCommand, def.Code)
		}
		seen[def.Code] = true
		r.ordered = append(r.ordered, def)

		if def.Pattern == nil {
			r.exact[def.Code] = def
			continue
		}
		re, err := regexp.Compile("^(?:" + def.Pattern.String() + ")$")
		if err != nil {
			return nil, &DefinitionError{Command: def.Code, Reason: "bad pattern: " + err.Error()}
		}
		r.patterns = append(r.patterns, patternEntry{def: def, re: re})
	}
	return r, nil
}

// Resolve finds the definition for text. Exact codes win over patterns;
// patterns must match the whole text. The first capture group, if any,
// becomes the parameter.
func (r *Registry) Resolve(text string) (Resolved, error) {
	if def, ok := r.exact[text]; ok {
		return Resolved{Definition: def, Text: text}, nil
	}
	for _, entry := range r.patterns {
		m := entry.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		res := Resolved{Definition: entry.def, Text: text}
		if len(m) > 1 {
			res.Param = m[1]
			res.HasParam = true
		}
		return res, nil
	}
	return Resolved{Text: text}, fmt.Errorf("%w: %q", ErrUnknownCommand, text)
}

// Lookup returns the definition registered under code
func (r *Registry) Lookup(code string) (*CommandDefinition, bool) {
	for _, def := range r.ordered {
		if def.Code == code {
			return def, true
		}
	}
	return nil, false
}

// Commands returns every definition in registration order
func (r *Registry) Commands() []*CommandDefinition {
	out := make([]*CommandDefinition, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Compose builds a derived command set: every base definition, with
// overrides replacing the base definition of the same code, followed by
// additions. An override must name an existing base code and an addition
// must not.
func Compose(base, overrides, additions []*CommandDefinition) ([]*CommandDefinition, error) {
	index := make(map[string]int, len(base))
	out := make([]*CommandDefinition, 0, len(base)+len(additions))
	for _, def := range base {
		if _, dup := index[def.Code]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateCommand, def.Code)
		}
		index[def.Code] = len(out)
		out = append(out, def)
	}

	replaced := make(map[string]bool, len(overrides))
	for _, def := range overrides {
		i, ok := index[def.Code]
		if !ok {
			return nil, &DefinitionError{Command: def.Code, Reason: "override of a command the base does not define"}
		}
		if replaced[def.Code] {
			return nil, fmt.Errorf("%w: %s overridden twice", ErrDuplicateCommand, def.Code)
		}
		replaced[def.Code] = true
		out[i] = def
	}

	for _, def := range additions {
		if _, dup := index[def.Code]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateCommand, def.Code)
		}
		index[def.Code] = len(out)
		out = append(out, def)
	}
	return out, nil
}
