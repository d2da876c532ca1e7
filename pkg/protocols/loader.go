// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package protocols loads the embedded protocol definition files and
// builds codec protocols from them.
package protocols

import (
	"bytes"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/Thermoquad/photon/pkg/codec"
)

//go:embed data/*.yaml
var dataFS embed.FS

// ErrUnknownProtocol is returned when no definition file declares a name
var ErrUnknownProtocol = errors.New("unknown protocol")

// Definition is a loaded protocol together with its self-test vectors
type Definition struct {
	Protocol *codec.Protocol
	Vectors  []Vector
}

// Vector is a captured request/response pair with the readings its
// response must decode to. Request and Response are nil when the vector
// does not check that side.
type Vector struct {
	Code     string // declaring command
	Command  string // command text to resolve, defaults to Code
	Request  []byte
	Response []byte
	Valid    bool
	Expect   map[string]string
}

var (
	catalogOnce sync.Once
	catalog     map[string]*Definition
	catalogErr  error
)

func embedded() (map[string]*Definition, error) {
	catalogOnce.Do(func() {
		sub, err := fs.Sub(dataFS, "data")
		if err != nil {
			catalogErr = err
			return
		}
		catalog, catalogErr = LoadFS(sub)
	})
	return catalog, catalogErr
}

// Names returns the embedded protocol names in sorted order
func Names() []string {
	defs, err := embedded()
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load returns the embedded protocol called name
func Load(name string) (*Definition, error) {
	defs, err := embedded()
	if err != nil {
		return nil, err
	}
	def, ok := defs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProtocol, name)
	}
	return def, nil
}

// LoadFS parses every *.yaml file at the root of fsys and builds the
// protocols they declare, resolving extends chains between them.
func LoadFS(fsys fs.FS) (map[string]*Definition, error) {
	paths, err := fs.Glob(fsys, "*.yaml")
	if err != nil {
		return nil, err
	}

	b := &builder{
		docs:     make(map[string]*protocolDoc, len(paths)),
		built:    make(map[string]*Definition, len(paths)),
		framing:  make(map[string]defaults, len(paths)),
		building: make(map[string]bool),
	}
	for _, p := range paths {
		raw, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, err
		}
		doc, err := parseDoc(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		if doc.Name == "" {
			doc.Name = strings.TrimSuffix(path.Base(p), path.Ext(p))
		}
		if _, dup := b.docs[doc.Name]; dup {
			return nil, fmt.Errorf("%s: %w: protocol %s declared twice", p, codec.ErrInvalidDefinition, doc.Name)
		}
		b.docs[doc.Name] = doc
	}

	for name := range b.docs {
		if _, err := b.build(name); err != nil {
			return nil, err
		}
	}
	return b.built, nil
}

func parseDoc(raw []byte) (*protocolDoc, error) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)

	var doc protocolDoc
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", codec.ErrInvalidDefinition, err)
	}
	return &doc, nil
}

type builder struct {
	docs     map[string]*protocolDoc
	built    map[string]*Definition
	framing  map[string]defaults
	building map[string]bool
}

func (b *builder) build(name string) (*Definition, error) {
	if def, ok := b.built[name]; ok {
		return def, nil
	}
	doc, ok := b.docs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProtocol, name)
	}
	if b.building[name] {
		return nil, fmt.Errorf("%w: extends cycle through %s", codec.ErrInvalidDefinition, name)
	}
	b.building[name] = true
	defer delete(b.building, name)

	var inherited defaults
	var base *Definition
	if doc.Extends != "" {
		var err error
		if base, err = b.build(doc.Extends); err != nil {
			return nil, fmt.Errorf("%s extends %s: %w", name, doc.Extends, err)
		}
		inherited = b.framing[doc.Extends]
	} else if len(doc.Overrides) > 0 {
		return nil, &codec.DefinitionError{Protocol: name, Command: doc.Overrides[0].Code, Reason: "overrides require extends"}
	}

	dflt, err := inherited.merge(&doc.Framing, &doc.Response)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", name, codec.ErrInvalidDefinition, err)
	}
	b.framing[name] = dflt

	additions, vectors, err := buildCommands(name, doc.Commands, dflt)
	if err != nil {
		return nil, err
	}
	defs := additions

	if base != nil {
		overrides, overrideVectors, err := buildCommands(name, doc.Overrides, dflt)
		if err != nil {
			return nil, err
		}
		if defs, err = codec.Compose(base.Protocol.Commands(), overrides, additions); err != nil {
			return nil, tagProtocol(name, err)
		}

		replaced := make(map[string]bool, len(overrides))
		for _, def := range overrides {
			replaced[def.Code] = true
		}
		inheritedVectors := make([]Vector, 0, len(base.Vectors))
		for _, v := range base.Vectors {
			if !replaced[v.Code] {
				inheritedVectors = append(inheritedVectors, v)
			}
		}
		vectors = append(append(inheritedVectors, overrideVectors...), vectors...)
	}

	proto, err := codec.NewProtocol(name, doc.Description, defs)
	if err != nil {
		return nil, tagProtocol(name, err)
	}
	def := &Definition{Protocol: proto, Vectors: vectors}
	b.built[name] = def
	return def, nil
}

func tagProtocol(name string, err error) error {
	var de *codec.DefinitionError
	if errors.As(err, &de) {
		de.Protocol = name
		return err
	}
	return fmt.Errorf("%s: %w", name, err)
}

func buildCommands(protocol string, docs []commandDoc, dflt defaults) ([]*codec.CommandDefinition, []Vector, error) {
	defs := make([]*codec.CommandDefinition, 0, len(docs))
	var vectors []Vector
	for i := range docs {
		def, vs, err := buildCommand(&docs[i], dflt)
		if err != nil {
			return nil, nil, tagProtocol(protocol, err)
		}
		defs = append(defs, def)
		vectors = append(vectors, vs...)
	}
	return defs, vectors, nil
}

func buildCommand(doc *commandDoc, dflt defaults) (*codec.CommandDefinition, []Vector, error) {
	fail := func(field, format string, args ...any) error {
		return &codec.DefinitionError{Command: doc.Code, Field: field, Reason: fmt.Sprintf(format, args...)}
	}
	if doc.Code == "" {
		return nil, nil, fail("", "missing code")
	}

	merged, err := dflt.merge(&doc.Framing, &doc.Response)
	if err != nil {
		return nil, nil, fail("", "framing: %v", err)
	}
	framing, err := merged.framing.build()
	if err != nil {
		return nil, nil, fail("", "framing: %v", err)
	}
	response, err := merged.response.build()
	if err != nil {
		return nil, nil, fail("", "response: %v", err)
	}
	direction, err := codec.ParseDirection(doc.Direction)
	if err != nil {
		return nil, nil, fail("", "%v", err)
	}
	layout, err := codec.ParseLayout(doc.Layout)
	if err != nil {
		return nil, nil, fail("", "%v", err)
	}

	def := &codec.CommandDefinition{
		Code:        doc.Code,
		Description: doc.Description,
		Direction:   direction,
		Payload:     doc.Payload,
		Framing:     framing,
		Response:    response,
		Layout:      layout,
	}
	if doc.Pattern != "" {
		if def.Pattern, err = regexp.Compile(doc.Pattern); err != nil {
			return nil, nil, fail("", "bad pattern: %v", err)
		}
	}

	for _, fdoc := range doc.Fields {
		fields, err := fdoc.expand(len(def.Fields))
		if err != nil {
			return nil, nil, fail(fdoc.Name, "%v", err)
		}
		def.Fields = append(def.Fields, fields...)
	}

	vectors := make([]Vector, 0, len(doc.Tests))
	for i, t := range doc.Tests {
		v := Vector{Code: doc.Code, Command: t.Command, Valid: true, Expect: t.Expect}
		if v.Command == "" {
			v.Command = doc.Code
		}
		if t.Valid != nil {
			v.Valid = *t.Valid
		}
		if v.Request, err = decodeVectorHex(t.Request); err != nil {
			return nil, nil, fail("", "test %d request: %v", i, err)
		}
		if v.Response, err = decodeVectorHex(t.Response); err != nil {
			return nil, nil, fail("", "test %d response: %v", i, err)
		}
		vectors = append(vectors, v)
	}
	return def, vectors, nil
}

func decodeVectorHex(s string) ([]byte, error) {
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return nil, nil
	}
	return hex.DecodeString(s)
}
