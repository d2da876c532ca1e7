// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package protocols

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/Thermoquad/photon/pkg/codec"
)

// VectorResult is the outcome of replaying one vector through an engine
type VectorResult struct {
	Vector   Vector
	Frame    []byte        // encoded request
	Result   *codec.Result // nil when the vector carries no response
	Failures []string
}

// Passed reports whether every check of the vector succeeded
func (r VectorResult) Passed() bool {
	return len(r.Failures) == 0
}

// RunVectors replays every vector of def through engine: the request is
// encoded and compared byte for byte, then the response is decoded and
// its validity and expected readings are checked.
func RunVectors(def *Definition, engine *codec.Engine) []VectorResult {
	results := make([]VectorResult, 0, len(def.Vectors))
	for _, v := range def.Vectors {
		results = append(results, runVector(v, engine))
	}
	return results
}

func runVector(v Vector, engine *codec.Engine) VectorResult {
	out := VectorResult{Vector: v}
	failf := func(format string, args ...any) {
		out.Failures = append(out.Failures, fmt.Sprintf(format, args...))
	}

	frame, cmd, err := engine.Encode(v.Command)
	if err != nil {
		failf("encode %s: %v", v.Command, err)
		return out
	}
	out.Frame = frame
	if v.Request != nil && !bytes.Equal(frame, v.Request) {
		failf("request: expected %X, got %X", v.Request, frame)
	}
	if v.Response == nil {
		return out
	}

	res := engine.Decode(cmd, v.Response)
	out.Result = res
	if res.Valid != v.Valid {
		failf("valid: expected %t, got %t %v", v.Valid, res.Valid, res.Errors)
	}

	names := make([]string, 0, len(v.Expect))
	for name := range v.Expect {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		readings := res.ReadingsNamed(name)
		if len(readings) == 0 {
			failf("%s: missing", name)
			continue
		}
		values := make([]string, len(readings))
		for i, rd := range readings {
			values[i] = rd.Value.String()
			if rd.Err != nil {
				failf("%s: %v", name, rd.Err)
			}
		}
		if got := strings.Join(values, ", "); got != v.Expect[name] {
			failf("%s: expected %q, got %q", name, v.Expect[name], got)
		}
	}
	return out
}
