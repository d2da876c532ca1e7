// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package codec implements a table-driven request/response codec for
// inverter and battery-management serial protocols.
//
// A protocol is described entirely by data: a set of CommandDefinitions,
// each carrying its framing rules, response layout and per-field decoding
// rules. The Engine uses those definitions to build request frames and to
// turn raw response bytes into a Result of named, typed Readings.
package codec
