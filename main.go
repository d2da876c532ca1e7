// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Photon - inverter and BMS protocol codec
//
// A CLI tool for encoding commands for, and decoding responses from, solar
// inverters and battery management systems over serial or WebSocket links.

package main

import (
	"os"

	_ "github.com/joho/godotenv/autoload"

	"github.com/Thermoquad/photon/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
