// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 grblhost contributors

package main

import (
	"os"

	"github.com/grblhost/grblhost/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
