// Copyright 2025 The SnapBite Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/snapbite/snapbite/cmd"
)

var Version = "development"

func main() {
	cmd.Execute(Version)
}
