// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
)

func main() {
	fmt.Println("metrcsync - Metrc Synchronization Engine")
	fmt.Println("========================================")
	fmt.Println()
	fmt.Println("metrcsync keeps a local mirror of Metrc regulatory data (packages, plants,")
	fmt.Println("transfers, sales) in sync per facility, with rate governing, incremental")
	fmt.Println("windows and an auditable log of every sync run.")
	fmt.Println()

	fmt.Println("Available Examples:")
	fmt.Println()
	fmt.Println("1. HTTP Sync Server Example (examples/syncserver/)")
	fmt.Println("   A complete sync server on Postgres using Go's net/http package")
	fmt.Println("   Features: JWT auth, scheduled syncs, manual triggers, status/log API")
	fmt.Println("   Run: cd examples/syncserver && go run .")
	fmt.Println()
}
