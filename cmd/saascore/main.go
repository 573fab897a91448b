// Command saascore serves the plan limits, notifications, webhook and
// realtime API and runs its maintenance tasks.
package main

import (
	"fmt"
	"os"
)

// Set at build time with -ldflags.
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
