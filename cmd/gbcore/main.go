// Command gbcore runs sparse-matrix workloads and inspects snapshots.
package main

import (
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
