// Command shardwallet manages a shard wallet: the ownership tree of shards,
// claims against the treasury, and the cost benchmark.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
