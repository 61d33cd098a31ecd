// Command votectl runs maintenance tasks directly against the vote store:
// counter reconciliation, group statistics and poll verification.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(os.Stdout, nil).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "votectl:", err)
		os.Exit(1)
	}
}
