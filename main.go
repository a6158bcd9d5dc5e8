// Package main is the entry point for xdpwalk.
package main

import (
	"fmt"
	"os"

	"firestige.xyz/xdpwalk/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
