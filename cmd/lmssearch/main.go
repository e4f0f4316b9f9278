// Package main provides the entry point for the lmssearch CLI.
package main

import (
	"os"

	"github.com/ordokr/lmssearch/cmd/lmssearch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
