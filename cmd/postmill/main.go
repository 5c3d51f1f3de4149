// Package main provides the entry point for the postmill CLI.
package main

import (
	"os"

	"github.com/postmill/postmill/cmd/postmill/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
