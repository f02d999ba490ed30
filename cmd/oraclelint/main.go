// Package main is the oraclelint command.
package main

import (
	"os"

	"github.com/leapstack-labs/oraclelint/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
