package main

import (
	"os"

	"github.com/tracepipe/tracepipe/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
