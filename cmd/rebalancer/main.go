package main

import (
	"os"

	"portfolio-rebalancer/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
