package main

import (
	"os"

	"github.com/vitorvargasdev/streamfluency/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
