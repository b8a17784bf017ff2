package main

import (
	"os"

	"github.com/conorfennell/lexideck/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
