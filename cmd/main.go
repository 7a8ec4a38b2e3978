package main

import (
	"os"

	"github.com/leegarner/quizzer/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
