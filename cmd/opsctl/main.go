package main

import (
	"os"

	"github.com/good-yellow-bee/opswatch/cmd/opsctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
