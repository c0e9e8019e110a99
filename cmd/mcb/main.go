package main

import (
	"os"

	"github.com/marlonsc/mcb/cmd/mcb/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
