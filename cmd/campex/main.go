package main

import (
	"os"

	"github.com/campex/campex/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
