package main

import (
	"os"

	"github.com/spigell/hh-traits/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
