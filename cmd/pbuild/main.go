package main

import (
	"os"

	"github.com/mensylisir/pbuild/cmd/pbuild/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
