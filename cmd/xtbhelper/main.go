package main

import (
	"os"

	"github.com/rovshanmuradov/xtbhelper/cmd/xtbhelper/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
