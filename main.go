package main

import (
	"os"

	"github.com/conneroisu/viewtree/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
