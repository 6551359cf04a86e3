package main

import (
	"os"

	"github.com/tidegate/authcore/cmd/authcore/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
