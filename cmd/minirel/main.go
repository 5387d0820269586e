package main

import (
	"os"

	"minirel/cmd/minirel/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
