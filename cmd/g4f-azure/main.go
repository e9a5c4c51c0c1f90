package main

import (
	"os"

	"github.com/eraycc/g4f-azure/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
