package main

import (
	"os"

	"github.com/mfrits/invoicer/cmd/invoicer/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
