package main

import (
	"os"

	"github.com/cohortd/cohortd/cmd/cohortd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
