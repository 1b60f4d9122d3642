package main

import (
	"os"

	"github.com/nutrijel/authflow/cmd/authflow/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
