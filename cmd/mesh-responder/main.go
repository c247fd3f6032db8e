package main

import (
	"os"

	"github.com/Archie3d/mesh-responder/cmd/mesh-responder/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
