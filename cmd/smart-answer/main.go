package main

import (
	"os"

	"github.com/junyang168/smart-answer/internal/adapters/driving/cli"
)

// version is stamped by the linker at build time.
var version = "dev"

func main() {
	if err := cli.Execute(version); err != nil {
		os.Exit(1)
	}
}
