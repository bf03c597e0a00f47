package main

import (
	"os"

	"github.com/formrelay-systems/formrelay/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
