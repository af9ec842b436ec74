package main

import (
	"os"

	"hajj-assistant/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
