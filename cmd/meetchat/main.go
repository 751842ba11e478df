package main

import (
	"os"

	"github.com/joebot/meetchat/cmd/meetchat/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
