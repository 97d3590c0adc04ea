package main

import (
	"os"

	"compose-manager/src/cli"
)

func main() {
	os.Exit(cli.Execute())
}
