package main

import (
	"os"

	"activity-sync/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
