package main

import (
	"os"

	"github.com/ALT-F4-LLC/backlog-backup/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
