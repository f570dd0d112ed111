// Package main is the entry point for the sheetsync CLI binary.
package main

import (
	"os"

	_ "github.com/mattn/go-sqlite3"

	cli "sheetsync/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
