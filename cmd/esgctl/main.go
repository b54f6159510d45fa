package main

import (
	"os"

	"github.com/KiruiElisha/esg-compliance/internal/cli"
)

func main() {
	os.Exit(cli.Execute(os.Stdout, os.Stderr))
}
