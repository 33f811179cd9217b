package main

import (
	"os"

	"github.com/grapplerank/ajp-results/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
