package main

import (
	"os"

	"github.com/dshills/margin/internal/cli"
)

func main() {
	os.Exit(cli.Run())
}
