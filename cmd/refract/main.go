package main

import (
	"os"

	"github.com/dshills/refract/internal/cli"
)

func main() {
	os.Exit(cli.Run())
}
