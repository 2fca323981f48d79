package main

import (
	"os"

	"patentrag/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
