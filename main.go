package main

import (
	"os"

	"github.com/scan-io-git/logicscan/cmd"
)

func main() {
	code := cmd.Execute()
	os.Exit(code)
}
