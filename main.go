//go:build !tray

package main

import (
	"os"

	"github.com/bartek5186/mosync/internal/cli"
)

// wersję można nadpisać przez: -ldflags "-X 'main.ver=1.0.1'"
var ver = "1.0.0"

func main() {
	if err := cli.Execute(ver); err != nil {
		os.Exit(1)
	}
}
