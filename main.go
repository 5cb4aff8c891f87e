package main

import (
	"os"

	"github.com/vibepay/newebpay-bridge/internal/presentation/cli"
)

var version = "dev"

func main() {
	if err := cli.Execute(version); err != nil {
		os.Exit(1)
	}
}
