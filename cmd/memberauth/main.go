package main

import (
	"os"

	"github.com/MrEthical07/memberAuth/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
