// Package main is the boneik command itself.
package main

import (
	"os"

	"go.viam.com/boneik/cli"
	"go.viam.com/boneik/logging"
)

func main() {
	app := cli.NewApp(os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		logging.NewLogger("boneik").Error(err)
		os.Exit(1)
	}
}
