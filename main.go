package main

import (
	"os"

	"celixdm/cmd"
	"celixdm/pkg/logging"
)

// version can be set during build with -ldflags.
var version = "dev"

func main() {
	logging.InitForCLI(logging.LevelInfo, os.Stderr)
	cmd.SetVersion(version)
	cmd.Execute()
}
