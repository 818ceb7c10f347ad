package main

import (
	"os"

	"github.com/dshills/ptags/internal/cmd"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	os.Exit(cmd.Execute(cmd.BuildInfo{Version: version, BuildTime: buildTime}))
}
