package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/m3rciful/vpnshop/core/buildinfo"
	"github.com/m3rciful/vpnshop/internal/app"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to config.yaml (defaults to $CONFIG_PATH, then ./config.yaml)")
	version := pflag.BoolP("version", "v", false, "print build information and exit")
	pflag.Parse()

	if *version {
		fmt.Printf("vpnshop %s (%s) %s\n", buildinfo.Version, buildinfo.Commit, buildinfo.Date)
		return
	}
	if err := app.Run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
