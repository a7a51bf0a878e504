//go:build !windows

package main

import (
	"os"

	"github.com/jessevdk/go-flags"
)

// exit turns a parser or command error into the process exit code.
func exit(err error) {
	if err == nil || flags.WroteHelp(err) {
		return
	}

	os.Exit(1)
}
