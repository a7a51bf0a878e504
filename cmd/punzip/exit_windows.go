//go:build windows

package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
	"golang.org/x/term"
)

// exit turns a parser or command error into the process exit code. On windows
// the console a double-clicked binary opened would vanish with the process,
// so hold it until a key is pressed.
func exit(err error) {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		_, _ = fmt.Fprintln(os.Stderr, "Press any key to close")
		_, _, _ = bufio.NewReader(os.Stdin).ReadRune()
	}

	if err == nil || flags.WroteHelp(err) {
		return
	}

	os.Exit(1)
}
