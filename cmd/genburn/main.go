// Command genburn classifies imagery into fueled land-cover objects and
// joins simulated burn metrics onto them.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/fang"

	"github.com/banshee-data/genburn/internal/apperr"
	"github.com/banshee-data/genburn/internal/version"
)

// Exit codes.
const (
	exitOK         = 0
	exitFailure    = 1
	exitConfig     = 2
	exitUnresolved = 3
)

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	if apperr.IsConfig(err) {
		return exitConfig
	}
	if _, ok := apperr.AsUnresolved(err); ok {
		return exitUnresolved
	}
	return exitFailure
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	info := version.Get()
	err := fang.Execute(ctx, GetRootCmd(),
		fang.WithVersion(info.Version),
		fang.WithCommit(info.GitSHA),
	)
	stop()
	os.Exit(exitCode(err))
}
