// Command gpximport imports geocache GPX and LOC files from the command line.
//
//	gpximport import pq.gpx --list 2 --driver sqlite --db caches.db
//	gpximport companion pq.gpx
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/geoimport/internal/importer"
	"github.com/spf13/cobra"
)

// Exit codes by failure tier.
const (
	exitUnexpected = 1
	exitUsage      = 2
	exitIO         = 3
	exitFormat     = 4
)

// exitError carries the process exit code of a failed command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func withCode(code int, err error) error {
	return &exitError{code: code, err: err}
}

// exitCodeFor maps import failures onto exit codes.
func exitCodeFor(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	var ie *importer.ImportError
	if errors.As(err, &ie) {
		switch ie.Kind {
		case importer.KindIO:
			return exitIO
		case importer.KindFormat:
			return exitFormat
		}
	}
	return exitUnexpected
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "gpximport",
		Short:         "Import geocaches from GPX and LOC files",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newImportCmd(), newCompanionCmd(), newFormatsCmd())
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(exitCodeFor(err))
	}
}
