package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	igdlhttp "github.com/Yumeka433/igdl/internal/http"
)

// Exit codes
const (
	ExitSuccess      = 0
	ExitGeneralError = 1
	ExitInvalidArgs  = 2
	ExitServerError  = 3
	ExitNetworkError = 4
	ExitStreamError  = 5
	ExitStorageError = 6
	ExitCancelled    = 7
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

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	return execute(args, os.Stdout, os.Stderr)
}

func execute(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	if err == nil {
		return ExitSuccess
	}

	code := exitCode(err)
	if code == ExitCancelled {
		fmt.Fprintln(stderr, "[igdl] Download cancelled")
	} else {
		fmt.Fprintf(stderr, "Error: %s\n", igdlhttp.Describe(err))
	}
	return code
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "igdl",
		Short: "Download Instagram reels and posts through a download API",
		Long: `igdl asks a download API to resolve an Instagram URL and streams the
resulting media file to a local directory or a bucket, with live progress.
Press Ctrl-C to cancel a transfer cleanly.`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return withCode(ExitInvalidArgs, err)
	})

	root.AddCommand(newFetchCmd())
	root.AddCommand(newCookiesCmd())
	return root
}

// argsWithCode marks argument validation failures as invalid usage.
func argsWithCode(fn cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := fn(cmd, args); err != nil {
			return withCode(ExitInvalidArgs, err)
		}
		return nil
	}
}

// exitCode maps an error to the process exit code.
func exitCode(err error) int {
	var (
		xerr *exitError
		verr *igdlhttp.ValidationError
		serr *igdlhttp.ServerError
		nerr *igdlhttp.NetworkError
		rerr *igdlhttp.StreamError
	)
	switch {
	case err == nil:
		return ExitSuccess
	case igdlhttp.IsCancelled(err):
		return ExitCancelled
	case errors.As(err, &xerr):
		return xerr.code
	case errors.As(err, &verr):
		return ExitInvalidArgs
	case errors.As(err, &serr):
		return ExitServerError
	case errors.As(err, &nerr):
		return ExitNetworkError
	case errors.As(err, &rerr):
		return ExitStreamError
	default:
		return ExitGeneralError
	}
}
