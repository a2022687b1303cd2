package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Yumeka433/igdl/internal/cookies"
	"github.com/Yumeka433/igdl/internal/logger"
)

func newCookiesCmd() *cobra.Command {
	var (
		out      string
		logLevel string
	)

	cmd := &cobra.Command{
		Use:   "cookies <url>",
		Short: "Export browser cookies for a site as a Netscape cookies.txt",
		Long: `Reads valid cookies for the registrable domain of <url> from every local
browser profile that can be found and writes them in Netscape format, ready
to be passed to "igdl fetch --cookies".`,
		Args: argsWithCode(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := logger.New(logger.Options{Level: logLevel, Output: cmd.ErrOrStderr()})
			if err != nil {
				return withCode(ExitInvalidArgs, err)
			}

			found, err := cookies.FromBrowser(cmd.Context(), args[0], log)
			if err != nil {
				return err
			}

			if out == "" || out == "-" {
				return cookies.WriteNetscape(cmd.OutOrStdout(), found)
			}

			if err := os.WriteFile(out, cookies.Netscape(found), 0o600); err != nil {
				return withCode(ExitStorageError, fmt.Errorf("write cookies: %w", err))
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "[igdl] Wrote %d cookies to %s\n", len(found), out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "output", "o", "", "Write to this file instead of stdout")
	cmd.Flags().StringVar(&logLevel, "log-level", "warn", "Log level: trace, debug, info, warn, error")
	return cmd
}
