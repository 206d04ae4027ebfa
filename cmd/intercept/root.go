package main

import (
	"log/slog"

	"github.com/getmockd/intercept/pkg/logging"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var (
		logLevel  string
		logFormat string
		logger    *slog.Logger
	)

	root := &cobra.Command{
		Use:          "intercept",
		Short:        "Work with stub rule files for the intercept library",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = logging.New(logging.Config{
				Level:  logging.ParseLevel(logLevel),
				Format: logging.ParseFormat(logFormat),
			})
		},
	}

	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	log := func() *slog.Logger {
		if logger == nil {
			return logging.Nop()
		}
		return logger
	}
	root.AddCommand(newValidateCmd(log))
	root.AddCommand(newMatchCmd(log))
	return root
}
