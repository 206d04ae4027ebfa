package main

import (
	"fmt"
	"log/slog"

	"github.com/getmockd/intercept/pkg/config"
	"github.com/spf13/cobra"
)

func newValidateCmd(log func() *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file|glob>...",
		Short: "Parse and validate rule files without loading them anywhere",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rules, err := config.Load(args...)
			if err != nil {
				return err
			}
			for _, rule := range rules {
				log().Debug("validated rule", "id", rule.ID, "predicates", len(rule.Predicates))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d rule(s)\n", len(rules))
			return nil
		},
	}
}
