package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

const checkTimeout = 15 * time.Second

func newCheckCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the provider API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), checkTimeout)
			defer cancel()
			if err := e.app.Client.ValidateAPIKey(ctx); err != nil {
				return fmt.Errorf("provider check failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), titleStyle.Render("API key OK")+" "+footerStyle.Render("model "+e.cfg.GenAIModel))
			return nil
		},
	}
}
