package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kjstillabower/matchboard/internal/models"
)

func newCacheCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the saved schedule",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the age and size of the saved schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			rec, ok, err := e.app.Store.Load(cmd.Context())
			if err != nil {
				return fmt.Errorf("load cache record: %w", err)
			}
			out := cmd.OutOrStdout()
			if !ok {
				fmt.Fprintln(out, footerStyle.Render("no saved schedule ("+e.app.Store.Name()+")"))
				return nil
			}
			age := rec.Age(time.Now()).Round(time.Second)
			state := "fresh"
			if !rec.IsFresh(time.Now(), e.cfg.FreshnessWindow) {
				state = "stale"
			}
			local := rec.CapturedAt().In(models.Brasilia)
			fmt.Fprintf(out, "%s %d matches, %d sources\n", titleStyle.Render(e.app.Store.Name()+":"), len(rec.Data.Matches), len(rec.Data.Sources))
			fmt.Fprintf(out, "saved %s %s (%s ago, %s)\n", models.ShortDate(local), local.Format("15:04"), age, state)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Discard the saved schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			if err := e.app.Store.Discard(cmd.Context()); err != nil {
				return fmt.Errorf("discard cache record: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "cache cleared")
			return nil
		},
	})
	return cmd
}
