package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/kjstillabower/matchboard/internal/models"
)

func newListCmd(opts *rootOptions) *cobra.Command {
	var (
		refresh bool
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List upcoming matches",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			res := e.app.Matches.GetMatches(cmd.Context(), refresh)
			res.Matches = models.SortByKickoff(res.Matches)
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			renderResult(cmd.OutOrStdout(), res, time.Now())
			return nil
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "bypass the cache and ask the provider")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

// renderResult prints res as a styled table. res.Matches must already be sorted.
func renderResult(w io.Writer, res models.Result, now time.Time) {
	fmt.Fprintln(w, titleStyle.Render("Próximos jogos"))
	if res.Warning != "" {
		fmt.Fprintln(w, warningStyle.Render(res.Warning))
	}
	if len(res.Matches) == 0 {
		fmt.Fprintln(w, leagueStyle.Render("Nenhum jogo encontrado."))
	}
	for _, m := range res.Matches {
		fmt.Fprintln(w, renderMatch(m, now))
	}

	footer := "fonte: " + string(res.Provenance)
	if !res.FetchedAt.IsZero() {
		local := res.FetchedAt.In(models.Brasilia)
		footer += " · atualizado " + models.ShortDate(local) + " " + local.Format("15:04")
	}
	fmt.Fprintln(w, footerStyle.Render(footer))
	for _, s := range res.Sources {
		fmt.Fprintln(w, footerStyle.Render("  "+s.Title+" <"+s.URI+">"))
	}
}

func renderMatch(m models.Match, now time.Time) string {
	date, clock := m.LocalKickoff()
	teams := m.HomeTeam + " x " + m.AwayTeam
	if m.Score != nil {
		teams = fmt.Sprintf("%s %d x %d %s", m.HomeTeam, m.Score.Home, m.Score.Away, m.AwayTeam)
	}
	if m.IsNationalTeam() {
		teams = nationalStyle.Render("★ " + teams)
	} else {
		teams = teamsStyle.Render(teams)
	}

	var b strings.Builder
	b.WriteString(dateStyle.Render(fmt.Sprintf("%-15s", date+" "+clock)))
	b.WriteString(teams)
	b.WriteString("  ")
	league := m.League
	if m.Venue != "" {
		league += " · " + m.Venue
	}
	b.WriteString(leagueStyle.Render(league))
	if m.Status == models.StatusLive {
		b.WriteString("  " + closeStyle.Render("ao vivo"))
	} else if m.IsClose(now) {
		if days, _ := m.DaysUntil(now); days <= 1 {
			b.WriteString("  " + closeStyle.Render("em breve"))
		} else {
			b.WriteString("  " + closeStyle.Render(fmt.Sprintf("em %d dias", days)))
		}
	}
	return b.String()
}
