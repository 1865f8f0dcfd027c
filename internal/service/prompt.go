package service

import (
	"fmt"
	"strings"
)

// Schedule describes which fixtures the provider is asked for.
type Schedule struct {
	Teams        []string
	NationalTeam string
	Competitions []string
	Excluded     []string
	HorizonDays  int
}

// DefaultSchedule covers the São Paulo state clubs in Série A and B plus the
// Brazil men's national team.
func DefaultSchedule() Schedule {
	return Schedule{
		Teams: []string{
			"Corinthians", "Palmeiras", "São Paulo", "Santos", "Red Bull Bragantino",
			"Ituano", "Guarani", "Ponte Preta", "Novorizontino", "Mirassol", "Botafogo-SP",
		},
		NationalTeam: "Brazil men's national team (Seleção Brasileira)",
		Competitions: []string{
			"Brasileirão Série A", "Brasileirão Série B", "Copa do Brasil",
			"Copa Libertadores", "Copa Sul-Americana", "World Cup qualifiers", "friendlies",
		},
		Excluded:    []string{"Campeonato Paulista Série A2"},
		HorizonDays: 90,
	}
}

const responseShape = `{
  "matches": [
    {
      "id": "unique-string",
      "homeTeam": "Team name",
      "awayTeam": "Team name",
      "league": "Competition name",
      "dateTime": "2025-05-20T20:00:00Z",
      "status": "SCHEDULED",
      "venue": "Stadium"
    }
  ]
}`

// BuildPrompt renders the provider instruction for s. Empty fields fall back
// to DefaultSchedule.
func BuildPrompt(s Schedule) string {
	def := DefaultSchedule()
	if len(s.Teams) == 0 {
		s.Teams = def.Teams
	}
	if s.NationalTeam == "" {
		s.NationalTeam = def.NationalTeam
	}
	if len(s.Competitions) == 0 {
		s.Competitions = def.Competitions
	}
	if s.HorizonDays <= 0 {
		s.HorizonDays = def.HorizonDays
	}

	var b strings.Builder
	b.WriteString("Find the upcoming football matches involving:\n")
	fmt.Fprintf(&b, "1. ONLY these clubs: %s.\n", strings.Join(s.Teams, ", "))
	fmt.Fprintf(&b, "2. The %s.\n\n", s.NationalTeam)
	fmt.Fprintf(&b, "Consider competitions such as %s.\n\n", strings.Join(s.Competitions, ", "))
	b.WriteString("Rules:\n")
	fmt.Fprintf(&b, "- Only matches SCHEDULED within the next %d days.\n", s.HorizonDays)
	for _, ex := range s.Excluded {
		fmt.Fprintf(&b, "- Completely IGNORE %s.\n", ex)
	}
	b.WriteString("- Do not include scores; only date, time, teams and venue.\n")
	b.WriteString("- 'dateTime' MUST be ISO 8601 in UTC (e.g. 2025-05-20T20:00:00Z).\n")
	b.WriteString("- 'status' must always be 'SCHEDULED'.\n\n")
	b.WriteString("Return ONLY plain JSON with exactly this structure:\n")
	b.WriteString(responseShape)
	b.WriteString("\n")
	return b.String()
}
