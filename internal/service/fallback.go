package service

import (
	"time"

	"github.com/kjstillabower/matchboard/internal/models"
)

type placeholder struct {
	id, home, away, league, venue string
	daysAhead                     int
	hourUTC                       int
}

var placeholders = []placeholder{
	{"placeholder-1", "Palmeiras", "Corinthians", "Brasileirão Série A", "Allianz Parque", 3, 22},
	{"placeholder-2", "São Paulo", "Santos", "Brasileirão Série A", "MorumBIS", 7, 19},
	{"placeholder-3", "Brasil", "Argentina", "Eliminatórias da Copa", "Maracanã", 14, 23},
	{"placeholder-4", "Guarani", "Ponte Preta", "Brasileirão Série B", "Brinco de Ouro", 21, 0},
}

// PlaceholderMatches returns the built-in example schedule, dated relative to
// now so the cards always look upcoming.
func PlaceholderMatches(now time.Time) []models.Match {
	day := now.UTC().Truncate(24 * time.Hour)
	out := make([]models.Match, 0, len(placeholders))
	for _, p := range placeholders {
		kickoff := day.AddDate(0, 0, p.daysAhead).Add(time.Duration(p.hourUTC) * time.Hour)
		out = append(out, models.Match{
			ID:       p.id,
			HomeTeam: p.home,
			AwayTeam: p.away,
			League:   p.league,
			DateTime: kickoff.Format(time.RFC3339),
			Status:   models.StatusScheduled,
			Venue:    p.venue,
		})
	}
	return out
}
