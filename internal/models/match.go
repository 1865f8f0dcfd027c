package models

import (
	"strings"
	"time"
)

// Status is the lifecycle state of a match as reported by the provider.
type Status string

const (
	StatusScheduled Status = "SCHEDULED"
	StatusLive      Status = "LIVE"
	StatusFinished  Status = "FINISHED"
)

// ParseStatus normalizes s and reports whether it names a known status.
func ParseStatus(s string) (Status, bool) {
	switch st := Status(strings.ToUpper(strings.TrimSpace(s))); st {
	case StatusScheduled, StatusLive, StatusFinished:
		return st, true
	}
	return "", false
}

// Score is the current or final score of a match.
type Score struct {
	Home int `json:"home"`
	Away int `json:"away"`
}

// Match is one fixture as reported by the provider. DateTime is kept as the
// raw string; use Kickoff to parse it.
type Match struct {
	ID         string `json:"id"`
	HomeTeam   string `json:"homeTeam"`
	AwayTeam   string `json:"awayTeam"`
	League     string `json:"league"`
	DateTime   string `json:"dateTime"`
	Status     Status `json:"status"`
	Venue      string `json:"venue,omitempty"`
	Prediction string `json:"prediction,omitempty"`
	Score      *Score `json:"score,omitempty"`
}

// kickoffLayouts are tried in order. The provider is asked for RFC 3339 but
// regularly drops the zone designator or the seconds.
var kickoffLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Kickoff parses DateTime. Values without a zone are read as UTC.
func (m Match) Kickoff() (time.Time, bool) {
	s := strings.TrimSpace(m.DateTime)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range kickoffLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// GroundingSource is a web page the provider cited while answering.
type GroundingSource struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// closeWindowDays is how many days ahead a kickoff is highlighted as close.
const closeWindowDays = 3

// IsNationalTeam reports whether either side is the Brazil national team.
func (m Match) IsNationalTeam() bool {
	return strings.Contains(strings.ToLower(m.HomeTeam), "brasil") ||
		strings.Contains(strings.ToLower(m.AwayTeam), "brasil") ||
		strings.Contains(strings.ToLower(m.HomeTeam), "brazil") ||
		strings.Contains(strings.ToLower(m.AwayTeam), "brazil")
}

// DaysUntil returns the number of days until kickoff, rounded up. ok is
// false when DateTime does not parse.
func (m Match) DaysUntil(now time.Time) (days int, ok bool) {
	k, ok := m.Kickoff()
	if !ok {
		return 0, false
	}
	d := k.Sub(now)
	days = int(d / (24 * time.Hour))
	if d%(24*time.Hour) > 0 {
		days++
	}
	return days, true
}

// IsClose reports whether kickoff is between now and three days from now.
func (m Match) IsClose(now time.Time) bool {
	days, ok := m.DaysUntil(now)
	return ok && days >= 0 && days <= closeWindowDays
}
