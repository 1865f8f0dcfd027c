package models

import "sort"

// SortByKickoff returns a copy of matches ordered by parsed kickoff time,
// earliest first. Entries whose DateTime does not parse keep their relative
// order and go last.
func SortByKickoff(matches []Match) []Match {
	out := make([]Match, len(matches))
	copy(out, matches)
	sort.SliceStable(out, func(i, j int) bool {
		ti, okI := out[i].Kickoff()
		tj, okJ := out[j].Kickoff()
		switch {
		case !okI:
			return false
		case !okJ:
			return true
		}
		return ti.Before(tj)
	})
	return out
}
