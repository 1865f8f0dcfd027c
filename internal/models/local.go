package models

import "time"

// Brasilia is the display zone for kickoff times. Brazil has not observed
// daylight saving time since 2019.
var Brasilia = time.FixedZone("BRT", -3*60*60)

var monthAbbr = [...]string{"jan", "fev", "mar", "abr", "mai", "jun", "jul", "ago", "set", "out", "nov", "dez"}

// ShortDate formats t as "02 jan" with Portuguese month abbreviations.
func ShortDate(t time.Time) string {
	return t.Format("02") + " " + monthAbbr[t.Month()-1]
}

// LocalKickoff returns the kickoff date and time in Brasília, or "a definir"
// and "--:--" when DateTime does not parse.
func (m Match) LocalKickoff() (date, clock string) {
	k, ok := m.Kickoff()
	if !ok {
		return "a definir", "--:--"
	}
	local := k.In(Brasilia)
	return ShortDate(local), local.Format("15:04")
}
