package service

import (
	"fmt"
	"math"
	"time"

	"github.com/kjstillabower/matchboard/internal/models"
)

func reasonSentence(reason models.Reason) string {
	switch reason {
	case models.ReasonRateLimited:
		return "The schedule provider's rate limit was reached."
	case models.ReasonCredential:
		return "No valid API key is configured for the schedule provider."
	case models.ReasonMalformed:
		return "The schedule provider returned a response that could not be read."
	default:
		return "Could not connect to the schedule provider."
	}
}

func staleWarning(reason models.Reason, age time.Duration) string {
	return fmt.Sprintf("%s Showing saved matches from %s ago.", reasonSentence(reason), humanizeAge(age))
}

func fallbackWarning(reason models.Reason) string {
	return reasonSentence(reason) + " Live and cached data are both unavailable, so example matches are shown."
}

func cooldownWarning(wait time.Duration) string {
	secs := int(math.Ceil(wait.Seconds()))
	return fmt.Sprintf("The schedule was refreshed recently. Try again in %ds.", secs)
}

func humanizeAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "less than a minute"
	case d < time.Hour:
		return plural(int(d/time.Minute), "minute")
	case d < 48*time.Hour:
		return plural(int(d/time.Hour), "hour")
	default:
		return plural(int(d/(24*time.Hour)), "day")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
