package extract

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/kjstillabower/matchboard/internal/models"
)

const (
	idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	idLength   = 9
)

// looseString accepts a JSON string or number. Models sometimes emit numeric ids.
type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = looseString(v)
		return nil
	}
	if _, err := strconv.ParseFloat(string(b), 64); err != nil {
		return fmt.Errorf("expected string or number, got %s", b)
	}
	*s = looseString(b)
	return nil
}

type rawMatch struct {
	ID         looseString   `json:"id"`
	HomeTeam   string        `json:"homeTeam"`
	AwayTeam   string        `json:"awayTeam"`
	League     string        `json:"league"`
	DateTime   string        `json:"dateTime"`
	Status     string        `json:"status"`
	Venue      string        `json:"venue"`
	Prediction string        `json:"prediction"`
	Score      *models.Score `json:"score"`
}

type matchesEnvelope struct {
	Matches json.RawMessage `json:"matches"`
}

// Matches extracts the "matches" array from provider text. Entries without an
// id, or repeating an earlier id, get a generated one; a missing or unknown
// status becomes SCHEDULED. A present but empty array is a valid result.
func Matches(text string) ([]models.Match, error) {
	var env matchesEnvelope
	if err := Decode(text, &env); err != nil {
		return nil, err
	}
	raw := bytes.TrimSpace(env.Matches)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, fmt.Errorf("%w: missing matches array", ErrInvalidJSON)
	}
	var entries []rawMatch
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("%w: matches: %v", ErrInvalidJSON, err)
	}

	out := make([]models.Match, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		id := strings.TrimSpace(string(e.ID))
		if _, dup := seen[id]; id == "" || dup {
			generated, err := NewID()
			if err != nil {
				return nil, err
			}
			id = generated
		}
		seen[id] = struct{}{}

		status, ok := models.ParseStatus(e.Status)
		if !ok {
			status = models.StatusScheduled
		}
		out = append(out, models.Match{
			ID:         id,
			HomeTeam:   strings.TrimSpace(e.HomeTeam),
			AwayTeam:   strings.TrimSpace(e.AwayTeam),
			League:     strings.TrimSpace(e.League),
			DateTime:   strings.TrimSpace(e.DateTime),
			Status:     status,
			Venue:      strings.TrimSpace(e.Venue),
			Prediction: strings.TrimSpace(e.Prediction),
			Score:      e.Score,
		})
	}
	return out, nil
}

// NewID returns a short random match identifier.
func NewID() (string, error) {
	id, err := gonanoid.Generate(idAlphabet, idLength)
	if err != nil {
		return "", fmt.Errorf("generate match id: %w", err)
	}
	return id, nil
}
