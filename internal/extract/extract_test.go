package extract

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjstillabower/matchboard/internal/models"
)

func TestLocateObject(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr error
	}{
		{"bare object", `{"a":1}`, `{"a":1}`, nil},
		{"code fence", "Here you go:\n```json\n{\"matches\":[]}\n```\nEnjoy", `{"matches":[]}`, nil},
		{"nested keeps outermost", `x {"a":{"b":2}} y`, `{"a":{"b":2}}`, nil},
		{"no braces", "sorry, no games found", "", ErrNoJSON},
		{"only closing before opening", "} then {", "", ErrNoJSON},
		{"empty", "", "", ErrNoJSON},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LocateObject(tt.in)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecode_InvalidJSON(t *testing.T) {
	var v map[string]any
	err := Decode("result: {matches: [oops}", &v)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidJSON), "want ErrInvalidJSON, got %v", err)
	assert.False(t, errors.Is(err, ErrNoJSON))
}

func TestMatches_SingleEntry(t *testing.T) {
	text := `{"matches":[{"id":"m1","homeTeam":"A","awayTeam":"B","league":"X","dateTime":"2025-01-01T10:00:00Z","status":"SCHEDULED"}]}`

	got, err := Matches(text)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.Match{
		ID:       "m1",
		HomeTeam: "A",
		AwayTeam: "B",
		League:   "X",
		DateTime: "2025-01-01T10:00:00Z",
		Status:   models.StatusScheduled,
	}, got[0])
}

func TestMatches_WrappedEmptyArray(t *testing.T) {
	got, err := Matches("Here you go:\n```json\n{\"matches\":[]}\n```\nEnjoy")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestMatches_DefaultsAndGeneratedIDs(t *testing.T) {
	text := `{"matches":[
		{"homeTeam":"Santos","awayTeam":"Guarani","league":"Série B","dateTime":"2025-04-01T22:00:00Z"},
		{"id":7,"homeTeam":"Palmeiras","awayTeam":"Corinthians","league":"Série A","dateTime":"2025-04-02T21:30:00Z","status":"live","score":{"home":1,"away":0}},
		{"id":"7","homeTeam":"Mirassol","awayTeam":"Ituano","league":"Série B","dateTime":"bad","status":"POSTPONED","venue":"Maião"}
	]}`

	got, err := Matches(text)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Len(t, got[0].ID, idLength)
	assert.Equal(t, models.StatusScheduled, got[0].Status)

	assert.Equal(t, "7", got[1].ID)
	assert.Equal(t, models.StatusLive, got[1].Status)
	require.NotNil(t, got[1].Score)
	assert.Equal(t, 1, got[1].Score.Home)

	assert.NotEqual(t, "7", got[2].ID, "duplicate id should be replaced")
	assert.Equal(t, models.StatusScheduled, got[2].Status)
	assert.Equal(t, "bad", got[2].DateTime, "unparsable dates are kept")
	assert.Equal(t, "Maião", got[2].Venue)
}

func TestMatches_Failures(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr error
	}{
		{"prose only", "I could not find any upcoming matches.", ErrNoJSON},
		{"missing key", `{"games":[]}`, ErrInvalidJSON},
		{"null matches", `{"matches":null}`, ErrInvalidJSON},
		{"matches not array", `{"matches":"soon"}`, ErrInvalidJSON},
		{"truncated", `{"matches":[{"id":"m1"}`, ErrInvalidJSON},
		{"bad id type", `{"matches":[{"id":true}]}`, ErrInvalidJSON},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Matches(tt.in)
			assert.Nil(t, got)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestNewID(t *testing.T) {
	a, err := NewID()
	require.NoError(t, err)
	b, err := NewID()
	require.NoError(t, err)
	assert.Len(t, a, idLength)
	assert.NotEqual(t, a, b)
	for _, r := range a {
		assert.Contains(t, idAlphabet, string(r))
	}
}
