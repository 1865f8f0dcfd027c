// Package extract pulls structured data out of free-form model output.
//
// Providers are asked for "pure JSON" but routinely wrap it in prose or
// markdown code fences. The functions here locate the outermost JSON object
// in the text and decode it, reporting ErrNoJSON or ErrInvalidJSON instead of
// failing silently with an empty value.
package extract

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

var (
	// ErrNoJSON is returned when the text contains no {...} span.
	ErrNoJSON = errors.New("no JSON object found")
	// ErrInvalidJSON is returned when the located span does not decode.
	ErrInvalidJSON = errors.New("invalid JSON")
)

// LocateObject returns the substring from the first '{' to the last '}'.
func LocateObject(text string) (string, error) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return "", ErrNoJSON
	}
	return strings.TrimSpace(text[start : end+1]), nil
}

// Decode locates the JSON object in text and unmarshals it into v.
func Decode(text string, v any) error {
	obj, err := LocateObject(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(obj), v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	return nil
}
