// Package words implements the word counting that drives task validation.
package words

import (
	"fmt"
	"strings"
)

// Count returns the number of maximal whitespace-delimited non-empty tokens.
// Apostrophes and hyphens are part of a token, not separators, so French
// contractions ("l'école", "peut-être") count as one word each.
func Count(text string) int {
	return len(strings.Fields(text))
}

// Status classifies a word count against a task's band.
type Status string

const (
	StatusBelow Status = "below"
	StatusValid Status = "valid"
	StatusAbove Status = "above"
)

// StatusOf returns where count falls relative to [min, max].
func StatusOf(count, min, max int) Status {
	if count < min {
		return StatusBelow
	}
	if count > max {
		return StatusAbove
	}
	return StatusValid
}

// FormatClock renders a number of seconds as MM:SS for timer payloads.
func FormatClock(totalSeconds int) string {
	if totalSeconds < 0 {
		totalSeconds = 0
	}
	return fmt.Sprintf("%02d:%02d", totalSeconds/60, totalSeconds%60)
}
