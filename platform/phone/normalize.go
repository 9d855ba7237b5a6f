// Package phone provides phone number utilities.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"regexp"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const defaultRegion = "US"

// northAmericanPattern matches 10-digit NANP shaped numbers with optional +1
// prefix and common separators.
var northAmericanPattern = regexp.MustCompile(`\+?1?[-.\s]?\(?[2-9]\d{2}\)?[-.\s]?\d{3}[-.\s]?\d{4}\b|\b[2-9]\d{2}[-.\s]?\d{3}[-.\s]?\d{4}\b`)

// NormalizeE164 formats a phone number to E.164. If parsing fails, it returns the trimmed input.
func NormalizeE164(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return trimmed
	}

	number, err := phonenumbers.Parse(trimmed, defaultRegion)
	if err != nil {
		return trimmed
	}

	if !phonenumbers.IsValidNumber(number) {
		return trimmed
	}

	return phonenumbers.Format(number, phonenumbers.E164)
}

// ExtractFromText returns the first phone-number-shaped token in text, or "".
func ExtractFromText(text string) string {
	match := northAmericanPattern.FindString(text)
	return strings.TrimSpace(match)
}
