// Package normalizer maps legacy placeholder spellings onto the canonical
// lower-camel field vocabulary.
package normalizer

import (
	"regexp"
	"strings"
)

// legacyMap pins the exact spellings used by older template revisions.
// Spellings outside this map fall back to the algorithmic conversion.
var legacyMap = map[string]string{
	"FULL_NAME":       "fullName",
	"WITNESS_1_NAME":  "witness1Name",
	"WITNESS_1_EMAIL": "witness1Email",
	"WITNESS_2_NAME":  "witness2Name",
	"WITNESS_2_EMAIL": "witness2Email",
	"SIGNATURE_DATE":  "signatureDate",
}

var upperSnake = regexp.MustCompile(`^[A-Z0-9]+(_[A-Z0-9]+)*$`)

// Normalize returns the canonical field name for a tag. Legacy spellings map
// through the fixed table, other UPPER_SNAKE tags convert algorithmically,
// and anything else passes through unchanged. Applying Normalize twice yields
// the same result as applying it once.
func Normalize(tag string) string {
	if canonical, ok := legacyMap[tag]; ok {
		return canonical
	}
	if upperSnake.MatchString(tag) {
		return snakeToCamel(tag)
	}
	return tag
}

// NormalizeAll normalizes a tag list, deduplicating spellings that converge
// on the same canonical name. Input order is preserved.
func NormalizeAll(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		canonical := Normalize(tag)
		if _, ok := seen[canonical]; ok {
			continue
		}
		seen[canonical] = struct{}{}
		out = append(out, canonical)
	}
	return out
}

// NormalizeRecord rewrites a field record's top-level keys onto the canonical
// vocabulary. Already-canonical keys win over legacy duplicates.
func NormalizeRecord(record map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(record))
	for key, value := range record {
		canonical := Normalize(key)
		if _, exists := out[canonical]; exists && canonical != key {
			continue
		}
		out[canonical] = value
	}
	return out
}

func snakeToCamel(tag string) string {
	parts := strings.Split(tag, "_")
	var b strings.Builder
	for i, part := range parts {
		lower := strings.ToLower(part)
		if i == 0 {
			b.WriteString(lower)
			continue
		}
		if lower == "" {
			continue
		}
		b.WriteString(strings.ToUpper(lower[:1]))
		b.WriteString(lower[1:])
	}
	return b.String()
}
