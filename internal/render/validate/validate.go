// Package validate decides whether a field record covers a template's
// placeholders before binding is attempted.
package validate

import (
	"strconv"
	"strings"
)

// ExampleValue is the placeholder used when synthesizing an example payload.
const ExampleValue = "<value>"

// Missing returns the tags the record does not supply, in tag order. A tag is
// missing only when its path cannot be resolved at all; an empty string is a
// valid present value. Dotted tags walk nested maps, with numeric segments
// indexing into slices.
func Missing(tags []string, record map[string]interface{}) []string {
	missing := make([]string, 0)
	for _, tag := range tags {
		cleaned := cleanTag(tag)
		if cleaned == "" {
			continue
		}
		if !hasPath(record, cleaned) {
			missing = append(missing, cleaned)
		}
	}
	return missing
}

// ExamplePayload maps every required tag to a placeholder value so a caller
// rejected in strict mode can self-correct.
func ExamplePayload(tags []string) map[string]string {
	example := make(map[string]string, len(tags))
	for _, tag := range tags {
		cleaned := cleanTag(tag)
		if cleaned == "" {
			continue
		}
		example[cleaned] = ExampleValue
	}
	return example
}

// cleanTag strips filter suffixes and whitespace, e.g.
// "person.name | upper" -> "person.name".
func cleanTag(tag string) string {
	cleaned, _, _ := strings.Cut(tag, "|")
	return strings.TrimSpace(cleaned)
}

func hasPath(record map[string]interface{}, path string) bool {
	if path == "" {
		return false
	}

	// A literal flat key counts as present even when it contains dots.
	if _, ok := record[path]; ok {
		return true
	}

	var cur interface{} = record
	for _, part := range strings.Split(path, ".") {
		if cur == nil {
			return false
		}

		if idx, err := strconv.Atoi(part); err == nil {
			list, ok := cur.([]interface{})
			if !ok || idx < 0 || idx >= len(list) {
				return false
			}
			cur = list[idx]
			continue
		}

		obj, ok := cur.(map[string]interface{})
		if !ok {
			return false
		}
		val, exists := obj[part]
		if !exists {
			return false
		}
		cur = val
	}
	return true
}
