// Package scanner extracts placeholder tags from a packaged DOCX template.
package scanner

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
)

// ErrMalformedTemplate reports bytes that are not a readable document archive
// or lack the main document part.
var ErrMalformedTemplate = errors.New("MALFORMED_TEMPLATE")

// DocumentPart is the archive entry holding the template's main text.
const DocumentPart = "word/document.xml"

var tagPattern = regexp.MustCompile(`\{\{\s*([^}\s]+)\s*\}\}`)

// Scan returns the distinct placeholder tags found in the template's main
// document part. Interior whitespace is trimmed and duplicates are removed;
// the result is sorted for stable diagnostics.
func Scan(templateBytes []byte) ([]string, error) {
	xml, err := readDocumentPart(templateBytes)
	if err != nil {
		return nil, err
	}
	return ScanText(xml), nil
}

// ScanText extracts distinct placeholder tags from already-unpacked text.
func ScanText(text string) []string {
	seen := make(map[string]struct{})
	var tags []string
	for _, m := range tagPattern.FindAllStringSubmatch(text, -1) {
		tag := m[1]
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

func readDocumentPart(templateBytes []byte) (string, error) {
	r, err := zip.NewReader(bytes.NewReader(templateBytes), int64(len(templateBytes)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedTemplate, err)
	}

	for _, f := range r.File {
		if f.Name != DocumentPart {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("%w: open %s: %v", ErrMalformedTemplate, DocumentPart, err)
		}
		defer rc.Close()

		data, err := io.ReadAll(rc)
		if err != nil {
			return "", fmt.Errorf("%w: read %s: %v", ErrMalformedTemplate, DocumentPart, err)
		}
		return string(data), nil
	}

	return "", fmt.Errorf("%w: %s not found in archive", ErrMalformedTemplate, DocumentPart)
}
