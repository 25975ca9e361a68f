// Package binder substitutes field values into a DOCX template's XML parts.
//
// Authoring tools frequently split a single {{tag}} across several internal
// runs, so a tag that scanned cleanly can still surface as unresolved at bind
// time. The binder therefore binds in at most two attempts: the first pass
// uses the plain tag syntax; if unresolved placeholders remain, every tag
// named in the failure detail is force-filled with the default and a second,
// markup-tolerant pass runs once. A second failure is terminal.
package binder

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"docgen-service/internal/render/normalizer"
	"docgen-service/internal/render/scanner"
)

// ErrBindRetryExhausted reports that the forced-fill retry also left
// unresolved placeholders.
var ErrBindRetryExhausted = errors.New("BIND_RETRY_EXHAUSTED")

// DefaultValue fills every tag the caller's record does not cover.
const DefaultValue = ""

var (
	// plainTag matches placeholders whose braces and name sit in one text run.
	plainTag = regexp.MustCompile(`\{\{\s*([^}\s]+)\s*\}\}`)
	// spannedTag additionally matches placeholders interrupted by XML markup.
	spannedTag = regexp.MustCompile(`\{\{([^{}]*?)\}\}`)
	// xmlMarkup strips interleaved element tags when recovering a spanned name.
	xmlMarkup = regexp.MustCompile(`<[^>]*>`)
)

// Result is the outcome of a bind.
type Result struct {
	// Doc holds the bound document bytes; valid whenever OK is true.
	Doc []byte
	// Missing lists the tags that had to be filled with the default value.
	Missing []string
	// OK reports whether binding produced a usable document.
	OK bool
	// Err carries the terminal bind error when OK is false.
	Err error
}

// Bind builds a complete substitution record over tags (caller values where
// present, the default elsewhere) and substitutes it into every word/*.xml
// part of the template archive.
func Bind(templateBytes []byte, tags []string, record map[string]interface{}) Result {
	values := make(map[string]string, len(tags))
	missing := make(map[string]struct{})

	for _, tag := range tags {
		if v, ok := stringValue(record, tag); ok {
			values[tag] = v
			continue
		}
		values[tag] = DefaultValue
		missing[tag] = struct{}{}
	}

	doc, unresolved, err := substituteArchive(templateBytes, values, false)
	if err != nil {
		return Result{Err: err}
	}

	if len(unresolved) > 0 {
		// Force-fill everything named in the failure detail and retry once.
		for _, tag := range unresolved {
			if _, ok := values[tag]; ok {
				continue
			}
			if v, ok := stringValue(record, tag); ok {
				values[tag] = v
				continue
			}
			values[tag] = DefaultValue
			missing[tag] = struct{}{}
		}

		doc, unresolved, err = substituteArchive(templateBytes, values, true)
		if err != nil {
			return Result{Err: err}
		}
		if len(unresolved) > 0 {
			return Result{
				Missing: sortedKeys(missing),
				Err:     fmt.Errorf("%w: unresolved tags %v", ErrBindRetryExhausted, unresolved),
			}
		}
	}

	return Result{Doc: doc, Missing: sortedKeys(missing), OK: true}
}

// stringValue resolves a tag against the record, accepting the normalized
// spelling as well, and formats the leaf as a string.
func stringValue(record map[string]interface{}, tag string) (string, bool) {
	if v, ok := record[tag]; ok {
		return formatValue(v), true
	}
	if canonical := normalizer.Normalize(tag); canonical != tag {
		if v, ok := record[canonical]; ok {
			return formatValue(v), true
		}
	}
	return "", false
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case nil:
		return DefaultValue
	default:
		return fmt.Sprintf("%v", val)
	}
}

// substituteArchive rewrites every word/*.xml part of the archive, replacing
// placeholders with values. It returns the rewritten archive and the names of
// placeholders it could not resolve. With spanned=true it also collapses tags
// split across formatting runs.
func substituteArchive(templateBytes []byte, values map[string]string, spanned bool) ([]byte, []string, error) {
	r, err := zip.NewReader(bytes.NewReader(templateBytes), int64(len(templateBytes)))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", scanner.ErrMalformedTemplate, err)
	}

	var out bytes.Buffer
	w := zip.NewWriter(&out)
	unresolved := make(map[string]struct{})

	for _, f := range r.File {
		data, err := readEntry(f)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: read %s: %v", scanner.ErrMalformedTemplate, f.Name, err)
		}

		if isTextPart(f.Name) {
			content := string(data)
			content = substituteText(content, values, unresolved, spanned)
			data = []byte(content)
		}

		hdr := &zip.FileHeader{Name: f.Name, Method: zip.Deflate}
		fw, err := w.CreateHeader(hdr)
		if err != nil {
			return nil, nil, fmt.Errorf("rewrite archive entry %s: %w", f.Name, err)
		}
		if _, err := fw.Write(data); err != nil {
			return nil, nil, fmt.Errorf("rewrite archive entry %s: %w", f.Name, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, nil, fmt.Errorf("finalize archive: %w", err)
	}

	return out.Bytes(), sortedKeys(unresolved), nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// isTextPart reports whether an archive entry carries substitutable text.
// Headers and footers live beside the main document part.
func isTextPart(name string) bool {
	return strings.HasPrefix(name, "word/") && strings.HasSuffix(name, ".xml")
}

func substituteText(content string, values map[string]string, unresolved map[string]struct{}, spanned bool) string {
	content = plainTag.ReplaceAllStringFunc(content, func(match string) string {
		name := strings.TrimSpace(plainTag.FindStringSubmatch(match)[1])
		name = strings.TrimSpace(strings.SplitN(name, "|", 2)[0])
		if v, ok := values[name]; ok {
			return v
		}
		unresolved[name] = struct{}{}
		return match
	})

	if !spanned {
		// First attempt: spanned placeholders are surfaced as unresolved
		// rather than rewritten, mirroring how the substitution engine
		// reports them.
		for _, m := range spannedTag.FindAllStringSubmatch(content, -1) {
			if name := spannedName(m[1]); name != "" {
				unresolved[name] = struct{}{}
			}
		}
		return content
	}

	return spannedTag.ReplaceAllStringFunc(content, func(match string) string {
		interior := spannedTag.FindStringSubmatch(match)[1]
		name := spannedName(interior)
		if name == "" {
			return match
		}
		if v, ok := values[name]; ok {
			delete(unresolved, name)
			return v
		}
		unresolved[name] = struct{}{}
		return match
	})
}

// spannedName recovers a tag name from an interior interrupted by markup.
func spannedName(interior string) string {
	name := xmlMarkup.ReplaceAllString(interior, "")
	name = strings.TrimSpace(strings.SplitN(name, "|", 2)[0])
	if name == "" || strings.ContainsAny(name, "<> ") {
		return ""
	}
	return name
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
