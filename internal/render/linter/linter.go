// Package linter inspects stored templates for legacy tag spellings and
// produces healed copies with canonical tags. Healing is copy-only; the
// render path itself never rewrites a stored template.
package linter

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"docgen-service/internal/render/normalizer"
	"docgen-service/internal/render/scanner"
)

// Report describes one template's tags and any legacy spellings found.
type Report struct {
	Name string
	Tags []string
	// Legacy maps each legacy spelling to its canonical form.
	Legacy map[string]string
	Err    error
}

// LintDir scans every .docx file directly under dir.
func LintDir(dir string) ([]Report, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading template directory: %w", err)
	}

	var reports []Report
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".docx") {
			continue
		}
		reports = append(reports, lintFile(dir, entry.Name()))
	}
	return reports, nil
}

func lintFile(dir, name string) Report {
	report := Report{Name: name, Legacy: map[string]string{}}

	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		report.Err = err
		return report
	}
	tags, err := scanner.Scan(data)
	if err != nil {
		report.Err = err
		return report
	}

	report.Tags = tags
	for _, tag := range tags {
		if canonical := normalizer.Normalize(tag); canonical != tag {
			report.Legacy[tag] = canonical
		}
	}
	return report
}

// Heal returns a copy of the template at path with every legacy tag
// rewritten to its canonical spelling. The file on disk is left untouched.
func Heal(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading template: %w", err)
	}
	tags, err := scanner.Scan(data)
	if err != nil {
		return nil, err
	}

	replacements := map[string]string{}
	for _, tag := range tags {
		if canonical := normalizer.Normalize(tag); canonical != tag {
			replacements[tag] = canonical
		}
	}
	if len(replacements) == 0 {
		return data, nil
	}
	return rewriteArchive(data, replacements)
}

func rewriteArchive(data []byte, replacements map[string]string) ([]byte, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("opening template archive: %w", err)
	}

	var out bytes.Buffer
	writer := zip.NewWriter(&out)
	for _, file := range reader.File {
		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("opening archive entry %s: %w", file.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("reading archive entry %s: %w", file.Name, err)
		}

		if strings.HasPrefix(file.Name, "word/") && strings.HasSuffix(file.Name, ".xml") {
			text := string(content)
			for _, legacy := range sortedTags(replacements) {
				text = strings.ReplaceAll(text,
					"{{"+legacy+"}}", "{{"+replacements[legacy]+"}}")
			}
			content = []byte(text)
		}

		header := &zip.FileHeader{Name: file.Name, Method: zip.Deflate}
		w, err := writer.CreateHeader(header)
		if err != nil {
			return nil, fmt.Errorf("writing archive entry %s: %w", file.Name, err)
		}
		if _, err := w.Write(content); err != nil {
			return nil, fmt.Errorf("writing archive entry %s: %w", file.Name, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalizing healed archive: %w", err)
	}
	return out.Bytes(), nil
}

func sortedTags(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
