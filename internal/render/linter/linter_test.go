package linter

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docgen-service/internal/render/scanner"
)

func writeDocx(t *testing.T, dir, name, documentXML string) string {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, err := w.Create("word/document.xml")
	require.NoError(t, err)
	_, err = fw.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestLintDir_ReportsLegacySpellings(t *testing.T) {
	dir := t.TempDir()
	writeDocx(t, dir, "legacy.docx", `<w:t>{{FULL_NAME}} on {{SIGNATURE_DATE}}</w:t>`)
	writeDocx(t, dir, "clean.docx", `<w:t>{{fullName}}</w:t>`)

	reports, err := LintDir(dir)
	require.NoError(t, err)
	require.Len(t, reports, 2)

	byName := map[string]Report{}
	for _, r := range reports {
		byName[r.Name] = r
	}

	legacy := byName["legacy.docx"]
	assert.Equal(t, map[string]string{
		"FULL_NAME":      "fullName",
		"SIGNATURE_DATE": "signatureDate",
	}, legacy.Legacy)

	clean := byName["clean.docx"]
	assert.Empty(t, clean.Legacy)
	assert.Equal(t, []string{"fullName"}, clean.Tags)
}

func TestLintDir_SkipsNonTemplates(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	reports, err := LintDir(dir)
	require.NoError(t, err)
	assert.Empty(t, reports)
}

func TestLintDir_ReportsUnreadableTemplate(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.docx"), []byte("not a zip"), 0o644))

	reports, err := LintDir(dir)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Error(t, reports[0].Err)
}

func TestHeal_RewritesLegacyTagsInCopy(t *testing.T) {
	dir := t.TempDir()
	path := writeDocx(t, dir, "legacy.docx", `<w:t>{{FULL_NAME}} and {{fullName}}</w:t>`)
	original, err := os.ReadFile(path)
	require.NoError(t, err)

	healed, err := Heal(path)
	require.NoError(t, err)

	tags, err := scanner.Scan(healed)
	require.NoError(t, err)
	assert.Equal(t, []string{"fullName"}, tags)

	// The source file is untouched.
	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, original, after)
}

func TestHeal_CleanTemplateUnchanged(t *testing.T) {
	dir := t.TempDir()
	path := writeDocx(t, dir, "clean.docx", `<w:t>{{fullName}}</w:t>`)
	original, err := os.ReadFile(path)
	require.NoError(t, err)

	healed, err := Heal(path)
	require.NoError(t, err)
	assert.Equal(t, original, healed)
}
