package binder

import (
	"archive/zip"
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func buildDocx(t *testing.T, parts map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range parts {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func readPart(t *testing.T, archive []byte, name string) string {
	t.Helper()
	r, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	require.NoError(t, err)
	for _, f := range r.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err)
		defer rc.Close()
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		return string(data)
	}
	t.Fatalf("part %s not found in archive", name)
	return ""
}

// ==========================
// Bind Tests
// ==========================

func TestBind_ReplacesAllTags(t *testing.T) {
	doc := buildDocx(t, map[string]string{
		"word/document.xml": `<w:t>Dear {{fullName}} of {{city}}</w:t>`,
	})

	result := Bind(doc, []string{"fullName", "city"}, map[string]interface{}{
		"fullName": "Ada Lovelace",
		"city":     "London",
	})

	require.True(t, result.OK)
	assert.Empty(t, result.Missing)

	text := readPart(t, result.Doc, "word/document.xml")
	assert.Contains(t, text, "Ada Lovelace")
	assert.Contains(t, text, "London")
	assert.NotContains(t, text, "{{")
}

func TestBind_FillsAbsentTagsWithDefault(t *testing.T) {
	doc := buildDocx(t, map[string]string{
		"word/document.xml": `<w:t>{{fullName}} signed on {{signatureDate}}</w:t>`,
	})

	result := Bind(doc, []string{"fullName", "signatureDate"}, map[string]interface{}{
		"fullName": "Ada Lovelace",
	})

	require.True(t, result.OK)
	assert.Equal(t, []string{"signatureDate"}, result.Missing)

	text := readPart(t, result.Doc, "word/document.xml")
	assert.Contains(t, text, "Ada Lovelace")
	assert.NotContains(t, text, "{{")
}

func TestBind_LegacyTagResolvesCanonicalKey(t *testing.T) {
	doc := buildDocx(t, map[string]string{
		"word/document.xml": `<w:t>{{FULL_NAME}}</w:t>`,
	})

	result := Bind(doc, []string{"FULL_NAME"}, map[string]interface{}{
		"fullName": "Ada Lovelace",
	})

	require.True(t, result.OK)
	assert.Empty(t, result.Missing)
	assert.Contains(t, readPart(t, result.Doc, "word/document.xml"), "Ada Lovelace")
}

func TestBind_SpannedTagResolvedOnRetry(t *testing.T) {
	// The tag is interrupted by a formatting run, so the plain syntax
	// misses it on the first attempt.
	doc := buildDocx(t, map[string]string{
		"word/document.xml": `<w:t>{{full</w:t></w:r><w:r w:rsidR="00AB"><w:t>Name}}</w:t>`,
	})

	result := Bind(doc, nil, map[string]interface{}{
		"fullName": "Ada Lovelace",
	})

	require.True(t, result.OK)
	assert.Empty(t, result.Missing)

	text := readPart(t, result.Doc, "word/document.xml")
	assert.Contains(t, text, "Ada Lovelace")
	assert.NotContains(t, text, "{{")
}

func TestBind_SpannedTagAbsentFromRecordIsDefaulted(t *testing.T) {
	doc := buildDocx(t, map[string]string{
		"word/document.xml": `<w:t>{{signature</w:t></w:r><w:r w:b="1"><w:t>Date}}</w:t>`,
	})

	result := Bind(doc, nil, map[string]interface{}{})

	require.True(t, result.OK)
	assert.Equal(t, []string{"signatureDate"}, result.Missing)
	assert.NotContains(t, readPart(t, result.Doc, "word/document.xml"), "{{")
}

func TestBind_SubstitutesHeadersAndFooters(t *testing.T) {
	doc := buildDocx(t, map[string]string{
		"word/document.xml": `<w:t>{{fullName}}</w:t>`,
		"word/header1.xml":  `<w:t>{{fullName}}</w:t>`,
		"word/footer1.xml":  `<w:t>{{city}}</w:t>`,
	})

	result := Bind(doc, []string{"fullName"}, map[string]interface{}{
		"fullName": "Ada Lovelace",
		"city":     "London",
	})

	require.True(t, result.OK)
	assert.Contains(t, readPart(t, result.Doc, "word/header1.xml"), "Ada Lovelace")
	assert.Contains(t, readPart(t, result.Doc, "word/footer1.xml"), "London")
}

func TestBind_FormatsNonStringValues(t *testing.T) {
	doc := buildDocx(t, map[string]string{
		"word/document.xml": `<w:t>{{count}} items, active: {{active}}</w:t>`,
	})

	result := Bind(doc, []string{"count", "active"}, map[string]interface{}{
		"count":  42,
		"active": true,
	})

	require.True(t, result.OK)
	text := readPart(t, result.Doc, "word/document.xml")
	assert.Contains(t, text, "42 items")
	assert.Contains(t, text, "active: true")
}

func TestBind_MalformedArchive(t *testing.T) {
	result := Bind([]byte("not an archive"), []string{"a"}, nil)

	assert.False(t, result.OK)
	assert.Error(t, result.Err)
}

// ==========================
// Substitution Internals
// ==========================

func TestSubstituteText_RetryLeavesUnknownNameUnresolved(t *testing.T) {
	unresolved := make(map[string]struct{})
	content := `<w:t>{{mys<w:r w:x="1"/>tery}}</w:t>`

	out := substituteText(content, map[string]string{}, unresolved, true)

	assert.Equal(t, content, out)
	assert.Contains(t, unresolved, "mystery")
}

func TestSubstituteText_StripsFilterSuffix(t *testing.T) {
	unresolved := make(map[string]struct{})
	out := substituteText(`{{fullName|upper}}`, map[string]string{"fullName": "ADA"}, unresolved, false)

	assert.Equal(t, "ADA", out)
	assert.Empty(t, unresolved)
}
