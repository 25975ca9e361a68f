package server

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/input-output-hk/catalyst-forge-libs/fs/billy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docgen-service/internal/common/config"
	"docgen-service/internal/common/logger"
	"docgen-service/internal/convert"
	"docgen-service/internal/pipeline"
	"docgen-service/internal/stats"
	"docgen-service/internal/storage"
)

// ==========================
// Test Helper Functions
// ==========================

const declarationXML = `<w:t>{{FULL_NAME}} signs on {{SIGNATURE_DATE}}</w:t>`

func buildDocx(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, err := w.Create("word/document.xml")
	require.NoError(t, err)
	_, err = fw.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

type stubStrategy struct {
	mode string
	err  error
}

func (s *stubStrategy) Mode() string { return s.mode }

func (s *stubStrategy) Convert(_ context.Context, _ convert.Document) (*convert.Artifact, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &convert.Artifact{Bytes: []byte("%PDF converted"), Format: convert.FormatPDF}, nil
}

type recordingNotifier struct {
	calls []string
}

func (n *recordingNotifier) NotifyFailure(_ context.Context, correlationID, templateID, detail string) error {
	n.calls = append(n.calls, templateID+": "+detail)
	return nil
}

func newTestServer(t *testing.T, strategies ...convert.Strategy) (*Server, *recordingNotifier) {
	t.Helper()
	fsys := billy.NewInMemoryFS()
	require.NoError(t, fsys.WriteFile("Declaration.docx", buildDocx(t, declarationXML), 0o644))
	require.NoError(t, fsys.WriteFile("Consent.docx",
		buildDocx(t, `<w:t>{{FULL_NAME}} consents on {{SIGNATURE_DATE}}</w:t>`), 0o644))

	if len(strategies) == 0 {
		strategies = []convert.Strategy{&stubStrategy{mode: convert.ModeRemote}}
	}

	log := logger.NewTestLogger(t)
	templates := storage.NewTemplateStoreFS(fsys)
	rec := stats.NewMemoryRecorder()
	pipe := pipeline.New(templates, convert.NewOrchestrator(log, strategies...), log).
		WithStats(rec)

	cfg := &config.Config{
		App:       config.AppConfig{Name: "docgen-service", Version: "test"},
		Server:    config.ServerConfig{Address: ":0", RequestTimeout: 5000},
		Templates: config.TemplatesConfig{DefaultDoc: "Declaration.docx"},
	}

	notifier := &recordingNotifier{}
	return New(cfg, pipe, templates, rec, notifier, log), notifier
}

func postJSON(t *testing.T, srv *Server, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)
	return rr
}

func getPath(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

// ==========================
// Document Endpoint Tests
// ==========================

func TestHandleDocuments_Success(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := postJSON(t, srv, "/api/documents",
		`{"templateId":"Declaration.docx","data":{"fullName":"Ada Lovelace"}}`)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/pdf", rr.Header().Get("Content-Type"))
	assert.NotEmpty(t, rr.Header().Get("X-Correlation-Id"))
	assert.Equal(t, "remote", rr.Header().Get("X-Conversion-Mode"))
	assert.Equal(t, "%PDF converted", rr.Body.String())
}

func TestHandleDocuments_StrictPassesWithDefaultedSignatureDate(t *testing.T) {
	srv, _ := newTestServer(t)

	// signatureDate is filled server-side, so only fullName is required.
	rr := postJSON(t, srv, "/api/documents",
		`{"templateId":"Declaration.docx","data":{"fullName":"Ada"},"strict":true}`)

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestHandleDocuments_StrictIncompleteRecord(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := postJSON(t, srv, "/api/documents",
		`{"templateId":"Declaration.docx","data":{},"strict":true}`)

	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "VALIDATION_INCOMPLETE", body["error"])
	assert.Equal(t, []interface{}{"fullName"}, body["missing"])

	example, ok := body["examplePayload"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "<value>", example["fullName"])
	assert.Equal(t, "<value>", example["signatureDate"])
}

func TestHandleDocuments_UnknownTemplate(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := postJSON(t, srv, "/api/documents", `{"templateId":"nope.docx"}`)

	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "TEMPLATE_NOT_FOUND", decodeBody(t, rr)["error"])
}

func TestHandleDocuments_InvalidBody(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"not json", "not json at all"},
		{"missing templateId", `{"data":{}}`},
		{"empty templateId", `{"templateId":""}`},
		{"unknown field", `{"templateId":"a.docx","extra":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := postJSON(t, srv, "/api/documents", tt.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}
}

func TestHandleDocuments_AllStrategiesFailedAlerts(t *testing.T) {
	srv, notifier := newTestServer(t,
		&stubStrategy{mode: convert.ModeRemote, err: errors.New("quota exhausted")},
	)

	rr := postJSON(t, srv, "/api/documents",
		`{"templateId":"Declaration.docx","data":{"fullName":"Ada"}}`)

	require.Equal(t, http.StatusBadGateway, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "ALL_CONVERSION_STRATEGIES_FAILED", body["error"])
	assert.Equal(t, false, body["retryable"])
	require.Len(t, notifier.calls, 1)
	assert.Contains(t, notifier.calls[0], "Declaration.docx")
}

// ==========================
// Batch Endpoint Tests
// ==========================

func TestHandleDocumentsBatch_BundlesArtifacts(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := postJSON(t, srv, "/api/documents/batch",
		`{"templates":["Declaration.docx","Consent.docx"],"data":{"fullName":"Ada"}}`)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/zip", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "generated-documents.zip")

	zr, err := zip.NewReader(bytes.NewReader(rr.Body.Bytes()), int64(rr.Body.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 2)
	assert.Equal(t, "Declaration.pdf", zr.File[0].Name)
	assert.Equal(t, "Consent.pdf", zr.File[1].Name)

	rc, err := zr.File[0].Open()
	require.NoError(t, err)
	defer rc.Close()
	content, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "%PDF converted", string(content))
}

func TestHandleDocumentsBatch_UnknownTemplateAbortsBatch(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := postJSON(t, srv, "/api/documents/batch",
		`{"templates":["Declaration.docx","nope.docx"],"data":{}}`)

	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "TEMPLATE_NOT_FOUND", decodeBody(t, rr)["error"])
}

func TestHandleDocumentsBatch_InvalidBody(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"missing templates", `{"data":{}}`},
		{"empty templates", `{"templates":[]}`},
		{"non-string template", `{"templates":[1]}`},
		{"unknown field", `{"templates":["a.docx"],"extra":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := postJSON(t, srv, "/api/documents/batch", tt.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}
}

// ==========================
// Validate Endpoint Tests
// ==========================

func TestHandleValidate(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := postJSON(t, srv, "/api/validate",
		`{"templateId":"Declaration.docx","data":{"fullName":"Ada"}}`)

	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, false, body["valid"])
	assert.Equal(t, []interface{}{"fullName", "signatureDate"}, body["tags"])
	assert.Equal(t, []interface{}{"signatureDate"}, body["missing"])
}

func TestHandleValidate_UnknownTemplate(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := postJSON(t, srv, "/api/validate", `{"templateId":"nope.docx"}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

// ==========================
// Health, Selftest, Metrics
// ==========================

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := getPath(t, srv, "/healthz")

	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "docgen-service", body["service"])
	assert.Contains(t, body, "stats")
}

func TestHandleSelftest_Healthy(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := getPath(t, srv, "/api/selftest")

	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, true, body["healthy"])
	assert.Equal(t, true, body["templateReadable"])
	assert.Equal(t, true, body["rendered"])
	assert.Equal(t, "remote", body["conversionMode"])
	assert.Equal(t, false, body["remoteConfigured"])
}

func TestHandleSelftest_MissingDefaultTemplate(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.config.Templates.DefaultDoc = "gone.docx"

	rr := getPath(t, srv, "/api/selftest")

	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, false, body["healthy"])
	assert.Equal(t, false, body["templateReadable"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := getPath(t, srv, "/metrics")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "go_goroutines")
}
