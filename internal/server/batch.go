package server

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// batchRequest is the body of POST /api/documents/batch. Every template in
// the list is rendered with the same field record.
type batchRequest struct {
	Templates []string               `json:"templates"`
	Data      map[string]interface{} `json:"data"`
	Strict    bool                   `json:"strict"`
}

var batchRequestSchema = map[string]interface{}{
	"type":                 "object",
	"required":             []string{"templates"},
	"additionalProperties": false,
	"properties": map[string]interface{}{
		"templates": map[string]interface{}{
			"type":     "array",
			"minItems": 1,
			"items":    map[string]interface{}{"type": "string", "minLength": 1},
		},
		"data":   map[string]interface{}{"type": "object"},
		"strict": map[string]interface{}{"type": "boolean"},
	},
}

func decodeBatchRequest(r *http.Request) (*batchRequest, error) {
	var raw map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding request body: %w", err)
	}

	schemaLoader := gojsonschema.NewGoLoader(batchRequestSchema)
	documentLoader := gojsonschema.NewGoLoader(raw)
	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return nil, fmt.Errorf("validating request body: %w", err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return nil, fmt.Errorf("invalid request body: %v", errs)
	}

	var req batchRequest
	if list, ok := raw["templates"].([]interface{}); ok {
		for _, item := range list {
			name, _ := item.(string)
			req.Templates = append(req.Templates, name)
		}
	}
	if data, ok := raw["data"].(map[string]interface{}); ok {
		req.Data = data
	} else {
		req.Data = map[string]interface{}{}
	}
	req.Strict, _ = raw["strict"].(bool)
	return &req, nil
}

// handleDocumentsBatch renders every requested template with one shared
// record and returns the artifacts bundled in a zip archive. The first
// failing template aborts the whole batch.
func (s *Server) handleDocumentsBatch(w http.ResponseWriter, r *http.Request) {
	req, err := decodeBatchRequest(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	fillSignatureDate(req.Data)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, templateID := range req.Templates {
		result := s.pipeline.Run(r.Context(), templateID, req.Data, req.Strict)
		if !result.OK() {
			s.writePipelineFailure(w, r, result)
			return
		}

		name := strings.TrimSuffix(templateID, filepath.Ext(templateID)) + "." + result.Format
		fw, err := zw.Create(name)
		if err == nil {
			_, err = fw.Write(result.Artifact)
		}
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, "BATCH_BUNDLE_FAILED", err.Error())
			return
		}
	}
	if err := zw.Close(); err != nil {
		s.writeError(w, http.StatusInternalServerError, "BATCH_BUNDLE_FAILED", err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="generated-documents.zip"`)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
