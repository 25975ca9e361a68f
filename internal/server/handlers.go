package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/xeipuuv/gojsonschema"

	stderrors "docgen-service/internal/common/errors"
	"docgen-service/internal/convert"
	"docgen-service/internal/pipeline"
	"docgen-service/internal/render/normalizer"
	"docgen-service/internal/render/scanner"
	"docgen-service/internal/render/validate"
)

// documentRequest is the body of POST /api/documents and POST /api/validate.
type documentRequest struct {
	TemplateID string                 `json:"templateId"`
	Data       map[string]interface{} `json:"data"`
	Strict     bool                   `json:"strict"`
}

var documentRequestSchema = map[string]interface{}{
	"type":                 "object",
	"required":             []string{"templateId"},
	"additionalProperties": false,
	"properties": map[string]interface{}{
		"templateId": map[string]interface{}{"type": "string", "minLength": 1},
		"data":       map[string]interface{}{"type": "object"},
		"strict":     map[string]interface{}{"type": "boolean"},
	},
}

func decodeDocumentRequest(r *http.Request) (*documentRequest, error) {
	var raw map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding request body: %w", err)
	}

	schemaLoader := gojsonschema.NewGoLoader(documentRequestSchema)
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

	var req documentRequest
	req.TemplateID, _ = raw["templateId"].(string)
	if data, ok := raw["data"].(map[string]interface{}); ok {
		req.Data = data
	} else {
		req.Data = map[string]interface{}{}
	}
	req.Strict, _ = raw["strict"].(bool)
	return &req, nil
}

// fillSignatureDate defaults signatureDate to today when the caller left
// it out, matching the behavior documents are expected to show.
func fillSignatureDate(data map[string]interface{}) {
	if _, ok := data["signatureDate"]; !ok {
		data["signatureDate"] = time.Now().Format("2006-01-02")
	}
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	req, err := decodeDocumentRequest(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	fillSignatureDate(req.Data)

	result := s.pipeline.Run(r.Context(), req.TemplateID, req.Data, req.Strict)
	if !result.OK() {
		s.writePipelineFailure(w, r, result)
		return
	}

	w.Header().Set("Content-Type", convert.ContentType(result.Format))
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", result.TemplateID+"."+result.Format))
	w.Header().Set("X-Correlation-Id", result.CorrelationID)
	w.Header().Set("X-Conversion-Mode", result.Mode)
	w.WriteHeader(http.StatusOK)
	w.Write(result.Artifact)
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	req, err := decodeDocumentRequest(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	templateBytes, err := s.templates.Read(req.TemplateID)
	if err != nil {
		s.writeError(w, http.StatusNotFound, string(stderrors.ErrCodeTemplateNotFound), err.Error())
		return
	}
	rawTags, err := scanner.Scan(templateBytes)
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, string(stderrors.ErrCodeMalformedTemplate), err.Error())
		return
	}

	tags := normalizer.NormalizeAll(rawTags)
	missing := validate.Missing(tags, normalizer.NormalizeRecord(req.Data))
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"templateId":     req.TemplateID,
		"tags":           tags,
		"missing":        missing,
		"valid":          len(missing) == 0,
		"examplePayload": validate.ExamplePayload(tags),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":  "ok",
		"service": s.config.App.Name,
		"version": s.config.App.Version,
	}
	if s.stats != nil {
		if err := s.stats.TouchHealth(r.Context()); err != nil {
			s.logger.Warn("health touch failed", map[string]interface{}{"error": err.Error()})
		}
		if snap, err := s.stats.Snapshot(r.Context()); err == nil {
			response["stats"] = snap
		}
	}
	s.writeJSON(w, http.StatusOK, response)
}

// writePipelineFailure maps the error taxonomy onto HTTP statuses. Hard
// failures additionally raise a notifier alert.
func (s *Server) writePipelineFailure(w http.ResponseWriter, r *http.Request, result *pipeline.Result) {
	failure := result.Failure
	status := http.StatusInternalServerError
	body := map[string]interface{}{
		"error":         failure.Code,
		"message":       failure.Message,
		"correlationId": result.CorrelationID,
	}

	switch failure.Code {
	case stderrors.ErrCodeTemplateNotFound:
		status = http.StatusNotFound
	case stderrors.ErrCodeMalformedTemplate, stderrors.ErrCodeBindRetryExhausted:
		status = http.StatusUnprocessableEntity
	case stderrors.ErrCodeValidationIncomplete:
		status = http.StatusUnprocessableEntity
		body["missing"] = result.Missing
		body["examplePayload"] = result.ExamplePayload
	case stderrors.ErrCodeAllConversionStrategiesFailed:
		status = http.StatusBadGateway
	}
	body["retryable"] = stderrors.IsRetryableErrorCode(failure.Code)

	if status >= http.StatusInternalServerError || failure.Code == stderrors.ErrCodeAllConversionStrategiesFailed {
		if err := s.notifier.NotifyFailure(r.Context(), result.CorrelationID, result.TemplateID, failure.Message); err != nil {
			serr := stderrors.NewAlertSendFailedError(err)
			s.logger.Warn("failure alert not delivered", map[string]interface{}{
				"correlationId": result.CorrelationID,
				"error":         serr.Details,
			})
		}
	}
	s.writeJSON(w, status, body)
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, map[string]interface{}{
		"error":   code,
		"message": message,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to encode response", map[string]interface{}{"error": err.Error()})
	}
}
