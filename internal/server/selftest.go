package server

import (
	"net/http"

	"docgen-service/internal/render/normalizer"
	"docgen-service/internal/render/scanner"
	"docgen-service/internal/render/validate"
)

// handleSelftest renders the configured default template with placeholder
// data and reports per-step status, so operators can tell a broken
// template apart from a broken converter.
func (s *Server) handleSelftest(w http.ResponseWriter, r *http.Request) {
	steps := map[string]interface{}{}
	healthy := true

	templateID := s.config.Templates.DefaultDoc
	steps["defaultTemplate"] = templateID

	templateBytes, err := s.templates.Read(templateID)
	if err != nil {
		steps["templateReadable"] = false
		steps["templateError"] = err.Error()
		s.writeSelftest(w, false, steps)
		return
	}
	steps["templateReadable"] = true

	rawTags, err := scanner.Scan(templateBytes)
	if err != nil {
		steps["templateScannable"] = false
		steps["scanError"] = err.Error()
		s.writeSelftest(w, false, steps)
		return
	}
	steps["templateScannable"] = true
	steps["tags"] = normalizer.NormalizeAll(rawTags)

	steps["remoteConfigured"] = s.config.Convert.Remote.APIKey != ""

	sample := map[string]interface{}{}
	for tag, value := range validate.ExamplePayload(normalizer.NormalizeAll(rawTags)) {
		sample[tag] = value
	}

	result := s.pipeline.Run(r.Context(), templateID, sample, false)
	steps["rendered"] = result.OK()
	if result.OK() {
		steps["conversionMode"] = result.Mode
		steps["artifactBytes"] = len(result.Artifact)
	} else {
		healthy = false
		steps["renderError"] = result.Failure.Message
	}
	steps["correlationId"] = result.CorrelationID

	s.writeSelftest(w, healthy, steps)
}

func (s *Server) writeSelftest(w http.ResponseWriter, healthy bool, steps map[string]interface{}) {
	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	steps["healthy"] = healthy
	s.writeJSON(w, status, steps)
}
