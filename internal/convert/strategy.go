// Package convert turns a bound document into the requested output format
// through an ordered chain of strategies. The chain always ends in a
// pass-through of the source bytes, so a caller is never left without an
// artifact.
package convert

import "context"

// Conversion modes, reported on every outcome.
const (
	ModeRemote   = "remote"
	ModeLocal    = "local"
	ModeOriginal = "original-format"
)

// Artifact formats.
const (
	FormatDOCX = "docx"
	FormatPDF  = "pdf"
)

// ContentType returns the MIME type for an artifact format.
func ContentType(format string) string {
	switch format {
	case FormatPDF:
		return "application/pdf"
	case FormatDOCX:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	default:
		return "application/octet-stream"
	}
}

// Document is a bound document handed to the strategy chain.
type Document struct {
	// Bytes is the bound source document.
	Bytes []byte
	// Name is the artifact base name, without extension.
	Name string
	// CorrelationID scopes any temporary files the strategy writes.
	CorrelationID string
}

// Artifact is a produced output document.
type Artifact struct {
	Bytes  []byte
	Format string
}

// Strategy is one candidate method of producing the target format.
type Strategy interface {
	// Mode identifies the strategy in outcomes and diagnostics.
	Mode() string
	// Convert produces an artifact or reports a strategy failure.
	Convert(ctx context.Context, doc Document) (*Artifact, error)
}

// StrategyFailure records one failed strategy attempt.
type StrategyFailure struct {
	Mode  string `json:"mode"`
	Error string `json:"error"`
}

// Outcome is the orchestrator's result. Mode names the strategy that
// produced the artifact; Failures lists the strategies tried before it.
type Outcome struct {
	Bytes    []byte
	Format   string
	Mode     string
	Failures []StrategyFailure
}
