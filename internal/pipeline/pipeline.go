// Package pipeline composes the render stages: scan, normalize, validate,
// bind, convert. Every invocation is tagged with a correlation id that
// flows through logs, conversion strategies and the history trail.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	stderrors "docgen-service/internal/common/errors"
	"docgen-service/internal/common/logger"
	"docgen-service/internal/common/metrics"
	"docgen-service/internal/common/observability"
	"docgen-service/internal/convert"
	"docgen-service/internal/history"
	"docgen-service/internal/render/binder"
	"docgen-service/internal/render/normalizer"
	"docgen-service/internal/render/scanner"
	"docgen-service/internal/render/validate"
	"docgen-service/internal/stats"
	"docgen-service/internal/storage"
)

// Result is the outcome of a single pipeline invocation. Exactly one of
// Artifact or Failure is set.
type Result struct {
	CorrelationID string
	TemplateID    string

	// Artifact is the produced document; nil on failure.
	Artifact []byte
	// Format and Mode describe the artifact ("pdf"/"docx", conversion mode).
	Format string
	Mode   string

	// Tags are the normalized tags found in the template.
	Tags []string
	// Missing lists tags that were filled with the default value
	// (lenient mode) or that caused rejection (strict mode).
	Missing []string
	// ExamplePayload maps each tag to a placeholder value; populated on
	// strict validation failure so callers can show what a complete
	// request looks like.
	ExamplePayload map[string]string

	Failure  *stderrors.StandardError
	Duration time.Duration
}

// OK reports whether the invocation produced an artifact.
func (r *Result) OK() bool { return r.Failure == nil }

// Pipeline wires the render stages to their collaborators. Stores and
// recorders are optional; nil values disable the concern.
type Pipeline struct {
	templates *storage.TemplateStore
	converter *convert.Orchestrator
	stats     stats.Recorder
	history   history.Store
	obs       *observability.Observability
	logger    logger.Logger
}

func New(templates *storage.TemplateStore, converter *convert.Orchestrator, log logger.Logger) *Pipeline {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Pipeline{
		templates: templates,
		converter: converter,
		logger:    log,
	}
}

// WithStats attaches a generation stats recorder.
func (p *Pipeline) WithStats(rec stats.Recorder) *Pipeline {
	p.stats = rec
	return p
}

// WithHistory attaches a render history store.
func (p *Pipeline) WithHistory(store history.Store) *Pipeline {
	p.history = store
	return p
}

// WithObservability attaches the OTel meter wrapper.
func (p *Pipeline) WithObservability(obs *observability.Observability) *Pipeline {
	p.obs = obs
	return p
}

// Run renders templateID with record. In strict mode any tag absent from
// the record aborts the run before binding; in lenient mode absent tags
// are filled with the default value and reported in Result.Missing.
//
// Run never panics and never returns a nil Result: every failure path
// yields a Result with Failure set to a coded error.
func (p *Pipeline) Run(ctx context.Context, templateID string, record map[string]interface{}, strict bool) *Result {
	started := time.Now()
	result := &Result{
		CorrelationID: uuid.New().String(),
		TemplateID:    templateID,
	}
	defer func() {
		result.Duration = time.Since(started)
		p.finish(ctx, result)
	}()

	log := p.logger.WithFields(map[string]interface{}{
		"correlationId": result.CorrelationID,
		"templateId":    templateID,
	})
	log.Info("pipeline started", map[string]interface{}{"strict": strict})

	templateBytes, err := p.templates.Read(templateID)
	if err != nil {
		if errors.Is(err, storage.ErrTemplateNotFound) {
			result.Failure = stderrors.NewTemplateNotFoundError(templateID)
		} else {
			result.Failure = stderrors.NewMalformedTemplateError(templateID, err)
		}
		return result
	}

	rawTags, err := scanner.Scan(templateBytes)
	if err != nil {
		result.Failure = stderrors.NewMalformedTemplateError(templateID, err)
		return result
	}

	tags := normalizer.NormalizeAll(rawTags)
	result.Tags = tags

	normalized := normalizer.NormalizeRecord(record)
	missing := validate.Missing(tags, normalized)
	if strict && len(missing) > 0 {
		result.Missing = missing
		result.ExamplePayload = validate.ExamplePayload(tags)
		result.Failure = stderrors.NewValidationIncompleteError(missing)
		return result
	}

	bound := binder.Bind(templateBytes, rawTags, normalized)
	if !bound.OK {
		result.Failure = stderrors.NewBindRetryExhaustedError(bound.Err)
		return result
	}
	result.Missing = normalizer.NormalizeAll(bound.Missing)

	outcome, err := p.converter.Convert(ctx, convert.Document{
		Bytes:         bound.Doc,
		Name:          templateID,
		CorrelationID: result.CorrelationID,
	})
	if err != nil {
		var serr *stderrors.StandardError
		if errors.As(err, &serr) {
			result.Failure = serr
		} else {
			result.Failure = stderrors.NewAllConversionStrategiesFailedError(err.Error())
		}
		return result
	}

	result.Artifact = outcome.Bytes
	result.Format = outcome.Format
	result.Mode = outcome.Mode
	log.Info("pipeline finished", map[string]interface{}{
		"mode":    outcome.Mode,
		"format":  outcome.Format,
		"missing": len(result.Missing),
	})
	return result
}

// finish records metrics, stats and history for a completed run. Recorder
// failures are logged and swallowed; they never affect the result.
func (p *Pipeline) finish(ctx context.Context, result *Result) {
	metrics.PipelineDuration.WithLabelValues(result.TemplateID).Observe(result.Duration.Seconds())

	if result.OK() {
		metrics.DocumentsGenerated.WithLabelValues(result.TemplateID, result.Mode).Inc()
		if p.obs != nil {
			p.obs.RecordRender(ctx, result.Mode)
			p.obs.RecordRenderDuration(ctx, result.Duration, result.Mode)
		}
		if p.stats != nil {
			if err := p.stats.RecordGeneration(ctx, result.Mode); err != nil {
				serr := stderrors.NewStatsRecordFailedError(err)
				p.logger.Warn("failed to record generation stats", map[string]interface{}{
					"correlationId": result.CorrelationID,
					"error":         serr.Details,
					"retryable":     stderrors.IsRetryableErrorCode(serr.Code),
				})
			}
		}
	} else {
		metrics.PipelineFailures.WithLabelValues(result.TemplateID, string(result.Failure.Code)).Inc()
		p.logger.Warn("pipeline failed", map[string]interface{}{
			"correlationId": result.CorrelationID,
			"code":          string(result.Failure.Code),
			"category":      stderrors.GetErrorCategory(result.Failure.Code),
		})
	}

	if p.history != nil {
		entry := &history.Entry{
			CorrelationID: result.CorrelationID,
			TemplateID:    result.TemplateID,
			Mode:          result.Mode,
			OK:            result.OK(),
			Missing:       result.Missing,
			Duration:      result.Duration,
		}
		if result.Failure != nil {
			entry.ErrorCode = string(result.Failure.Code)
		}
		if err := p.history.Insert(ctx, entry); err != nil {
			serr := stderrors.NewHistoryInsertFailedError(err)
			p.logger.Warn("failed to record render history", map[string]interface{}{
				"correlationId": result.CorrelationID,
				"error":         serr.Details,
				"retryable":     stderrors.IsRetryableErrorCode(serr.Code),
			})
		}
	}
}
