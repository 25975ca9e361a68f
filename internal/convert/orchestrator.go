package convert

import (
	"context"
	"fmt"

	stderrors "docgen-service/internal/common/errors"
	"docgen-service/internal/common/logger"
	"docgen-service/internal/common/metrics"
)

// Orchestrator tries each strategy in priority order and returns the first
// usable artifact. Per-strategy errors are recorded on the outcome and never
// propagated while a later strategy remains.
type Orchestrator struct {
	strategies []Strategy
	logger     logger.Logger
}

func NewOrchestrator(log logger.Logger, strategies ...Strategy) *Orchestrator {
	return &Orchestrator{
		strategies: strategies,
		logger:     log.WithFields(map[string]interface{}{"component": "convert"}),
	}
}

// Convert runs the strategy chain. It returns an error only when every
// strategy fails, which cannot happen while pass-through is in the chain.
func (o *Orchestrator) Convert(ctx context.Context, doc Document) (*Outcome, error) {
	var failures []StrategyFailure

	for _, strategy := range o.strategies {
		artifact, err := strategy.Convert(ctx, doc)
		if err == nil {
			o.logger.Info("conversion strategy succeeded", map[string]interface{}{
				"mode":          strategy.Mode(),
				"correlationId": doc.CorrelationID,
				"degraded":      len(failures) > 0,
			})
			return &Outcome{
				Bytes:    artifact.Bytes,
				Format:   artifact.Format,
				Mode:     strategy.Mode(),
				Failures: failures,
			}, nil
		}

		metrics.ConversionStrategyFailures.WithLabelValues(strategy.Mode()).Inc()
		failures = append(failures, StrategyFailure{
			Mode:  strategy.Mode(),
			Error: err.Error(),
		})
		serr := stderrors.NewConversionStrategyFailedError(strategy.Mode(), err)
		o.logger.Warn("conversion strategy failed, trying next", map[string]interface{}{
			"correlationId": doc.CorrelationID,
			"error":         serr.Details,
			"retryable":     serr.Retryable,
		})
	}

	detail := fmt.Sprintf("correlationId: %s, strategies tried: %d", doc.CorrelationID, len(failures))
	return &Outcome{Failures: failures}, stderrors.NewAllConversionStrategiesFailedError(detail)
}
