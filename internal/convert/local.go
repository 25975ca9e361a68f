package convert

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/executor"

	"docgen-service/internal/common/logger"
	"docgen-service/internal/storage"
)

// ErrLocalConvertFailed reports a converter binary run that produced no
// usable output.
var ErrLocalConvertFailed = errors.New("local conversion failed")

// LocalConfig configures the on-host converter binary.
type LocalConfig struct {
	Binary       string
	OutputFormat string
	Timeout      time.Duration
}

// runCommand abstracts the binary invocation so tests can stub it.
type runCommand func(ctx context.Context, program string, args []string) (*executor.Result, error)

// LocalStrategy shells out to an on-host converter (LibreOffice in
// production). The input document and the converted output are staged in the
// correlation-scoped workspace, never beside the canonical templates.
type LocalStrategy struct {
	config    LocalConfig
	workspace *storage.Workspace
	run       runCommand
	logger    logger.Logger
}

func NewLocalStrategy(config LocalConfig, workspace *storage.Workspace, log logger.Logger) *LocalStrategy {
	return &LocalStrategy{
		config:    config,
		workspace: workspace,
		run: func(ctx context.Context, program string, args []string) (*executor.Result, error) {
			return executor.NewWrappedExecutor(program).Execute(ctx, args,
				executor.WithCapture(true, true, false),
			)
		},
		logger: log.WithFields(map[string]interface{}{"strategy": ModeLocal}),
	}
}

func (s *LocalStrategy) Mode() string { return ModeLocal }

func (s *LocalStrategy) Convert(ctx context.Context, doc Document) (*Artifact, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	inputName := doc.Name + "." + FormatDOCX
	inputPath, err := s.workspace.Put(doc.CorrelationID, inputName, doc.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: stage input: %v", ErrLocalConvertFailed, err)
	}
	defer s.workspace.Remove(doc.CorrelationID, inputName)

	args := []string{
		"--headless",
		"--convert-to", s.config.OutputFormat,
		"--outdir", s.workspace.Root(),
		inputPath,
	}

	result, err := s.run(ctx, s.config.Binary, args)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLocalConvertFailed, err)
	}
	if result != nil && result.ExitCode != 0 {
		detail := strings.TrimSpace(result.Stderr)
		if detail == "" {
			detail = strings.TrimSpace(result.Stdout)
		}
		return nil, fmt.Errorf("%w: exit %d: %s", ErrLocalConvertFailed, result.ExitCode, detail)
	}

	// The binary derives the output name from the input name.
	outputName := doc.Name + "." + s.config.OutputFormat
	defer s.workspace.Remove(doc.CorrelationID, outputName)

	data, err := s.workspace.Get(doc.CorrelationID, outputName)
	if err != nil {
		return nil, fmt.Errorf("%w: missing output file: %v", ErrLocalConvertFailed, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty output file", ErrLocalConvertFailed)
	}

	s.logger.Info("local conversion produced artifact", map[string]interface{}{
		"correlationId": doc.CorrelationID,
		"bytes":         len(data),
	})

	return &Artifact{Bytes: data, Format: s.config.OutputFormat}, nil
}
