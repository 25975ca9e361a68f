package convert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	commonhttp "docgen-service/internal/common/http"
	"docgen-service/internal/common/logger"
)

// Remote conversion errors, wrapped into strategy failures by the
// orchestrator.
var (
	ErrRemoteNotConfigured = errors.New("remote converter not configured")
	ErrRemotePollExhausted = errors.New("remote job polling exhausted")
)

// RemoteConfig configures the job-based remote conversion strategy.
type RemoteConfig struct {
	BaseURL      string
	APIKey       string
	OutputFormat string
	PollInterval time.Duration
	MaxPolls     int
	Timeout      time.Duration
}

// RemoteStrategy drives a job-oriented conversion API: create job, upload the
// document, poll until finished, download the exported file. Every failure is
// a strategy failure; the orchestrator decides what happens next.
type RemoteStrategy struct {
	config RemoteConfig
	client *commonhttp.Client
	logger logger.Logger
}

func NewRemoteStrategy(config RemoteConfig, log logger.Logger) *RemoteStrategy {
	return &RemoteStrategy{
		config: config,
		client: commonhttp.NewClient(config.Timeout),
		logger: log.WithFields(map[string]interface{}{"strategy": ModeRemote}),
	}
}

func (s *RemoteStrategy) Mode() string { return ModeRemote }

func (s *RemoteStrategy) Convert(ctx context.Context, doc Document) (*Artifact, error) {
	if s.config.APIKey == "" {
		return nil, ErrRemoteNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	job, err := s.createJob(ctx)
	if err != nil {
		return nil, err
	}

	s.logger.Info("remote conversion job created", map[string]interface{}{
		"jobId":         job.ID,
		"correlationId": doc.CorrelationID,
	})

	if err := s.upload(ctx, job, doc); err != nil {
		return nil, err
	}

	exportURL, err := s.waitForExport(ctx, job.ID)
	if err != nil {
		return nil, err
	}

	data, err := s.download(ctx, exportURL)
	if err != nil {
		return nil, err
	}

	return &Artifact{Bytes: data, Format: s.config.OutputFormat}, nil
}

// --- job API wire types ---

type jobTask struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Result struct {
		Form struct {
			URL        string            `json:"url"`
			Parameters map[string]string `json:"parameters"`
		} `json:"form"`
		Files []struct {
			URL string `json:"url"`
		} `json:"files"`
	} `json:"result"`
}

type jobData struct {
	ID     string    `json:"id"`
	Status string    `json:"status"`
	Tasks  []jobTask `json:"tasks"`
}

type jobEnvelope struct {
	Data jobData `json:"data"`
}

func (s *RemoteStrategy) createJob(ctx context.Context) (*jobData, error) {
	payload := map[string]interface{}{
		"tasks": map[string]interface{}{
			"import": map[string]interface{}{
				"operation": "import/upload",
			},
			"convert": map[string]interface{}{
				"operation":     "convert",
				"input":         "import",
				"output_format": s.config.OutputFormat,
			},
			"export": map[string]interface{}{
				"operation": "export/url",
				"input":     "convert",
			},
		},
	}

	body, _ := json.Marshal(payload)
	req, err := http.NewRequest(http.MethodPost, s.config.BaseURL+"/jobs", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create job request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	var env jobEnvelope
	if err := s.doJSON(ctx, req, &env); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	if env.Data.ID == "" {
		return nil, errors.New("create job: response missing job id")
	}
	return &env.Data, nil
}

func (s *RemoteStrategy) upload(ctx context.Context, job *jobData, doc Document) error {
	importTask := findTask(job.Tasks, "import")
	if importTask == nil || importTask.Result.Form.URL == "" {
		return errors.New("upload: job missing import form")
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range importTask.Result.Form.Parameters {
		if err := mw.WriteField(k, v); err != nil {
			return fmt.Errorf("upload: form field %s: %w", k, err)
		}
	}
	fw, err := mw.CreateFormFile("file", doc.Name+"."+FormatDOCX)
	if err != nil {
		return fmt.Errorf("upload: form file: %w", err)
	}
	if _, err := fw.Write(doc.Bytes); err != nil {
		return fmt.Errorf("upload: form file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("upload: finalize form: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, importTask.Result.Form.URL, &buf)
	if err != nil {
		return fmt.Errorf("upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := s.client.DoWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("upload: status %d", resp.StatusCode)
	}
	return nil
}

// waitForExport polls the job at a fixed interval up to the attempt budget,
// returning the export file URL once the job finishes.
func (s *RemoteStrategy) waitForExport(ctx context.Context, jobID string) (string, error) {
	for attempt := 0; attempt < s.config.MaxPolls; attempt++ {
		select {
		case <-time.After(s.config.PollInterval):
		case <-ctx.Done():
			return "", fmt.Errorf("poll job: %w", ctx.Err())
		}

		req, err := http.NewRequest(http.MethodGet, s.config.BaseURL+"/jobs/"+jobID, nil)
		if err != nil {
			return "", fmt.Errorf("poll request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+s.config.APIKey)

		var env jobEnvelope
		if err := s.doJSON(ctx, req, &env); err != nil {
			return "", fmt.Errorf("poll job: %w", err)
		}

		switch env.Data.Status {
		case "finished":
			exportTask := findTask(env.Data.Tasks, "export")
			if exportTask == nil || exportTask.Status != "finished" || len(exportTask.Result.Files) == 0 {
				return "", errors.New("poll job: finished job missing export file")
			}
			return exportTask.Result.Files[0].URL, nil
		case "error":
			return "", fmt.Errorf("poll job: job %s reported error", jobID)
		}
	}

	return "", fmt.Errorf("%w: job %s after %d attempts", ErrRemotePollExhausted, jobID, s.config.MaxPolls)
}

func (s *RemoteStrategy) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("download request: %w", err)
	}

	resp, err := s.client.DoWithContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("download: empty artifact")
	}
	return data, nil
}

func (s *RemoteStrategy) doJSON(ctx context.Context, req *http.Request, out interface{}) error {
	resp, err := s.client.DoWithContext(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func findTask(tasks []jobTask, name string) *jobTask {
	for i := range tasks {
		if tasks[i].Name == name {
			return &tasks[i]
		}
	}
	return nil
}
