package pipeline

import (
	"context"
	"fmt"
	"time"

	"MarkWatch/internal/domain/models"
	domsvc "MarkWatch/internal/domain/service"
	xhttp "MarkWatch/pkg/http"
	"MarkWatch/pkg/logger"
)

// Config points at the analysis pipeline service.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client talks to the analysis pipeline over HTTP. Analysis rounds routinely
// run for minutes, so the timeout default is generous and callers are
// expected to pass an uncancellable context.
type Client struct {
	baseURL string
	apiKey  string
	client  *xhttp.Client
	logger  *logger.Logger
}

func NewClient(cfg Config, lgr *logger.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout)),
		logger:  lgr,
	}
}

type analyzeResponse struct {
	Plan  *models.TradePlan `json:"plan"`
	Error string            `json:"error,omitempty"`
}

type longformRequest struct {
	Assets []string `json:"assets"`
}

type longformResponse struct {
	Content     string    `json:"content"`
	GeneratedAt time.Time `json:"generated_at"`
	Error       string    `json:"error,omitempty"`
}

// Analyze posts the briefing and returns the trade plan. Never retried: a
// round that reached the pipeline may already be acting on the exchange.
func (c *Client) Analyze(ctx context.Context, rc *models.RoundContext) (*models.TradePlan, error) {
	start := time.Now()
	var resp analyzeResponse
	if err := c.postJSON(ctx, "/analyze", rc, &resp, 0); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("pipeline: %s", resp.Error)
	}
	if resp.Plan == nil {
		return nil, fmt.Errorf("pipeline: response carries no plan")
	}
	c.logger.Debug("pipeline analyze done",
		logger.Duration("took", time.Since(start)),
		logger.Int("decisions", len(resp.Plan.Decisions)))
	return resp.Plan, nil
}

// Longform asks for the daily longform market summary. Generation is
// read-only on the pipeline side, so transient failures are retried.
func (c *Client) Longform(ctx context.Context, assets []string) (*models.LongformReport, error) {
	var resp longformResponse
	if err := c.postJSON(ctx, "/longform", longformRequest{Assets: assets}, &resp, 2); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("pipeline: %s", resp.Error)
	}
	report := &models.LongformReport{
		Content:     resp.Content,
		GeneratedAt: resp.GeneratedAt,
	}
	if report.GeneratedAt.IsZero() {
		report.GeneratedAt = time.Now()
	}
	return report, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload, dest interface{}, retries int) error {
	if c.baseURL == "" {
		return fmt.Errorf("pipeline base url not configured")
	}
	headers := map[string]string{"Content-Type": "application/json"}
	if c.apiKey != "" {
		headers["Authorization"] = "Bearer " + c.apiKey
	}
	err := c.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodPost,
		URL:     c.baseURL + path,
		Headers: headers,
		Body:    payload,
		Retries: retries,
	}, dest)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	return nil
}

var _ domsvc.AnalysisPipeline = (*Client)(nil)
