package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/instalens/instalens/pkg/config"
	"github.com/instalens/instalens/pkg/logging"
	"github.com/instalens/instalens/pkg/telemetry"
)

// Runner is the boundary with the external scrape job system
type Runner interface {
	Trigger(ctx context.Context, profileID int64, scrapeType string) (*TriggerResult, error)
	Status(ctx context.Context, runID string) (*RunStatus, error)
}

// TriggerResult is the runner's acknowledgement of a new job
type TriggerResult struct {
	RunID   string `json:"run_id"`
	Message string `json:"message"`
}

// RunStatus is the runner's view of an in-flight or finished job
type RunStatus struct {
	Status       string `json:"status"`
	PostsScraped int64  `json:"posts_scraped"`
	ReelsScraped int64  `json:"reels_scraped"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// Client talks HTTP to the scrape runner
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// New creates a new scrape runner client
func New(cfg *config.ScraperConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("scraper_url is required")
	}

	logger := logging.GetLogger().With(zap.String("component", "scraper-client"))

	client := &Client{
		baseURL: cfg.URL,
		http: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.RatePerSecond),
		logger:  logger,
	}

	logger.Info("Scrape runner client initialized", zap.String("url", cfg.URL))

	return client, nil
}

// Trigger asks the runner to start a scrape job for a profile
func (c *Client) Trigger(ctx context.Context, profileID int64, scrapeType string) (*TriggerResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "scraper.trigger")
	defer span.End()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(map[string]interface{}{
		"profile_id":  profileID,
		"scrape_type": scrapeType,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal trigger request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/trigger-scrape", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build trigger request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransientError{Op: "trigger", Err: err}
	}
	defer resp.Body.Close()

	if err := checkStatus("trigger", resp); err != nil {
		return nil, err
	}

	var result TriggerResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode trigger response: %w", err)
	}

	c.logger.Debug("Scrape job triggered",
		zap.Int64("profile_id", profileID),
		zap.String("run_id", result.RunID))

	return &result, nil
}

// Status fetches the runner's current view of a job
func (c *Client) Status(ctx context.Context, runID string) (*RunStatus, error) {
	ctx, span := telemetry.StartSpan(ctx, "scraper.status")
	defer span.End()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/scrape-status/"+runID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build status request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransientError{Op: "status", Err: err}
	}
	defer resp.Body.Close()

	if err := checkStatus("status", resp); err != nil {
		return nil, err
	}

	var status RunStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("failed to decode status response: %w", err)
	}

	return &status, nil
}

// checkStatus maps HTTP status codes onto the error taxonomy: 5xx is
// transient and retried by the poller, 4xx is permanent.
func checkStatus(op string, resp *http.Response) error {
	if resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if resp.StatusCode >= 500 {
		return &TransientError{
			Op:  op,
			Err: fmt.Errorf("runner returned %d: %s", resp.StatusCode, body),
		}
	}
	return fmt.Errorf("runner rejected %s request with %d: %s", op, resp.StatusCode, body)
}
