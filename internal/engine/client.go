package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
)

// Client is the interface for interacting with the remote analysis engine.
type Client interface {
	StartAnalysis(ctx context.Context, req StartRequest) (string, error)
	GetStatus(ctx context.Context, jobID string) (*StatusResponse, error)
	GetResults(ctx context.Context, jobID string) (*AnalysisResults, error)
	Enrich(ctx context.Context, jobID string, transactionData []map[string]string) (string, error)
	EnrichFiltered(ctx context.Context, jobID string, filteredData []map[string]string, referenceJobID string) (string, error)
}

// Config holds the connection settings for the analysis engine.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// NewClient creates a new analysis engine client based on the provided configuration.
func NewClient(cfg Config) Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 90 * time.Second
	}
	return &httpClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type httpClient struct {
	cfg    Config
	client *http.Client
}

func (c *httpClient) authenticate(req *http.Request) {
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
}

func (c *httpClient) post(ctx context.Context, path string, payload any, out any, what string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authenticate(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return c.statusError(resp, what)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", what, err)
	}
	return nil
}

func (c *httpClient) get(ctx context.Context, path string, out any, what string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
	if err != nil {
		return err
	}
	c.authenticate(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.statusError(resp, what)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", what, err)
	}
	return nil
}

// statusError drains the error body when the engine provides one, so poll
// failures surface the engine's own message instead of a bare status code.
func (c *httpClient) statusError(resp *http.Response, what string) error {
	var remote struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&remote); err == nil && remote.Error != "" {
		return fmt.Errorf("%s", remote.Error)
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%s not found", what)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("analysis engine authentication failed (401/403)")
	case http.StatusTooManyRequests:
		return fmt.Errorf("analysis engine rate limit exceeded (429)")
	default:
		return fmt.Errorf("analysis engine returned status %d for %s", resp.StatusCode, what)
	}
}

func (c *httpClient) StartAnalysis(ctx context.Context, req StartRequest) (string, error) {
	if err := ValidateStartRequest(req); err != nil {
		return "", err
	}

	log.Info().
		Int("rows", len(req.Data)).
		Int("metrics", len(req.MetricsConfig)).
		Str("method", req.StatisticalMethod).
		Msg("Submitting analysis job")

	var out StartResponse
	if err := c.post(ctx, "/start-analysis", req, &out, "start-analysis"); err != nil {
		return "", err
	}
	if out.JobID == "" {
		return "", fmt.Errorf("analysis engine returned an empty job id")
	}
	return out.JobID, nil
}

func (c *httpClient) GetStatus(ctx context.Context, jobID string) (*StatusResponse, error) {
	var out StatusResponse
	path := "/status/" + url.PathEscape(jobID)
	if err := c.get(ctx, path, &out, "job "+jobID); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *httpClient) GetResults(ctx context.Context, jobID string) (*AnalysisResults, error) {
	var out resultsResponse
	path := "/results/" + url.PathEscape(jobID)
	if err := c.get(ctx, path, &out, "results for job "+jobID); err != nil {
		return nil, err
	}
	return &out.Results, nil
}

func (c *httpClient) Enrich(ctx context.Context, jobID string, transactionData []map[string]string) (string, error) {
	log.Info().Str("job", jobID).Int("rows", len(transactionData)).Msg("Submitting transaction enrichment")

	var out StartResponse
	path := "/enrich/" + url.PathEscape(jobID)
	if err := c.post(ctx, path, enrichRequest{TransactionData: transactionData}, &out, "enrichment for job "+jobID); err != nil {
		return "", err
	}
	return out.JobID, nil
}

func (c *httpClient) EnrichFiltered(ctx context.Context, jobID string, filteredData []map[string]string, referenceJobID string) (string, error) {
	log.Info().
		Str("job", jobID).
		Str("reference", referenceJobID).
		Int("rows", len(filteredData)).
		Msg("Submitting filtered enrichment")

	var out StartResponse
	path := "/enrich-filtered/" + url.PathEscape(jobID)
	payload := enrichFilteredRequest{
		FilteredTransactionData: filteredData,
		ReferenceJobID:          referenceJobID,
	}
	if err := c.post(ctx, path, payload, &out, "filtered enrichment for job "+jobID); err != nil {
		return "", err
	}
	return out.JobID, nil
}
