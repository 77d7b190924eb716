package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/me/mise/internal/logging"
	"github.com/me/mise/pkg/model"
)

// Client is an HTTP client for the mise API.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// NewClient creates a mise API client.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{},
		Logger:     logging.OrDiscard(logger),
	}
}

// apiResponse is the parsed envelope.
type apiResponse struct {
	Status    string          `json:"status"`
	RequestID string          `json:"request_id"`
	Data      json.RawMessage `json:"data"`
	Error     *model.APIError `json:"error"`
}

// do performs an HTTP request and returns the parsed envelope. An error
// envelope is returned together with its *model.APIError.
func (c *Client) do(ctx context.Context, method, path string, body any) (*apiResponse, error) {
	url := c.BaseURL + path

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
		c.Logger.Debug("HTTP request body", "body", string(data))
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", "req_"+uuid.New().String()[:8])

	c.Logger.Debug("HTTP request", "method", method, "url", url, "request_id", req.Header.Get("X-Request-ID"))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	c.Logger.Debug("HTTP response", "status", resp.StatusCode, "body", string(respBody))

	var apiResp apiResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("parse response (status %d): %w\nbody: %s", resp.StatusCode, err, string(respBody))
	}

	if apiResp.Status == "error" && apiResp.Error != nil {
		return &apiResp, apiResp.Error
	}

	return &apiResp, nil
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, path string) (*apiResponse, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

// Post performs a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any) (*apiResponse, error) {
	return c.do(ctx, http.MethodPost, path, body)
}

// Solve asks the server for a schedule.
func (c *Client) Solve(ctx context.Context, req model.ScheduleRequest) (*model.Schedule, error) {
	resp, err := c.Post(ctx, "/api/v1/schedules", req)
	if err != nil {
		return nil, err
	}
	var s model.Schedule
	if err := json.Unmarshal(resp.Data, &s); err != nil {
		return nil, fmt.Errorf("parse schedule: %w", err)
	}
	return &s, nil
}

// Validate asks the server to check a task list without solving.
func (c *Client) Validate(ctx context.Context, req model.ScheduleRequest) (*model.ValidationReport, error) {
	resp, err := c.Post(ctx, "/api/v1/schedules/validate", req)
	if err != nil {
		return nil, err
	}
	var report model.ValidationReport
	if err := json.Unmarshal(resp.Data, &report); err != nil {
		return nil, fmt.Errorf("parse validation report: %w", err)
	}
	return &report, nil
}
