package poller

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/markdave123-py/Careerlyst/internal/core"
	"github.com/markdave123-py/Careerlyst/internal/models"
)

// API is the server surface the tracker drives.
type API interface {
	Status(ctx context.Context, companyID string) (*models.ResearchStatus, error)
	GenerateAll(ctx context.Context, companyID string) error
	GenerateOne(ctx context.Context, companyID string, vector models.ResearchVectorType) error
}

// APIError is a non-2xx response from the research API.
type APIError struct {
	StatusCode int
	Kind       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("research api: %d %s: %s", e.StatusCode, e.Kind, e.Message)
	}
	return fmt.Sprintf("research api: %d: %s", e.StatusCode, e.Message)
}

// Unwrap maps the server's error kind back onto the shared sentinels.
func (e *APIError) Unwrap() error {
	switch e.Kind {
	case "provider_unavailable":
		return core.ErrProviderUnavailable
	case "company_not_found":
		return core.ErrCompanyNotFound
	case "unknown_vector":
		return core.ErrUnknownVector
	case "queue_full":
		return core.ErrQueueFull
	case "all_vectors_failed":
		return core.ErrAllVectorsFailed
	}
	return nil
}

// Client talks to the research HTTP API with an optional bearer token.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var _ API = (*Client)(nil)

func NewClient(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), token: token, httpClient: httpClient}
}

func (c *Client) Status(ctx context.Context, companyID string) (*models.ResearchStatus, error) {
	var st models.ResearchStatus
	if err := c.do(ctx, http.MethodGet, c.researchPath(companyID), nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (c *Client) GenerateAll(ctx context.Context, companyID string) error {
	return c.do(ctx, http.MethodPost, c.researchPath(companyID), nil, nil)
}

func (c *Client) GenerateOne(ctx context.Context, companyID string, vector models.ResearchVectorType) error {
	body := map[string]string{"researchType": string(vector)}
	return c.do(ctx, http.MethodPost, c.researchPath(companyID), body, nil)
}

func (c *Client) researchPath(companyID string) string {
	return "/api/companies/" + url.PathEscape(companyID) + "/research"
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(data))}
		var eb struct {
			Error string `json:"error"`
			Kind  string `json:"kind"`
		}
		if json.Unmarshal(data, &eb) == nil && eb.Error != "" {
			apiErr.Kind, apiErr.Message = eb.Kind, eb.Error
		}
		return apiErr
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
