package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/markdave123-py/Careerlyst/internal/core"
	"github.com/markdave123-py/Careerlyst/internal/models"
)

const perplexityProviderName = "perplexity"

// PerplexityResearcher calls an OpenAI-compatible chat completions endpoint that
// returns web citations alongside the answer.
type PerplexityResearcher struct {
	baseURL    string
	apiKey     string
	modelName  string
	httpClient *http.Client
	retry      RetryConfig
}

type PerplexityOption func(*PerplexityResearcher)

func WithHTTPClient(c *http.Client) PerplexityOption {
	return func(p *PerplexityResearcher) { p.httpClient = c }
}

func WithRetry(rc RetryConfig) PerplexityOption {
	return func(p *PerplexityResearcher) { p.retry = rc }
}

func NewPerplexityResearcher(baseURL, apiKey, modelName string, opts ...PerplexityOption) (*PerplexityResearcher, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: PERPLEXITY_API_KEY not set", core.ErrProviderUnavailable)
	}
	if baseURL == "" {
		baseURL = "https://api.perplexity.ai"
	}
	if modelName == "" {
		modelName = "sonar"
	}
	p := &PerplexityResearcher{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		modelName:  modelName,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		retry:      DefaultRetryConfig,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

func (p *PerplexityResearcher) Name() string { return perplexityProviderName }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Citations     []string `json:"citations"`
	SearchResults []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Date    string `json:"date"`
		Snippet string `json:"snippet"`
	} `json:"search_results"`
}

func (p *PerplexityResearcher) Research(ctx context.Context, req core.ResearchRequest) (*models.ResearchPayload, error) {
	userPrompt, err := buildUserPrompt(req)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(chatRequest{
		Model: p.modelName,
		Messages: []chatMessage{
			{Role: "system", Content: researchSystemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	resp, err := RetryDo(ctx, p.retry, func() (*chatResponse, error) {
		return p.post(ctx, body)
	})
	if err != nil {
		return nil, p.classify(err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("perplexity: no choices in response")
	}

	out, err := parseResearchOutput(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, fmt.Errorf("perplexity: %w", err)
	}

	// Search results and citations come from the API itself and are more reliable
	// than URLs the model writes into its answer.
	var sources []models.Source
	for _, r := range resp.SearchResults {
		sources = append(sources, models.Source{Title: r.Title, URL: r.URL, Date: r.Date, Snippet: r.Snippet})
	}
	for _, u := range resp.Citations {
		sources = append(sources, models.Source{Title: u, URL: u})
	}
	out.Sources = dedupeSources(append(sources, out.Sources...))
	out.Provider = perplexityProviderName
	out.Model = resp.Model
	if out.Model == "" {
		out.Model = p.modelName
	}
	return out, nil
}

func (p *PerplexityResearcher) post(ctx context.Context, body []byte) (*chatResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &httpStatusError{StatusCode: resp.StatusCode, Body: truncate(string(data), 200)}
	}

	var out chatResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

// classify marks credential rejections and unreachable hosts as provider unavailability.
func (p *PerplexityResearcher) classify(err error) error {
	var httpErr *httpStatusError
	if errors.As(err, &httpErr) {
		if httpErr.StatusCode == http.StatusUnauthorized || httpErr.StatusCode == http.StatusForbidden {
			return fmt.Errorf("%w: perplexity rejected credentials: %v", core.ErrProviderUnavailable, err)
		}
		return fmt.Errorf("perplexity: %w", err)
	}
	if isNetworkError(err) && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", core.ErrProviderUnavailable, err)
	}
	return fmt.Errorf("perplexity: %w", err)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

var _ core.ResearchProvider = (*PerplexityResearcher)(nil)
