package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sheetchat/sheetchat/internal/plan"
	"github.com/sheetchat/sheetchat/internal/table"
)

// Client implements the Service interface with multiple provider support
type Client struct {
	config     Config
	httpClient *http.Client
}

// NewClient creates a new planner client with the given configuration
func NewClient(config Config) *Client {
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Configure updates the client configuration
func (c *Client) Configure(config Config) error {
	if config.Provider == "" {
		return fmt.Errorf("provider is required")
	}

	if config.Model == "" {
		return fmt.Errorf("model is required")
	}

	switch config.Provider {
	case ProviderGemini:
		if config.APIKey == "" {
			return fmt.Errorf("API key is required for Gemini provider")
		}

		if config.BaseURL == "" {
			config.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
		}
	case ProviderOpenAI:
		if config.APIKey == "" {
			return fmt.Errorf("API key is required for OpenAI provider")
		}

		if config.BaseURL == "" {
			config.BaseURL = "https://api.openai.com/v1"
		}
	case ProviderAnthropic:
		if config.APIKey == "" {
			return fmt.Errorf("API key is required for Anthropic provider")
		}

		if config.BaseURL == "" {
			config.BaseURL = "https://api.anthropic.com/v1"
		}
	default:
		return fmt.Errorf("unsupported provider: %s", config.Provider)
	}

	c.config = config

	return nil
}

// Plan asks the configured model for an analysis descriptor and validates it
// against the table schema.
func (c *Client) Plan(ctx context.Context, question string, t *table.Table) (*plan.Result, error) {
	if c.config.Provider == "" {
		return nil, fmt.Errorf("planner client not configured")
	}

	prompt := c.buildPlanningPrompt(question, t)

	var (
		raw string
		err error
	)

	switch c.config.Provider {
	case ProviderGemini:
		raw, err = c.planGemini(ctx, prompt)
	case ProviderOpenAI:
		raw, err = c.planOpenAI(ctx, prompt)
	case ProviderAnthropic:
		raw, err = c.planAnthropic(ctx, prompt)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", c.config.Provider)
	}

	if err != nil {
		return nil, err
	}

	result, err := decodeResult(raw)
	if err != nil {
		return nil, err
	}

	if err := result.Validate(t); err != nil {
		return nil, err
	}

	result.Source = "model"

	return result, nil
}

// buildPlanningPrompt creates a structured prompt for analysis planning. Only
// schema and profile information is included, never cell values.
func (c *Client) buildPlanningPrompt(question string, t *table.Table) string {
	systemPrompt := `You are an expert data analyst planning how to answer a question about a spreadsheet.
You cannot see the data itself, only its schema. Choose one operation from a fixed set and bind it to columns.

Please respond with a JSON object containing the following fields:
- kind: one of "answer", "stats", "chart", "multi_chart", "dashboard", "table"
- answer: a plain text reply (only for kind "answer")
- columns: an array of column names (for kind "stats")
- charts: an array of chart objects (for kinds "chart" and "multi_chart")
- filters: an array of filter objects (for kind "table")
- limit: maximum rows to return (only for kind "table")

Each chart object has:
- type: one of "bar", "line", "scatter", "histogram", "box", "heatmap", "pie"
- x: the x-axis column (category for bar/pie, value column for histogram/box)
- y: the y-axis column (numeric, for bar/line/scatter)
- columns: numeric columns (only for heatmap)
- aggregation: one of "sum", "mean", "count", "min", "max", "median" (for bar/line/pie)
- title: a short chart title

Each filter object has:
- column: the column to filter on
- op: one of "eq", "neq", "gt", "lt", "gte", "lte", "contains"
- value: the comparison value as a string

Guidelines:
1. Only reference columns that exist in the schema
2. Use "dashboard" when the user asks for a general overview
3. Use "stats" for questions about averages, totals, or distributions in text form
4. Use "answer" only for questions that need no data at all
5. Prefer a single chart over multiple when one suffices

Table schema:
%s

Question: %s`

	return fmt.Sprintf(systemPrompt, t.SchemaContext(), question)
}

// decodeResult parses a model reply into a Result, tolerating surrounding
// prose and Markdown fences.
func decodeResult(raw string) (*plan.Result, error) {
	payload := extractJSON(raw)
	if payload == "" {
		return nil, fmt.Errorf("no JSON object in model response")
	}

	var result plan.Result
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("failed to parse plan JSON: %w", err)
	}

	return &result, nil
}

// extractJSON finds the outermost JSON object in a string.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")

	if start == -1 || end == -1 || end <= start {
		return ""
	}

	return s[start : end+1]
}

// Gemini API structures
type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
}

type geminiResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
	Error      *geminiError      `json:"error,omitempty"`
}

type geminiCandidate struct {
	Content geminiContent `json:"content"`
}

type geminiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// planGemini handles Gemini API calls
func (c *Client) planGemini(ctx context.Context, prompt string) (string, error) {
	reqBody := geminiRequest{
		Contents: []geminiContent{
			{Parts: []geminiPart{{Text: prompt}}},
		},
		GenerationConfig: &geminiGenerationConfig{
			Temperature:      0.1,
			ResponseMimeType: "application/json",
		},
	}

	endpoint := fmt.Sprintf("/models/%s:generateContent?key=%s", c.config.Model, c.config.APIKey)

	respBody, err := c.makeRequest(ctx, endpoint, reqBody, nil)
	if err != nil {
		return "", err
	}

	var response geminiResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return "", fmt.Errorf("failed to parse Gemini response: %w", err)
	}

	if response.Error != nil {
		return "", fmt.Errorf("Gemini API error: %s", response.Error.Message)
	}

	if len(response.Candidates) == 0 || len(response.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no response from Gemini")
	}

	return response.Candidates[0].Content.Parts[0].Text, nil
}

// OpenAI API structures
type openAIRequest struct {
	Model          string                `json:"model"`
	Messages       []openAIMessage       `json:"messages"`
	Temperature    float64               `json:"temperature,omitempty"`
	MaxTokens      int                   `json:"max_tokens,omitempty"`
	ResponseFormat *openAIResponseFormat `json:"response_format,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponseFormat struct {
	Type string `json:"type"`
}

type openAIResponse struct {
	Choices []openAIChoice `json:"choices"`
	Error   *openAIError   `json:"error,omitempty"`
}

type openAIChoice struct {
	Message openAIMessage `json:"message"`
}

type openAIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// planOpenAI handles OpenAI API calls
func (c *Client) planOpenAI(ctx context.Context, prompt string) (string, error) {
	reqBody := openAIRequest{
		Model: c.config.Model,
		Messages: []openAIMessage{
			{Role: "user", Content: prompt},
		},
		Temperature:    0.1,
		MaxTokens:      1000,
		ResponseFormat: &openAIResponseFormat{Type: "json_object"},
	}

	headers := map[string]string{
		"Authorization": "Bearer " + c.config.APIKey,
	}

	respBody, err := c.makeRequest(ctx, "/chat/completions", reqBody, headers)
	if err != nil {
		return "", err
	}

	var response openAIResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return "", fmt.Errorf("failed to parse OpenAI response: %w", err)
	}

	if response.Error != nil {
		return "", fmt.Errorf("OpenAI API error: %s", response.Error.Message)
	}

	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no response from OpenAI")
	}

	return response.Choices[0].Message.Content, nil
}

// Anthropic API structures
type anthropicRequest struct {
	Model     string             `json:"model"`
	Messages  []anthropicMessage `json:"messages"`
	MaxTokens int                `json:"max_tokens"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []anthropicContent `json:"content"`
	Error   *anthropicError    `json:"error,omitempty"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// planAnthropic handles Anthropic API calls
func (c *Client) planAnthropic(ctx context.Context, prompt string) (string, error) {
	reqBody := anthropicRequest{
		Model:     c.config.Model,
		MaxTokens: 1000,
		Messages: []anthropicMessage{
			{Role: "user", Content: prompt},
		},
	}

	headers := map[string]string{
		"x-api-key":         c.config.APIKey,
		"anthropic-version": "2023-06-01",
	}

	respBody, err := c.makeRequest(ctx, "/messages", reqBody, headers)
	if err != nil {
		return "", err
	}

	var response anthropicResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return "", fmt.Errorf("failed to parse Anthropic response: %w", err)
	}

	if response.Error != nil {
		return "", fmt.Errorf("Anthropic API error: %s", response.Error.Message)
	}

	if len(response.Content) == 0 {
		return "", fmt.Errorf("no response from Anthropic")
	}

	return response.Content[0].Text, nil
}

// makeRequest makes an HTTP POST to the provider API
func (c *Client) makeRequest(ctx context.Context, endpoint string, reqBody interface{}, headers map[string]string) ([]byte, error) {
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.config.BaseURL+endpoint, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}
