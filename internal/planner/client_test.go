package planner

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheetchat/sheetchat/internal/plan"
	"github.com/sheetchat/sheetchat/internal/table"
)

func planTable() *table.Table {
	cols := []table.Column{
		{Name: "Region", Key: "region", Type: table.TypeCategorical, Index: 0},
		{Name: "Sales", Key: "sales", Type: table.TypeNumeric, Index: 1},
		{Name: "Units", Key: "units", Type: table.TypeNumeric, Index: 2},
	}

	return &table.Table{
		Columns:  cols,
		Profiles: make([]table.ColumnProfile, len(cols)),
		RowCount: 100,
	}
}

func TestConfigureValidation(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:    "missing provider",
			config:  Config{Model: "m"},
			wantErr: true,
		},
		{
			name:    "missing model",
			config:  Config{Provider: ProviderGemini},
			wantErr: true,
		},
		{
			name:    "gemini needs key",
			config:  Config{Provider: ProviderGemini, Model: "gemini-2.0-flash"},
			wantErr: true,
		},
		{
			name:   "gemini with key",
			config: Config{Provider: ProviderGemini, Model: "gemini-2.0-flash", APIKey: "k"},
		},
		{
			name:   "openai with key",
			config: Config{Provider: ProviderOpenAI, Model: "gpt-4o-mini", APIKey: "k"},
		},
		{
			name:    "unknown provider",
			config:  Config{Provider: "bard", Model: "m", APIKey: "k"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewClient(Config{}).Configure(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfigureSetsDefaultBaseURL(t *testing.T) {
	c := NewClient(Config{})
	require.NoError(t, c.Configure(Config{Provider: ProviderGemini, Model: "m", APIKey: "k"}))
	assert.Equal(t, "https://generativelanguage.googleapis.com/v1beta", c.config.BaseURL)
}

func TestPlanGemini(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, ":generateContent")
		assert.Equal(t, "secret", r.URL.Query().Get("key"))

		var req geminiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Contents, 1)
		assert.Contains(t, req.Contents[0].Parts[0].Text, "Sales")
		assert.NotContains(t, req.Contents[0].Parts[0].Text, "SELECT")

		resp := geminiResponse{
			Candidates: []geminiCandidate{{
				Content: geminiContent{Parts: []geminiPart{{
					Text: `{"kind":"chart","charts":[{"type":"bar","x":"Region","y":"Sales","aggregation":"sum"}]}`,
				}}},
			}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	c := NewClient(Config{
		Provider: ProviderGemini,
		Model:    "gemini-2.0-flash",
		APIKey:   "secret",
		BaseURL:  server.URL,
	})

	result, err := c.Plan(context.Background(), "total sales by region", planTable())
	require.NoError(t, err)

	assert.Equal(t, plan.KindChart, result.Kind)
	assert.Equal(t, "model", result.Source)
	require.Len(t, result.Charts, 1)
	assert.Equal(t, plan.ChartBar, result.Charts[0].Type)
}

func TestPlanOpenAI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		resp := openAIResponse{
			Choices: []openAIChoice{{
				Message: openAIMessage{
					Role:    "assistant",
					Content: `{"kind":"stats","columns":["sales"]}`,
				},
			}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	c := NewClient(Config{
		Provider: ProviderOpenAI,
		Model:    "gpt-4o-mini",
		APIKey:   "secret",
		BaseURL:  server.URL,
	})

	result, err := c.Plan(context.Background(), "average sales", planTable())
	require.NoError(t, err)

	assert.Equal(t, plan.KindStats, result.Kind)
	// Column name repaired to its canonical form.
	assert.Equal(t, []string{"Sales"}, result.Columns)
}

func TestPlanAnthropic(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		assert.NotEmpty(t, r.Header.Get("anthropic-version"))

		resp := anthropicResponse{
			Content: []anthropicContent{{
				Type: "text",
				Text: "Here is the plan:\n```json\n{\"kind\":\"dashboard\"}\n```",
			}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	c := NewClient(Config{
		Provider: ProviderAnthropic,
		Model:    "claude-sonnet-4-20250514",
		APIKey:   "secret",
		BaseURL:  server.URL,
	})

	result, err := c.Plan(context.Background(), "give me an overview", planTable())
	require.NoError(t, err)
	assert.Equal(t, plan.KindDashboard, result.Kind)
}

func TestPlanRejectsInvalidDescriptor(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		resp := geminiResponse{
			Candidates: []geminiCandidate{{
				Content: geminiContent{Parts: []geminiPart{{
					Text: `{"kind":"chart","charts":[{"type":"bar","x":"Profit"}]}`,
				}}},
			}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	c := NewClient(Config{
		Provider: ProviderGemini, Model: "m", APIKey: "k", BaseURL: server.URL,
	})

	_, err := c.Plan(context.Background(), "question", planTable())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown column")
}

func TestPlanServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	c := NewClient(Config{
		Provider: ProviderGemini, Model: "m", APIKey: "k", BaseURL: server.URL,
	})

	_, err := c.Plan(context.Background(), "question", planTable())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"bare object", `{"kind":"answer"}`, `{"kind":"answer"}`},
		{"fenced", "```json\n{\"kind\":\"answer\"}\n```", `{"kind":"answer"}`},
		{"surrounding prose", `Sure! {"kind":"answer"} Hope that helps.`, `{"kind":"answer"}`},
		{"no object", "sorry, I can't", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractJSON(tt.input))
		})
	}
}
