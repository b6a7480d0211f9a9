// Package claude implements repair.Provider against the Anthropic
// Messages API, asking the model to propose a fixed hint set for a step
// the Cascade Resolver could not resolve.
package claude

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/browserlet/browserlet/internal/bsl"
	"github.com/browserlet/browserlet/internal/repair"
)

const (
	defaultBaseURL = "https://api.anthropic.com/v1"
	defaultModel   = "claude-sonnet-4-5-20250514"
	apiVersion     = "2023-06-01"
)

// Client talks to the Anthropic Messages API.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// New builds a Client. baseURL/model default when empty.
func New(apiKey, baseURL, model string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if model == "" {
		model = defaultModel
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    baseURL,
		model:      model,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type messageRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messageResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// suggestionJSON is the shape the system prompt asks the model to reply
// with, verbatim, inside its single text content block.
type suggestionJSON struct {
	SuggestedHints []hintJSON `json:"suggested_hints"`
	Confidence     float64    `json:"confidence"`
	Reasoning      string     `json:"reasoning"`
}

type hintJSON struct {
	Type  bsl.HintType `json:"type"`
	Value string       `json:"value"`
	Name  string       `json:"name,omitempty"` // only for data_attribute
}

// SuggestHints implements repair.Provider.
func (c *Client) SuggestHints(ctx context.Context, req repair.Request) (repair.Suggestion, error) {
	if c.apiKey == "" {
		return repair.Suggestion{}, fmt.Errorf("claude: ANTHROPIC_API_KEY not configured")
	}

	body := messageRequest{
		Model:     c.model,
		MaxTokens: 1024,
		System:    systemPrompt,
		Messages:  []message{{Role: "user", Content: userPrompt(req)}},
	}
	data, err := json.Marshal(body)
	if err != nil {
		return repair.Suggestion{}, fmt.Errorf("claude: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(data))
	if err != nil {
		return repair.Suggestion{}, fmt.Errorf("claude: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return repair.Suggestion{}, fmt.Errorf("claude: request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return repair.Suggestion{}, fmt.Errorf("claude: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return repair.Suggestion{}, fmt.Errorf("claude: status %d: %s", resp.StatusCode, string(raw))
	}

	var mr messageResponse
	if err := json.Unmarshal(raw, &mr); err != nil {
		return repair.Suggestion{}, fmt.Errorf("claude: parse response: %w", err)
	}
	if mr.Error != nil {
		return repair.Suggestion{}, fmt.Errorf("claude: api error: %s", mr.Error.Message)
	}
	if len(mr.Content) == 0 {
		return repair.Suggestion{}, fmt.Errorf("claude: empty response")
	}

	var sugg suggestionJSON
	if err := json.Unmarshal([]byte(mr.Content[0].Text), &sugg); err != nil {
		return repair.Suggestion{}, fmt.Errorf("claude: parse suggestion json: %w", err)
	}

	return repair.Suggestion{
		Hints:      toHints(sugg.SuggestedHints),
		Confidence: sugg.Confidence,
		Reasoning:  sugg.Reasoning,
	}, nil
}

func toHints(in []hintJSON) []bsl.Hint {
	out := make([]bsl.Hint, 0, len(in))
	for _, h := range in {
		hint := bsl.Hint{Type: h.Type, Value: h.Value}
		if h.Type == bsl.HintDataAttribute {
			hint.Named = bsl.NamedValue{Name: h.Name, Value: h.Value}
		}
		out = append(out, hint)
	}
	return out
}

const systemPrompt = `You are repairing a browser automation script's element selector.
Given the failed step's intent, current hints, a DOM excerpt, and the page URL,
reply with ONLY a JSON object (no prose, no markdown fences) of the shape:
{"suggested_hints": [{"type": "...", "value": "...", "name": "..."}], "confidence": 0.0, "reasoning": "..."}
"type" must be one of: data_attribute, role, type, aria_label, name, id, text_contains,
placeholder_contains, fieldset_context, associated_label, landmark_context,
section_context, near_label, position_context, class_contains.
"name" is only used when type is data_attribute (the attribute name; "value" is its value).
confidence is your estimate, 0 to 1, that the suggested hints uniquely identify the
intended element.`

func userPrompt(req repair.Request) string {
	return fmt.Sprintf(
		"intent: %s\naction: %s\ncurrent hints: %v\npage url: %s\ndom excerpt: %s",
		req.Intent, req.Action, req.CurrentHints, req.PageURL, req.DOMExcerpt,
	)
}
