// Package ollama implements repair.Provider against a local Ollama
// server's /api/generate endpoint, for browserlet deployments that run
// repair suggestions without an external API key.
package ollama

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
	defaultEndpoint = "http://localhost:11434"
	defaultModel    = "llama3.1"
)

// Client talks to a local Ollama server.
type Client struct {
	endpoint string
	model    string
	client   *http.Client
}

// New builds a Client. endpoint/model default when empty.
func New(endpoint, model string) *Client {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	if model == "" {
		model = defaultModel
	}
	return &Client{
		endpoint: endpoint,
		model:    model,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	System string `json:"system"`
	Stream bool   `json:"stream"`
	Format string `json:"format"`
}

type generateResponse struct {
	Response string `json:"response"`
}

type suggestionJSON struct {
	SuggestedHints []hintJSON `json:"suggested_hints"`
	Confidence     float64    `json:"confidence"`
	Reasoning      string     `json:"reasoning"`
}

type hintJSON struct {
	Type  bsl.HintType `json:"type"`
	Value string       `json:"value"`
	Name  string       `json:"name,omitempty"`
}

// SuggestHints implements repair.Provider.
func (c *Client) SuggestHints(ctx context.Context, req repair.Request) (repair.Suggestion, error) {
	body := generateRequest{
		Model:  c.model,
		System: systemPrompt,
		Prompt: userPrompt(req),
		Stream: false,
		Format: "json",
	}
	data, err := json.Marshal(body)
	if err != nil {
		return repair.Suggestion{}, fmt.Errorf("ollama: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/api/generate", bytes.NewReader(data))
	if err != nil {
		return repair.Suggestion{}, fmt.Errorf("ollama: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return repair.Suggestion{}, fmt.Errorf("ollama: request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return repair.Suggestion{}, fmt.Errorf("ollama: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return repair.Suggestion{}, fmt.Errorf("ollama: status %d: %s", resp.StatusCode, string(raw))
	}

	var gr generateResponse
	if err := json.Unmarshal(raw, &gr); err != nil {
		return repair.Suggestion{}, fmt.Errorf("ollama: parse response: %w", err)
	}

	var sugg suggestionJSON
	if err := json.Unmarshal([]byte(gr.Response), &sugg); err != nil {
		return repair.Suggestion{}, fmt.Errorf("ollama: parse suggestion json: %w", err)
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

const systemPrompt = `You repair browser automation element selectors. Reply with ONLY a JSON
object of the shape {"suggested_hints": [{"type": "...", "value": "...", "name": "..."}],
"confidence": 0.0, "reasoning": "..."}. Valid "type" values: data_attribute, role, type,
aria_label, name, id, text_contains, placeholder_contains, fieldset_context,
associated_label, landmark_context, section_context, near_label, position_context,
class_contains. "name" only applies to data_attribute.`

func userPrompt(req repair.Request) string {
	return fmt.Sprintf(
		"intent: %s\naction: %s\ncurrent hints: %v\npage url: %s\ndom excerpt: %s",
		req.Intent, req.Action, req.CurrentHints, req.PageURL, req.DOMExcerpt,
	)
}
