package decide

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Compile-time interface check.
var _ Provider = (*LLMProvider)(nil)

const analysisPrompt = `You are an expert cryptocurrency trading analyst. Analyze the current
market for the target perpetual contract: latest price action, key technical
levels, sentiment, volume, and macro factors relevant to the next 1-6 hours
of high-frequency leveraged trading. Conclude with whether the immediate
setup favors going LONG or SHORT right now.`

const compressPromptTpl = `Based only on the analysis below, extract the trading decision.
Output JSON exactly matching: {"decision": "long" | "short", "reason": "<max 120 chars>"}

Analysis:
"""%s"""`

// LLMProvider implements Provider over a chat-completions HTTP API. It runs
// a two-step prompt: a free-form market analysis, then a compression call
// that squeezes the analysis into a structured long/short decision.
type LLMProvider struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewLLMProvider creates a provider for the given endpoint, key, and model.
func NewLLMProvider(baseURL, apiKey, model string) *LLMProvider {
	return &LLMProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

// Decide runs the analysis and compression steps and returns the decision.
func (p *LLMProvider) Decide(ctx context.Context) (Decision, error) {
	analysis, err := p.complete(ctx, analysisPrompt, false)
	if err != nil {
		return Decision{}, fmt.Errorf("analysis step: %w", err)
	}

	raw, err := p.complete(ctx, fmt.Sprintf(compressPromptTpl, analysis), true)
	if err != nil {
		return Decision{}, fmt.Errorf("compression step: %w", err)
	}

	var out struct {
		Decision string `json:"decision"`
		Reason   string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return Decision{}, fmt.Errorf("parsing decision %q: %w", raw, err)
	}

	switch strings.ToLower(out.Decision) {
	case string(Long):
		return Decision{Direction: Long, Reason: out.Reason}, nil
	case string(Short):
		return Decision{Direction: Short, Reason: out.Reason}, nil
	default:
		return Decision{}, fmt.Errorf("unknown decision %q, expected long or short", out.Decision)
	}
}

// complete performs one chat-completions request and returns the first
// choice's content.
func (p *LLMProvider) complete(ctx context.Context, prompt string, jsonMode bool) (string, error) {
	reqBody := map[string]any{
		"model": p.model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"temperature": 0.3,
	}
	if jsonMode {
		reqBody["response_format"] = map[string]string{"type": "json_object"}
	}

	raw, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/chat/completions", bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("completions returned status %d: %s", resp.StatusCode, string(body))
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding completions response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("completions response carried no choices")
	}
	return out.Choices[0].Message.Content, nil
}
