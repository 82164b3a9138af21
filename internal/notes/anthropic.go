package notes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const (
	anthropicMessagesURL = "https://api.anthropic.com/v1/messages"
	anthropicVersion     = "2023-06-01"
)

type anthropicProvider struct {
	url        string
	apiKey     string
	model      string
	httpClient *http.Client
}

func newAnthropic(apiKey, model string) *anthropicProvider {
	return &anthropicProvider{
		url:        anthropicMessagesURL,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{},
	}
}

type anthropicRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	System      string        `json:"system"`
	Messages    []chatMessage `json:"messages"`
}

func (p *anthropicProvider) generate(ctx context.Context, title, transcript string) (string, error) {
	payload := anthropicRequest{
		Model:       p.model,
		MaxTokens:   4000,
		Temperature: 0.3,
		System:      systemPrompt,
		Messages: []chatMessage{
			{Role: "user", Content: userPrompt(title, transcript)},
		},
	}

	body, err := postJSON(ctx, p.httpClient, p.url, payload, map[string]string{
		"x-api-key":         p.apiKey,
		"anthropic-version": anthropicVersion,
	})
	if err != nil {
		return "", err
	}

	var parsed struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if len(parsed.Content) == 0 || parsed.Content[0].Text == "" {
		return "", fmt.Errorf("no content returned")
	}
	return parsed.Content[0].Text, nil
}
