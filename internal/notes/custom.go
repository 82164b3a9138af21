package notes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// customAPI posts the chat payload to a user-supplied endpoint and
// extracts the notes from whichever of the common response shapes the
// endpoint uses.
type customAPI struct {
	endpoint   string
	apiKey     string
	model      string
	httpClient *http.Client
}

func newCustomAPI(endpoint, apiKey, model string) *customAPI {
	return &customAPI{
		endpoint:   endpoint,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{},
	}
}

func (p *customAPI) generate(ctx context.Context, title, transcript string) (string, error) {
	body, err := postJSON(ctx, p.httpClient, p.endpoint,
		newChatRequest(p.model, title, transcript),
		map[string]string{"Authorization": "Bearer " + p.apiKey})
	if err != nil {
		return "", err
	}
	return extractContent(body)
}

// extractContent tries the response shapes of common completion APIs in
// order of specificity. An unrecognized shape is passed through as its
// raw JSON rather than failing the generation.
func extractContent(body []byte) (string, error) {
	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	if choices, ok := parsed["choices"].([]any); ok && len(choices) > 0 {
		if choice, ok := choices[0].(map[string]any); ok {
			if msg, ok := choice["message"].(map[string]any); ok {
				if content, ok := msg["content"].(string); ok && content != "" {
					return content, nil
				}
			}
		}
	}
	for _, key := range []string{"content", "response", "text"} {
		if v, ok := parsed[key].(string); ok && v != "" {
			return v, nil
		}
	}

	slog.Warn("unknown custom API response structure, passing through raw body")
	return string(body), nil
}
