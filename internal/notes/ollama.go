package notes

import (
	"context"
	"log/slog"
)

// ollamaClient is the slice of the Ollama API the generator needs.
// *ollama.Client satisfies it; tests substitute a double.
type ollamaClient interface {
	Generate(ctx context.Context, model, prompt string) (string, error)
}

// ollamaGenerator runs the prompt against a local Ollama server. When the
// server is unreachable or errors, it degrades to mock notes instead of
// failing, matching the best-effort role of a local model.
type ollamaGenerator struct {
	client ollamaClient
	model  string
}

func newOllamaGenerator(client ollamaClient, model string) *ollamaGenerator {
	return &ollamaGenerator{client: client, model: model}
}

func (g *ollamaGenerator) generate(ctx context.Context, title, transcript string) (string, error) {
	out, err := g.client.Generate(ctx, g.model, combinedPrompt(title, transcript))
	if err != nil {
		slog.Warn("ollama generation failed, falling back to mock notes",
			"model", g.model, "error", err)
		return MockNotes(title, transcript), nil
	}
	return out, nil
}
