// Package notes turns transcripts into structured markdown lecture notes
// using one of several configurable AI providers.
package notes

import (
	"context"
	"errors"
	"fmt"

	"lectura/internal/ollama"
)

var (
	// ErrUnknownProvider is returned for a provider name outside the
	// supported set.
	ErrUnknownProvider = errors.New("unsupported notes provider")
	// ErrMissingAPIKey is returned when a remote provider is selected
	// without credentials.
	ErrMissingAPIKey = errors.New("API key is required")
	// ErrMissingEndpoint is returned when the custom provider has no
	// endpoint configured.
	ErrMissingEndpoint = errors.New("API endpoint is required")
)

// Options is the configured defaults for note generation. Request fields
// override them per call.
type Options struct {
	Provider      string
	Model         string
	APIKey        string
	Endpoint      string
	ModelName     string
	OllamaBaseURL string
}

// Request is a single note-generation request.
type Request struct {
	Title      string
	Transcript string

	// Optional overrides of the configured provider and model.
	Provider string
	Model    string
}

// Result is the outcome of a generation, including which provider and
// model actually produced the markdown.
type Result struct {
	Markdown string
	Provider string
	Model    string
}

// generator is one concrete provider backend.
type generator interface {
	generate(ctx context.Context, title, transcript string) (string, error)
}

// Synthesizer dispatches note generation to the provider selected by
// configuration or per-request override.
type Synthesizer struct {
	opts Options
}

// NewSynthesizer returns a Synthesizer with the given defaults.
func NewSynthesizer(opts Options) *Synthesizer {
	return &Synthesizer{opts: opts}
}

// Generate produces markdown notes for the request. Provider resolution
// failures (unknown name, missing credentials) are returned as errors so
// the caller can decide how to degrade.
func (s *Synthesizer) Generate(ctx context.Context, req Request) (Result, error) {
	providerName := req.Provider
	if providerName == "" {
		providerName = s.opts.Provider
	}
	if providerName == "" {
		providerName = "default"
	}
	model := req.Model
	if model == "" {
		model = s.opts.Model
	}

	g, err := s.resolve(providerName, model)
	if err != nil {
		return Result{}, err
	}

	md, err := g.generate(ctx, req.Title, req.Transcript)
	if err != nil {
		return Result{}, fmt.Errorf("notes generation failed: %w", err)
	}
	return Result{Markdown: md, Provider: providerName, Model: model}, nil
}

func (s *Synthesizer) resolve(name, model string) (generator, error) {
	switch name {
	case "default":
		if s.opts.APIKey == "" {
			return nil, fmt.Errorf("%w for the default provider", ErrMissingAPIKey)
		}
		return newOpenAICompat(compatBase(s.opts.Endpoint), s.opts.APIKey, model), nil
	case "openai":
		if s.opts.APIKey == "" {
			return nil, fmt.Errorf("%w for OpenAI", ErrMissingAPIKey)
		}
		return newOpenAICompat(openAIBaseURL, s.opts.APIKey, model), nil
	case "anthropic":
		if s.opts.APIKey == "" {
			return nil, fmt.Errorf("%w for Anthropic", ErrMissingAPIKey)
		}
		return newAnthropic(s.opts.APIKey, model), nil
	case "custom":
		if s.opts.APIKey == "" {
			return nil, fmt.Errorf("%w for the custom provider", ErrMissingAPIKey)
		}
		if s.opts.Endpoint == "" {
			return nil, fmt.Errorf("%w for the custom provider", ErrMissingEndpoint)
		}
		m := s.opts.ModelName
		if m == "" {
			m = model
		}
		return newCustomAPI(s.opts.Endpoint, s.opts.APIKey, m), nil
	case "local":
		return mockGenerator{}, nil
	case "ollama":
		return newOllamaGenerator(ollama.New(s.opts.OllamaBaseURL), model), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
}
