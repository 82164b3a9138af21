package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "LECTURA_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "whisper.binary", typ: kString, env: "LECTURA_WHISPER_BINARY",
		apply:   func(cfg *Config, v any) { cfg.Whisper.Binary = v.(string) },
		extract: func(cfg Config) any { return cfg.Whisper.Binary },
	},
	{
		key: "whisper.model", typ: kString, env: "LECTURA_WHISPER_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Whisper.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Whisper.Model },
	},
	{
		key: "whisper.retries", typ: kInt, env: "LECTURA_WHISPER_RETRIES",
		apply:   func(cfg *Config, v any) { cfg.Whisper.Retries = v.(int) },
		extract: func(cfg Config) any { return cfg.Whisper.Retries },
	},
	{
		key: "whisper.retry_delay", typ: kString, env: "LECTURA_WHISPER_RETRY_DELAY",
		apply:   func(cfg *Config, v any) { cfg.Whisper.RetryDelay = v.(string) },
		extract: func(cfg Config) any { return cfg.Whisper.RetryDelay },
	},
	{
		key: "storage.data_dir", typ: kString, env: "LECTURA_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "storage.uploads_dir", typ: kString, env: "LECTURA_STORAGE_UPLOADS_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.UploadsDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.UploadsDir },
	},
	{
		key: "notes.provider", typ: kString, env: "LECTURA_NOTES_PROVIDER",
		apply:   func(cfg *Config, v any) { cfg.Notes.Provider = v.(string) },
		extract: func(cfg Config) any { return cfg.Notes.Provider },
	},
	{
		key: "notes.model", typ: kString, env: "LECTURA_NOTES_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Notes.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Notes.Model },
	},
	{
		key: "notes.api_key", typ: kString, env: "LECTURA_NOTES_API_KEY",
		apply:   func(cfg *Config, v any) { cfg.Notes.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Notes.APIKey },
	},
	{
		key: "notes.endpoint", typ: kString, env: "LECTURA_NOTES_ENDPOINT",
		apply:   func(cfg *Config, v any) { cfg.Notes.Endpoint = v.(string) },
		extract: func(cfg Config) any { return cfg.Notes.Endpoint },
	},
	{
		key: "notes.model_name", typ: kString, env: "LECTURA_NOTES_MODEL_NAME",
		apply:   func(cfg *Config, v any) { cfg.Notes.ModelName = v.(string) },
		extract: func(cfg Config) any { return cfg.Notes.ModelName },
	},
	{
		key: "notes.ollama_base_url", typ: kString, env: "LECTURA_NOTES_OLLAMA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Notes.OllamaBaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Notes.OllamaBaseURL },
	},
	{
		key: "watch.dir", typ: kString, env: "LECTURA_WATCH_DIR",
		apply:   func(cfg *Config, v any) { cfg.Watch.Dir = v.(string) },
		extract: func(cfg Config) any { return cfg.Watch.Dir },
	},
	{
		key: "watch.debounce", typ: kString, env: "LECTURA_WATCH_DEBOUNCE",
		apply:   func(cfg *Config, v any) { cfg.Watch.Debounce = v.(string) },
		extract: func(cfg Config) any { return cfg.Watch.Debounce },
	},
	{
		key: "api.token", typ: kString, env: "LECTURA_API_TOKEN",
		apply:   func(cfg *Config, v any) { cfg.API.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.API.Token },
	},
	{
		key: "log.level", typ: kString, env: "LECTURA_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b Backend) error {
	for _, s := range specs {
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
