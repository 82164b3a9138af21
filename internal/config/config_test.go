package config

import (
	"testing"
)

// fakeBackend is an in-memory Backend for tests.
type fakeBackend struct {
	strings map[string]string
	ints    map[string]int
}

func (f *fakeBackend) GetString(key string) (string, bool, error) {
	v, ok := f.strings[key]
	return v, ok, nil
}

func (f *fakeBackend) GetInt(key string) (int, bool, error) {
	v, ok := f.ints[key]
	return v, ok, nil
}

func (f *fakeBackend) SetString(key, val string) error {
	f.strings[key] = val
	return nil
}

func (f *fakeBackend) SetInt(key string, val int) error {
	f.ints[key] = val
	return nil
}

func (f *fakeBackend) Delete(key string) error {
	delete(f.strings, key)
	delete(f.ints, key)
	return nil
}

func emptyBackend() *fakeBackend {
	return &fakeBackend{strings: map[string]string{}, ints: map[string]int{}}
}

// TestDefaults verifies default values survive an empty backend.
func TestDefaults(t *testing.T) {
	cfg, err := loadWith(emptyBackend())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 4500 {
		t.Errorf("Server.Port = %d, want 4500", cfg.Server.Port)
	}
	if cfg.Whisper.Binary != "whisper" {
		t.Errorf("Whisper.Binary = %q, want %q", cfg.Whisper.Binary, "whisper")
	}
	if cfg.Whisper.Retries != 3 {
		t.Errorf("Whisper.Retries = %d, want 3", cfg.Whisper.Retries)
	}
	if cfg.Whisper.RetryDelay != "1s" {
		t.Errorf("Whisper.RetryDelay = %q, want %q", cfg.Whisper.RetryDelay, "1s")
	}
	if cfg.Notes.Provider != "default" {
		t.Errorf("Notes.Provider = %q, want %q", cfg.Notes.Provider, "default")
	}
	if cfg.Notes.Model != "gemini-2.0-flash" {
		t.Errorf("Notes.Model = %q, want %q", cfg.Notes.Model, "gemini-2.0-flash")
	}
	if cfg.Notes.OllamaBaseURL != "http://localhost:11434" {
		t.Errorf("Notes.OllamaBaseURL = %q, want %q", cfg.Notes.OllamaBaseURL, "http://localhost:11434")
	}
	if cfg.Storage.DataDir == "" {
		t.Error("Storage.DataDir is empty")
	}
	if cfg.Storage.UploadsDir == "" {
		t.Error("Storage.UploadsDir is empty")
	}
}

// TestBackendValues verifies backend values override defaults.
func TestBackendValues(t *testing.T) {
	b := emptyBackend()
	b.strings["whisper.model"] = "medium"
	b.strings["notes.provider"] = "ollama"
	b.ints["server.port"] = 9100

	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Whisper.Model != "medium" {
		t.Errorf("Whisper.Model = %q, want %q", cfg.Whisper.Model, "medium")
	}
	if cfg.Notes.Provider != "ollama" {
		t.Errorf("Notes.Provider = %q, want %q", cfg.Notes.Provider, "ollama")
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("Server.Port = %d, want 9100", cfg.Server.Port)
	}
}

// TestEnvOverride verifies environment variables win over backend values.
func TestEnvOverride(t *testing.T) {
	b := emptyBackend()
	b.strings["notes.api_key"] = "file-key"

	t.Setenv("LECTURA_NOTES_API_KEY", "env-key")
	t.Setenv("LECTURA_SERVER_PORT", "7001")

	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Notes.APIKey != "env-key" {
		t.Errorf("Notes.APIKey = %q, want %q", cfg.Notes.APIKey, "env-key")
	}
	if cfg.Server.Port != 7001 {
		t.Errorf("Server.Port = %d, want 7001", cfg.Server.Port)
	}
}

// TestEnvOverrideBadInt verifies a malformed integer env var is ignored.
func TestEnvOverrideBadInt(t *testing.T) {
	t.Setenv("LECTURA_SERVER_PORT", "not-a-number")

	cfg, err := loadWith(emptyBackend())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 4500 {
		t.Errorf("Server.Port = %d, want default 4500", cfg.Server.Port)
	}
}
