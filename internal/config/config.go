package config

// Config is built once at process start and passed by reference into the
// components that need it. Nothing reads ambient environment state after Load.
type Config struct {
	Server  ServerConfig
	Whisper WhisperConfig
	Storage StorageConfig
	Notes   NotesConfig
	Watch   WatchConfig
	API     APIConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port int
}

type WhisperConfig struct {
	// Binary is the whisper CLI executable name or path.
	Binary string
	Model  string
	// Retries bounds re-attempts for the retryable malformed-output case.
	Retries int
	// RetryDelay is a duration string, e.g. "1s".
	RetryDelay string
}

type StorageConfig struct {
	DataDir    string
	UploadsDir string
}

type NotesConfig struct {
	// Provider selects the default note-generation backend:
	// default, custom, openai, anthropic, local, ollama.
	Provider string
	Model    string
	APIKey   string
	// Endpoint is the OpenAI-compatible base URL used by the default provider
	// and the full URL used by the custom provider.
	Endpoint string
	// ModelName is the custom-provider model identifier.
	ModelName     string
	OllamaBaseURL string
}

type WatchConfig struct {
	// Dir, when set, is watched for new audio files to process automatically.
	Dir string
	// Debounce is a duration string, e.g. "500ms".
	Debounce string
}

type APIConfig struct {
	// Token guards the HTTP API with bearer auth when non-empty.
	Token string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	dataDir := defaultDataDir()
	return Config{
		Server: ServerConfig{
			Port: 4500,
		},
		Whisper: WhisperConfig{
			Binary:     "whisper",
			Model:      "base",
			Retries:    3,
			RetryDelay: "1s",
		},
		Storage: StorageConfig{
			DataDir:    dataDir,
			UploadsDir: defaultUploadsDir(dataDir),
		},
		Notes: NotesConfig{
			Provider:      "default",
			Model:         "gemini-2.0-flash",
			Endpoint:      "https://generativelanguage.googleapis.com/v1beta/openai/",
			OllamaBaseURL: "http://localhost:11434",
		},
		Watch: WatchConfig{
			Debounce: "500ms",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the JSON file backend at
// $XDG_CONFIG_HOME/lectura/config.json, with LECTURA_* environment
// variables overriding backend values.
func Load() (Config, error) {
	return loadWith(newFileBackend())
}

func loadWith(b Backend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	return cfg, nil
}
