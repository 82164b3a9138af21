package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"lectura/internal/api"
	"lectura/internal/config"
	"lectura/internal/index"
	"lectura/internal/notes"
	"lectura/internal/pipeline"
	"lectura/internal/store"
	"lectura/internal/transcriber"
	"lectura/internal/watch"
	"lectura/internal/worker"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the lectura server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running lectura server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show lectura system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "lectura.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "lectura version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Initialize structured logging.
	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	// Write PID file. Check if server is already running via health endpoint.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("lectura is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("lectura is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open record storage and the SQLite index.
	st := store.New(filepath.Join(cfg.Storage.DataDir, "records"))
	idx, err := index.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening index: %w", err)
	}
	defer func() {
		if err := idx.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing index: %v\n", err)
		}
	}()

	if err := os.MkdirAll(cfg.Storage.UploadsDir, 0o755); err != nil {
		return fmt.Errorf("creating uploads dir: %w", err)
	}

	// Build the processing pipeline.
	retryDelay, err := time.ParseDuration(cfg.Whisper.RetryDelay)
	if err != nil {
		slog.Warn("invalid whisper retry delay, using default 1s", "value", cfg.Whisper.RetryDelay, "error", err)
		retryDelay = time.Second
	}
	tr := transcriber.NewWhisper(cfg.Whisper.Binary, cfg.Whisper.Model, cfg.Whisper.Retries, retryDelay)
	notesOpts := notes.Options{
		Provider:      cfg.Notes.Provider,
		Model:         cfg.Notes.Model,
		APIKey:        cfg.Notes.APIKey,
		Endpoint:      cfg.Notes.Endpoint,
		ModelName:     cfg.Notes.ModelName,
		OllamaBaseURL: cfg.Notes.OllamaBaseURL,
	}
	p := pipeline.New(st, tr, notes.NewSynthesizer(notesOpts), idx)

	// Build HTTP handler and server.
	handler := api.NewHandler(api.Deps{
		Store:       st,
		Index:       idx,
		Transcriber: tr,
		Notes:       notesOpts,
		Token:       cfg.API.Token,
		UploadsDir:  cfg.Storage.UploadsDir,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Start the background job worker.
	jobWorker := worker.NewWorker(idx, p, time.Second)
	go jobWorker.Run(ctx)

	// Watch a directory for dropped audio files, if configured.
	if cfg.Watch.Dir != "" {
		debounce, err := time.ParseDuration(cfg.Watch.Debounce)
		if err != nil {
			slog.Warn("invalid watch debounce, using default 500ms", "value", cfg.Watch.Debounce, "error", err)
			debounce = 500 * time.Millisecond
		}
		watcher := watch.New(cfg.Watch.Dir, debounce, idx)
		if err := watcher.Sweep(ctx, p, 2); err != nil {
			slog.Warn("initial watch sweep failed", "dir", cfg.Watch.Dir, "error", err)
		}
		go func() {
			if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("watcher stopped", "dir", cfg.Watch.Dir, "error", err)
			}
		}()
		slog.Info("watching for audio files", "dir", cfg.Watch.Dir)
	}

	// Build and start MCP server (stdio transport in a goroutine).
	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Store:    st,
		Pipeline: p,
	})
	stdioSrv := server.NewStdioServer(mcpSrv)
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
	}()
	slog.Info("MCP server started (stdio transport)")

	// Start server in a goroutine.
	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "lectura listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for signal or server error.
	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// Graceful shutdown with timeout.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("lectura is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop lectura (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to lectura (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		// Still show partial status even if config fails.
		printError("config error: %v", err)
		return nil
	}

	// Check server health.
	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == 200 {
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	// Check the whisper binary.
	if path, lookErr := exec.LookPath(cfg.Whisper.Binary); lookErr != nil {
		printStatus("Whisper", "not found (%s)", cfg.Whisper.Binary)
	} else {
		printStatus("Whisper", "%s (model %s)", path, cfg.Whisper.Model)
	}

	printStatus("Notes provider", "%s", cfg.Notes.Provider)
	if cfg.Notes.Model != "" {
		printStatus("Notes model", "%s", cfg.Notes.Model)
	}

	// Check Ollama when it is the configured backend.
	if cfg.Notes.Provider == "ollama" {
		ollamaResp, err := client.Get(cfg.Notes.OllamaBaseURL + "/api/version")
		if err != nil {
			printStatus("Ollama", "not running")
		} else {
			ollamaResp.Body.Close()
			printStatus("Ollama", "running at %s", cfg.Notes.OllamaBaseURL)
		}
	}

	// Show recording count if server is running.
	if resp != nil && resp.StatusCode == 200 {
		recordsResp, err := apiGet(client, serverURL+"/records", cfg.API.Token)
		if err == nil {
			var records []json.RawMessage
			if json.NewDecoder(recordsResp.Body).Decode(&records) == nil {
				printStatus("Recordings", "%d", len(records))
			}
			recordsResp.Body.Close()
		}
	}

	if cfg.Watch.Dir != "" {
		printStatus("Watch dir", "%s", cfg.Watch.Dir)
	}
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

func apiGet(client *http.Client, url, token string) (*http.Response, error) {
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return client.Do(req)
}
