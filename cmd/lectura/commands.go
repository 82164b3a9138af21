package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

// --- process ---

var processCmd = &cobra.Command{
	Use:   "process <audio-file>",
	Short: "Transcribe an audio file and generate lecture notes",
	Long: `Transcribe an audio file and generate lecture notes.

Examples:
  lectura process lecture-03.mp3
  lectura process lecture-03.mp3 --title "Graph Algorithms" --slides slides.pdf
  lectura process lecture-03.mp3 --provider anthropic --model claude-3-5-sonnet-latest
  lectura process lecture-03.mp3 --async`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		audioPath := args[0]
		title, _ := cmd.Flags().GetString("title")
		provider, _ := cmd.Flags().GetString("provider")
		model, _ := cmd.Flags().GetString("model")
		whisperModel, _ := cmd.Flags().GetString("whisper-model")
		slides, _ := cmd.Flags().GetString("slides")
		async, _ := cmd.Flags().GetBool("async")

		if _, err := os.Stat(audioPath); err != nil {
			return fmt.Errorf("audio file: %w", err)
		}

		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		if err := addFormFile(mw, "audio", audioPath); err != nil {
			return err
		}
		if slides != "" {
			if err := addFormFile(mw, "slides", slides); err != nil {
				return err
			}
		}
		fields := map[string]string{
			"title":         title,
			"provider":      provider,
			"model":         model,
			"whisper_model": whisperModel,
		}
		if async {
			fields["async"] = "true"
		}
		for key, val := range fields {
			if val == "" {
				continue
			}
			if err := mw.WriteField(key, val); err != nil {
				return err
			}
		}
		if err := mw.Close(); err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		printStep("Uploading %s", filepath.Base(audioPath))
		resp, err := client.postMultipart(cmd.Context(), "/process", mw.FormDataContentType(), &body)
		if err != nil {
			return err
		}

		if async {
			var result map[string]string
			if err := decodeJSON(resp, &result); err != nil {
				return err
			}
			printSuccess("Queued job %s", result["job_id"])
			return nil
		}

		var result processResult
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Processed %q (id %s)", result.Title, result.AudioID)
		if result.Fallback {
			printWarning("note generation failed; saved transcript-based fallback notes")
		}
		fmt.Println(result.Notes)
		return nil
	},
}

type processResult struct {
	AudioID  string `json:"audioId"`
	Title    string `json:"title"`
	Notes    string `json:"notes"`
	Fallback bool   `json:"fallback"`
}

func addFormFile(mw *multipart.Writer, field, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", field, err)
	}
	defer f.Close()

	part, err := mw.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("reading %s: %w", field, err)
	}
	return nil
}

func init() {
	processCmd.Flags().String("title", "", "note title (derived from the filename when empty)")
	processCmd.Flags().String("provider", "", "note provider: default, custom, openai, anthropic, local, ollama")
	processCmd.Flags().String("model", "", "note-generation model")
	processCmd.Flags().String("whisper-model", "", "whisper model override")
	processCmd.Flags().String("slides", "", "PDF slides to append to the notes")
	processCmd.Flags().Bool("async", false, "queue processing and return immediately")
}

// --- regenerate ---

var regenerateCmd = &cobra.Command{
	Use:   "regenerate <audio-id>",
	Short: "Regenerate notes from a stored transcript",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		title, _ := cmd.Flags().GetString("title")
		provider, _ := cmd.Flags().GetString("provider")
		model, _ := cmd.Flags().GetString("model")
		async, _ := cmd.Flags().GetBool("async")

		req := map[string]any{}
		if title != "" {
			req["title"] = title
		}
		if provider != "" {
			req["provider"] = provider
		}
		if model != "" {
			req["model"] = model
		}
		if async {
			req["async"] = true
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/records/"+url.PathEscape(args[0])+"/regenerate", req)
		if err != nil {
			return err
		}

		if async {
			var result map[string]string
			if err := decodeJSON(resp, &result); err != nil {
				return err
			}
			printSuccess("Queued job %s", result["job_id"])
			return nil
		}

		var result processResult
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Regenerated notes for %s", result.AudioID)
		if result.Fallback {
			printWarning("note generation failed; saved transcript-based fallback notes")
		}
		fmt.Println(result.Notes)
		return nil
	},
}

func init() {
	regenerateCmd.Flags().String("title", "", "override the stored title")
	regenerateCmd.Flags().String("provider", "", "note provider override")
	regenerateCmd.Flags().String("model", "", "note-generation model override")
	regenerateCmd.Flags().Bool("async", false, "queue regeneration and return immediately")
}

// --- records ---

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Inspect processed recordings",
}

var recordsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List processed recordings",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/records")
		if err != nil {
			return err
		}

		var records []struct {
			AudioID       string `json:"audioId"`
			Title         string `json:"title"`
			DateProcessed string `json:"dateProcessed"`
		}
		if err := decodeJSON(resp, &records); err != nil {
			return err
		}

		if len(records) == 0 {
			fmt.Println("No recordings found.")
			return nil
		}

		for _, rec := range records {
			fmt.Printf("%s  %s  %s\n",
				colorize(colorCyan, rec.AudioID),
				rec.DateProcessed,
				rec.Title,
			)
		}
		return nil
	},
}

var recordsShowCmd = &cobra.Command{
	Use:   "show <audio-id>",
	Short: "Show recording metadata as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/records/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}

		var record any
		if err := decodeJSON(resp, &record); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(record)
	},
}

var recordsTranscriptCmd = &cobra.Command{
	Use:   "transcript <audio-id>",
	Short: "Print the stored transcript",
	Args:  cobra.ExactArgs(1),
	RunE:  recordTextRunE("transcript"),
}

var recordsNotesCmd = &cobra.Command{
	Use:   "notes <audio-id>",
	Short: "Print the stored notes",
	Args:  cobra.ExactArgs(1),
	RunE:  recordTextRunE("notes"),
}

func recordTextRunE(field string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/records/"+url.PathEscape(args[0])+"/"+field)
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		fmt.Println(strings.TrimRight(result[field], "\n"))
		return nil
	}
}

var recordsDeleteCmd = &cobra.Command{
	Use:   "delete <audio-id>",
	Short: "Delete a recording and its notes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/records/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Deleted %s", args[0])
		return nil
	},
}

func init() {
	recordsCmd.AddCommand(recordsListCmd)
	recordsCmd.AddCommand(recordsShowCmd)
	recordsCmd.AddCommand(recordsTranscriptCmd)
	recordsCmd.AddCommand(recordsNotesCmd)
	recordsCmd.AddCommand(recordsDeleteCmd)
}

// --- generations ---

var generationsCmd = &cobra.Command{
	Use:   "generations",
	Short: "List recent note-generation runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		audioID, _ := cmd.Flags().GetString("audio-id")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := fmt.Sprintf("/generations?limit=%d", limit)
		if audioID != "" {
			path += "&audio_id=" + url.QueryEscape(audioID)
		}
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var gens []struct {
			ID         string `json:"ID"`
			AudioID    string `json:"AudioID"`
			Provider   string `json:"Provider"`
			Status     string `json:"Status"`
			DurationMs int64  `json:"DurationMs"`
			Error      string `json:"Error"`
		}
		if err := decodeJSON(resp, &gens); err != nil {
			return err
		}

		if len(gens) == 0 {
			fmt.Println("No generations found.")
			return nil
		}

		for _, g := range gens {
			status := g.Status
			if status == "fallback" {
				status = colorize(colorYellow, status)
			}
			fmt.Printf("%s  %s  %-10s  %s  %dms\n",
				colorize(colorCyan, g.ID[:8]),
				g.AudioID,
				g.Provider,
				status,
				g.DurationMs,
			)
			if g.Error != "" {
				fmt.Printf("  %s\n", colorize(colorRed, g.Error))
			}
		}
		return nil
	},
}

func init() {
	generationsCmd.Flags().Int("limit", 20, "maximum number of generations to list")
	generationsCmd.Flags().String("audio-id", "", "only show generations for this recording")
}
