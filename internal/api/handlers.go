// Package api exposes the recording pipeline over HTTP and MCP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"lectura/internal/index"
	"lectura/internal/notes"
	"lectura/internal/pipeline"
	"lectura/internal/store"
	"lectura/internal/transcriber"
)

const maxUploadSize = 512 << 20 // 512MB; lecture recordings run long
const maxRequestBodySize = 1 << 20

// Deps carries everything the handlers need. Note-generation options are
// kept here rather than a pre-built synthesizer so requests can override
// provider, endpoint, and credentials per call.
type Deps struct {
	Store       *store.Store
	Index       *index.Index
	Transcriber transcriber.Transcriber
	Notes       notes.Options
	Token       string
	UploadsDir  string
}

// pipelineFor builds a request-scoped pipeline with the given
// note-generation overrides applied on top of the configured defaults.
func (d Deps) pipelineFor(opts notes.Options) *pipeline.Pipeline {
	return pipeline.New(d.Store, d.Transcriber, notes.NewSynthesizer(opts), d.Index)
}

// NewHandler builds the HTTP API. Everything except /health sits behind
// bearer auth when a token is configured.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))
		r.Post("/process", handleProcess(deps))
		r.Get("/records", handleListRecords(deps))
		r.Get("/records/{id}", handleGetRecord(deps))
		r.Get("/records/{id}/transcript", handleGetTranscript(deps))
		r.Get("/records/{id}/notes", handleGetNotes(deps))
		r.Post("/records/{id}/regenerate", handleRegenerate(deps))
		r.Delete("/records/{id}", handleDeleteRecord(deps))
		r.Get("/generations", handleListGenerations(deps))
		r.Get("/jobs/{id}", handleGetJob(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// notesOverrides merges per-request form or JSON fields into the
// configured note-generation options.
func notesOverrides(base notes.Options, get func(string) string) notes.Options {
	if v := get("provider"); v != "" {
		base.Provider = v
	}
	if v := get("model"); v != "" {
		base.Model = v
	}
	if v := get("api_key"); v != "" {
		base.APIKey = v
	}
	if v := get("api_endpoint"); v != "" {
		base.Endpoint = v
	}
	if v := get("model_name"); v != "" {
		base.ModelName = v
	}
	return base
}

func handleProcess(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid multipart form: %v", err)
			return
		}

		audioPath, originalName, err := saveUpload(r, "audio", deps.UploadsDir)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "audio upload: %v", err)
			return
		}

		var slidesPath string
		if r.MultipartForm != nil && len(r.MultipartForm.File["slides"]) > 0 {
			slidesPath, _, err = saveUpload(r, "slides", deps.UploadsDir)
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "slides upload: %v", err)
				return
			}
		}

		title := r.FormValue("title")
		if title == "" {
			title = pipeline.CleanTitle(originalName)
		}
		opts := pipeline.Options{
			Title:        title,
			Provider:     r.FormValue("provider"),
			Model:        r.FormValue("model"),
			WhisperModel: r.FormValue("whisper_model"),
			SlidesPath:   slidesPath,
		}

		if r.FormValue("async") == "true" {
			payload, err := json.Marshal(map[string]string{
				"audio_path":    audioPath,
				"title":         opts.Title,
				"provider":      opts.Provider,
				"model":         opts.Model,
				"whisper_model": opts.WhisperModel,
				"slides_path":   opts.SlidesPath,
			})
			if err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "failed to create job payload: %v", err)
				return
			}
			job := index.Job{
				ID:          uuid.New().String(),
				Type:        "process_audio",
				PayloadJSON: string(payload),
			}
			if err := deps.Index.EnqueueJob(job); err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "failed to enqueue job: %v", err)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusAccepted)
			json.NewEncoder(w).Encode(map[string]string{
				"job_id": job.ID,
				"status": "queued",
			})
			return
		}

		p := deps.pipelineFor(notesOverrides(deps.Notes, r.FormValue))
		res, err := p.Process(r.Context(), audioPath, opts)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "processing failed: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(res)
	}
}

// saveUpload stores one multipart file under a fresh UUID name and
// returns the stored path together with the client's original filename.
func saveUpload(r *http.Request, field, dir string) (string, string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return "", "", fmt.Errorf("missing %s file: %w", field, err)
	}
	defer file.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("creating uploads directory: %w", err)
	}

	name := uuid.New().String() + filepath.Ext(header.Filename)
	path := filepath.Join(dir, name)
	dst, err := os.Create(path)
	if err != nil {
		return "", "", fmt.Errorf("creating upload file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		os.Remove(path)
		return "", "", fmt.Errorf("writing upload: %w", err)
	}
	return path, header.Filename, nil
}

// RegenerateRequest is the JSON body of POST /records/{id}/regenerate.
type RegenerateRequest struct {
	Title    string `json:"title"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
	APIKey   string `json:"api_key"`
	Endpoint string `json:"api_endpoint"`
	Async    bool   `json:"async"`
}

func handleRegenerate(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var req RegenerateRequest
		if r.ContentLength > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
				return
			}
		}

		if req.Async {
			payload, err := json.Marshal(map[string]string{
				"audio_id": id,
				"title":    req.Title,
				"provider": req.Provider,
				"model":    req.Model,
			})
			if err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "failed to create job payload: %v", err)
				return
			}
			job := index.Job{
				ID:          uuid.New().String(),
				Type:        "regenerate_notes",
				PayloadJSON: string(payload),
			}
			if err := deps.Index.EnqueueJob(job); err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "failed to enqueue job: %v", err)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusAccepted)
			json.NewEncoder(w).Encode(map[string]string{
				"job_id": job.ID,
				"status": "queued",
			})
			return
		}

		base := deps.Notes
		if req.APIKey != "" {
			base.APIKey = req.APIKey
		}
		if req.Endpoint != "" {
			base.Endpoint = req.Endpoint
		}
		p := deps.pipelineFor(base)
		res, err := p.Regenerate(r.Context(), id, pipeline.Options{
			Title:    req.Title,
			Provider: req.Provider,
			Model:    req.Model,
		})
		if errors.Is(err, store.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "record not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "regeneration failed: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(res)
	}
}

func handleListRecords(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := deps.Store.ListAll()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list records: %v", err)
			return
		}
		if records == nil {
			records = []store.Record{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(records)
	}
}

func handleGetRecord(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		rec, err := deps.Store.GetMetadata(id)
		if errors.Is(err, store.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "record not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get record: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(rec)
	}
}

func handleGetTranscript(deps Deps) http.HandlerFunc {
	return recordText(deps, "transcription", func(d Deps, id string) (string, error) {
		return d.Store.GetTranscript(id)
	})
}

func handleGetNotes(deps Deps) http.HandlerFunc {
	return recordText(deps, "notes", func(d Deps, id string) (string, error) {
		return d.Store.GetNotes(id)
	})
}

func recordText(deps Deps, field string, get func(Deps, string) (string, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		text, err := get(deps, id)
		if errors.Is(err, store.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "record not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to read %s: %v", field, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"audioId": id,
			field:     text,
		})
	}
}

func handleDeleteRecord(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		err := deps.Store.Delete(id)
		if errors.Is(err, store.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "record not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete record: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "deleted"})
	}
}

func handleListGenerations(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 20, 100)

		var (
			gens []index.Generation
			err  error
		)
		if audioID := r.URL.Query().Get("audio_id"); audioID != "" {
			gens, err = deps.Index.GenerationsForAudio(audioID)
		} else {
			gens, err = deps.Index.RecentGenerations(limit)
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list generations: %v", err)
			return
		}
		if gens == nil {
			gens = []index.Generation{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(gens)
	}
}

func handleGetJob(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		job, err := deps.Index.GetJob(id)
		if errors.Is(err, index.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get job: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(job)
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
