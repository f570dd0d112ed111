// Package api exposes the pipeline engine over HTTP: trigger runs, wipe
// date ranges, and browse the run history.
package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"sheetsync/internal/db/repository"
	"sheetsync/internal/domain"
	"sheetsync/internal/middleware"
	"sheetsync/internal/service/pipeline"
)

// maxUploadBytes caps one multipart upload. Workbooks for these pipelines
// are tens of megabytes at most.
const maxUploadBytes = 128 << 20

const dateLayout = "2006-01-02"

// Handler serves the REST API.
type Handler struct {
	svc    *pipeline.Service
	runs   *repository.RunRepo
	logger *slog.Logger
}

// NewHandler wires the pipeline service and run-history store into an HTTP
// handler set.
func NewHandler(svc *pipeline.Service, runs *repository.RunRepo, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, runs: runs, logger: logger}
}

// Health is the public liveness probe.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// pipelineSummary is one catalogue entry in the list response.
type pipelineSummary struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Worksheet   string `json:"worksheet"`
	PerMarket   bool   `json:"per_market"`
	Mode        string `json:"mode"`
	Columns     int    `json:"columns"`
}

// ListPipelines returns the pipeline catalogue.
func (h *Handler) ListPipelines(w http.ResponseWriter, _ *http.Request) {
	specs := h.svc.Registry().List()
	out := make([]pipelineSummary, len(specs))
	for i, spec := range specs {
		out[i] = pipelineSummary{
			Name:        spec.Name,
			Description: spec.Description,
			Worksheet:   spec.Worksheet,
			PerMarket:   spec.PerMarket,
			Mode:        spec.Mode,
			Columns:     spec.Schema.Len(),
		}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"data": out})
}

// CreateRun executes one batch from a multipart upload. Fields market,
// delete_from and dry_run may arrive as query or form values.
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "parse multipart form: "+err.Error())
		return
	}

	opts := domain.SyncOptions{DryRun: parseBool(r.FormValue("dry_run"))}
	if v := r.FormValue("delete_from"); v != "" {
		from, err := time.Parse(dateLayout, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "delete_from must be YYYY-MM-DD")
			return
		}
		opts.DeleteFrom = &from
	}

	files, err := readUploads(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "no files uploaded, send one or more multipart 'files' parts")
		return
	}

	name := chi.URLParam(r, "name")
	h.requestLogger(r).Info("run requested",
		"pipeline", name, "files", len(files), "dry_run", opts.DryRun)

	res, err := h.svc.Run(r.Context(), pipeline.RunRequest{
		Pipeline: name,
		Market:   r.FormValue("market"),
		Trigger:  domain.TriggerAPI,
		Files:    files,
		Options:  opts,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// wipeRequest is the body of POST /v1/pipelines/{name}/wipe.
type wipeRequest struct {
	Market string `json:"market"`
	From   string `json:"from"`
}

// WipeRows deletes all remote rows dated on or after a cutoff.
func (h *Handler) WipeRows(w http.ResponseWriter, r *http.Request) {
	var body wipeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "decode request body: "+err.Error())
		return
	}
	if body.From == "" {
		writeError(w, http.StatusBadRequest, "from is required")
		return
	}
	from, err := time.Parse(dateLayout, body.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, "from must be YYYY-MM-DD")
		return
	}

	name := chi.URLParam(r, "name")
	h.requestLogger(r).Info("wipe requested", "pipeline", name, "from", body.From)

	res, err := h.svc.Wipe(r.Context(), pipeline.WipeRequest{
		Pipeline: name,
		Market:   body.Market,
		Trigger:  domain.TriggerAPI,
		From:     from,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// ListRuns returns run history, newest first.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	filter := repository.RunFilter{
		Pipeline: r.URL.Query().Get("pipeline"),
		Status:   r.URL.Query().Get("status"),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = n
	}

	runs, err := h.runs.ListRuns(r.Context(), filter)
	if err != nil {
		respondError(w, err)
		return
	}
	if runs == nil {
		runs = []domain.Run{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"data": runs})
}

// GetRun returns one run with its file errors.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.runs.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, run)
}

// requestLogger tags the handler logger with the authenticated principal,
// when there is one.
func (h *Handler) requestLogger(r *http.Request) *slog.Logger {
	if who, ok := middleware.PrincipalFromContext(r.Context()); ok {
		return h.logger.With("principal", who)
	}
	return h.logger
}

// readUploads drains every multipart "files" part into memory.
func readUploads(r *http.Request) ([]domain.InputFile, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	var files []domain.InputFile
	for _, header := range r.MultipartForm.File["files"] {
		f, err := header.Open()
		if err != nil {
			return nil, domain.ErrValidation("open upload %q: %v", header.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, domain.ErrValidation("read upload %q: %v", header.Filename, err)
		}
		files = append(files, domain.InputFile{Name: header.Filename, Data: data})
	}
	return files, nil
}

func parseBool(v string) bool {
	b, err := strconv.ParseBool(v)
	return err == nil && b
}
