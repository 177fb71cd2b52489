package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wangqiqi/md2docx/internal/convert"
	"github.com/wangqiqi/md2docx/internal/parser"
	"github.com/wangqiqi/md2docx/internal/pipeline"
)

const docxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

var errTooLarge = errors.New("file exceeds max size")

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["file"]
	if len(files) == 0 {
		jsonError(w, "file is required", http.StatusBadRequest)
		return
	}
	filename := sanitizeFilename(files[0].Filename)
	if !parser.IsSupportedExtension(filename) {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
		return
	}

	data, err := s.readUpload(files[0])
	if errors.Is(err, errTooLarge) {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return
	}
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return
	}

	job := pipeline.NewJob(filename, data)
	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusAccepted, jobLinks(job))
}

func (s *Server) handleBatchConvert(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes*int64(s.cfg.MaxBatchSize)+10*1024*1024)

	if err := r.ParseMultipartForm(64 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		jsonError(w, "at least one file is required", http.StatusBadRequest)
		return
	}
	if len(files) > s.cfg.MaxBatchSize {
		jsonError(w, fmt.Sprintf("batch exceeds %d files", s.cfg.MaxBatchSize), http.StatusBadRequest)
		return
	}

	batchID := uuid.NewString()
	results := make([]map[string]any, 0, len(files))
	for _, fh := range files {
		filename := sanitizeFilename(fh.Filename)
		if !parser.IsSupportedExtension(filename) {
			results = append(results, map[string]any{
				"filename": filename,
				"error":    fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)),
			})
			continue
		}

		data, err := s.readUpload(fh)
		if err != nil {
			results = append(results, map[string]any{
				"filename": filename,
				"error":    "file too large or read error",
			})
			continue
		}

		job := pipeline.NewJob(filename, data)
		job.BatchID = batchID
		if err := s.orchestrator.Submit(job); err != nil {
			results = append(results, map[string]any{
				"filename": filename,
				"error":    err.Error(),
			})
			continue
		}
		results = append(results, jobLinks(job))
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"batch_id": batchID, "jobs": results})
}

func (s *Server) handleConvertStatus(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

func (s *Server) handleConvertResult(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	data, ok := job.Result()
	if !ok {
		snap := job.Snapshot()
		code := http.StatusConflict
		if snap.Status == pipeline.StatusFailed {
			code = http.StatusUnprocessableEntity
		}
		jsonError(w, fmt.Sprintf("job is %s", snap.Status), code)
		return
	}

	snap := job.Snapshot()
	etag := `"` + snap.ContentHash + `"`
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	writeDocx(w, filepath.Base(convert.DefaultOutput(snap.Filename)), data)
}

func (s *Server) handleConvertSync(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	src, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			jsonError(w, fmt.Sprintf("body exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
			return
		}
		jsonError(w, "failed to read body", http.StatusBadRequest)
		return
	}

	data, res, err := s.orchestrator.ConvertSync(r.Context(), src)
	if err != nil {
		s.log.Error("sync conversion failed", "error", err)
		jsonError(w, "conversion failed: "+err.Error(), http.StatusServiceUnavailable)
		return
	}

	name := sanitizeFilename(r.URL.Query().Get("name"))
	if name == "unnamed" {
		name = "document.md"
	}
	w.Header().Set("X-Md2docx-Blocks", strconv.Itoa(res.Blocks))
	w.Header().Set("X-Md2docx-Recovered", strconv.Itoa(res.Report.Issues()))
	writeDocx(w, filepath.Base(convert.DefaultOutput(name)), data)
}

func (s *Server) readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, s.cfg.MaxUploadBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		return nil, errTooLarge
	}
	return data, nil
}

func jobLinks(job *pipeline.Job) map[string]any {
	snap := job.Snapshot()
	return map[string]any{
		"job_id":     snap.ID,
		"filename":   snap.Filename,
		"status":     snap.Status,
		"poll_url":   fmt.Sprintf("/api/convert/%s/status", snap.ID),
		"result_url": fmt.Sprintf("/api/convert/%s/result", snap.ID),
	}
}

func writeDocx(w http.ResponseWriter, filename string, data []byte) {
	w.Header().Set("Content-Type", docxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." || name == "/" {
		name = "unnamed"
	}
	return name
}
