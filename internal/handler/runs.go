package handler

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	"github.com/pkordes/itinerary/internal/domain"
	"github.com/pkordes/itinerary/internal/policy"
)

// multipartMemory is how much of an upload ParseMultipartForm keeps in
// memory before spilling to temporary files.
const multipartMemory = 32 << 20

// uploadField is the multipart field carrying the documents.
const uploadField = "files"

// CreateRunResponse is the body of POST /runs.
type CreateRunResponse struct {
	RunID string `json:"runId"`
}

// RunListResponse is the body of GET /runs.
type RunListResponse struct {
	Data []domain.Run `json:"data"`
}

// CreateRun handles POST /runs.
// It admits the upload through the policy, starts the workflow and returns
// 202 with the run id without waiting for processing.
func (s *Server) CreateRun(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, codeTooLarge,
				fmt.Sprintf("upload exceeds %s", humanize.IBytes(uint64(tooLarge.Limit))))
			return
		}
		writeError(w, http.StatusUnprocessableEntity, codeValidation, "expected a multipart/form-data body with a files field")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File[uploadField]

	if s.policy != nil {
		files := make([]policy.File, len(headers))
		for i, fh := range headers {
			files[i] = policy.File{Name: fh.Filename, Size: fh.Size, ContentType: contentType(fh)}
		}
		if err := s.policy.Check(r.Context(), files); err != nil {
			s.respondError(w, r, err, "")
			return
		}
	}

	docs := make([]domain.Document, 0, len(headers))
	for _, fh := range headers {
		doc, err := readDocument(fh)
		if err != nil {
			s.respondError(w, r, err, "")
			return
		}
		docs = append(docs, doc)
	}

	id, err := s.runs.Start(r.Context(), docs)
	if err != nil {
		s.respondError(w, r, err, "")
		return
	}
	s.log.InfoContext(r.Context(), "run accepted", "run_id", id, "documents", len(docs))
	writeJSON(w, http.StatusAccepted, CreateRunResponse{RunID: id})
}

// ListRuns handles GET /runs.
func (s *Server) ListRuns(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, RunListResponse{Data: s.store.List()})
}

// GetRun handles GET /runs/{id}.
func (s *Server) GetRun(w http.ResponseWriter, r *http.Request) {
	id, ok := s.runID(w, r)
	if !ok {
		return
	}
	run, err := s.store.Get(id)
	if err != nil {
		s.respondError(w, r, err, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// ClearRuns handles DELETE /runs.
func (s *Server) ClearRuns(w http.ResponseWriter, r *http.Request) {
	s.store.Clear()
	s.log.InfoContext(r.Context(), "runs cleared")
	w.WriteHeader(http.StatusNoContent)
}

// runID binds the {id} path parameter. Run ids are opaque strings.
func (s *Server) runID(w http.ResponseWriter, r *http.Request) (string, bool) {
	var id string
	err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil || id == "" {
		writeError(w, http.StatusUnprocessableEntity, codeValidation, "invalid run id")
		return "", false
	}
	return id, true
}

// contentType returns the part's declared media type, falling back to the
// file extension when the client sent none or a generic one.
func contentType(fh *multipart.FileHeader) string {
	ct := fh.Header.Get("Content-Type")
	if ct != "" && !strings.HasPrefix(ct, "application/octet-stream") {
		return ct
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(fh.Filename))); byExt != "" {
		return byExt
	}
	if ct == "" {
		return "application/octet-stream"
	}
	return ct
}

func readDocument(fh *multipart.FileHeader) (domain.Document, error) {
	f, err := fh.Open()
	if err != nil {
		return domain.Document{}, fmt.Errorf("handler.readDocument: open %s: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return domain.Document{}, fmt.Errorf("handler.readDocument: read %s: %w", fh.Filename, err)
	}

	ct := contentType(fh)
	if ct == "application/octet-stream" {
		ct = http.DetectContentType(data)
	}
	return domain.Document{Name: fh.Filename, ContentType: ct, Data: data}, nil
}
