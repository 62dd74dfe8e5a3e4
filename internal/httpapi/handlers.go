package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"gdd-rag/internal/models"
	"gdd-rag/internal/session"
)

type questionRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k,omitempty"`
}

type errorResponse struct {
	Error  string         `json:"error"`
	Answer *models.Answer `json:"answer,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"index":  s.session.Status(),
	})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"documents": s.session.Documents()})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.session.Document(r.PathValue("name"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Delete(r.Context(), r.PathValue("name")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleUpload accepts multipart form uploads in the "files" field.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "failed to parse form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	var files []session.File
	for _, header := range r.MultipartForm.File["files"] {
		f, err := header.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to open "+header.Filename)
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to read "+header.Filename)
			return
		}
		files = append(files, session.File{Name: header.Filename, Data: data})
	}

	report, err := s.session.Upload(r.Context(), files)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleLoadSamples(w http.ResponseWriter, r *http.Request) {
	report, err := s.session.LoadSamples(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req questionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	results, err := s.session.Search(r.Context(), req.Question, req.TopK)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req questionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	answer, err := s.session.Ask(r.Context(), req.Question)
	if err != nil {
		if answer != nil {
			log.Warn().Err(err).Str("request_id", RequestID(r.Context())).Msg("Returning sources without answer")
			writeJSON(w, statusFor(err), errorResponse{Error: err.Error(), Answer: answer})
			return
		}
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

// statusFor maps pipeline errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrEmptyInput), errors.Is(err, models.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrDocumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrEmbedding), errors.Is(err, models.ErrGeneration):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("request_id", RequestID(r.Context())).Msg("Request failed")
	}
	writeError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
