package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"pdfrag/pkg/document/pdf"
	"pdfrag/pkg/models"
)

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.respondError(w, http.StatusRequestEntityTooLarge, "Uploaded file is too large.")
			return
		}
		s.respondError(w, http.StatusBadRequest, "Missing 'file' form field.")
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".pdf") {
		s.respondError(w, http.StatusBadRequest, "Only PDF files are allowed.")
		return
	}

	tmp, err := os.CreateTemp("", "upload-*.pdf")
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "Failed to store upload.")
		return
	}
	defer os.Remove(tmp.Name())

	_, err = io.Copy(tmp, file)
	tmp.Close()
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "Failed to store upload.")
		return
	}

	docs, err := s.load(r.Context(), tmp.Name())
	if err != nil {
		if errors.Is(err, pdf.ErrNoText) {
			s.respondError(w, http.StatusBadRequest, "No text found in PDF.")
			return
		}
		s.logger.Error("failed to load PDF", "file", header.Filename, "error", err)
		s.respondError(w, http.StatusBadRequest, "Failed to read PDF.")
		return
	}

	if err := s.index.Replace(r.Context(), docs); err != nil {
		s.logger.Error("failed to index document", "file", header.Filename, "error", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to index document.")
		return
	}

	s.logger.Info("document indexed", "file", header.Filename, "chunks", s.index.Count())
	s.respondJSON(w, http.StatusOK, models.UploadResponse{DocID: header.Filename})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req models.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	answer, err := s.pipeline.Ask(r.Context(), req.Question)
	if err != nil {
		s.logger.Error("ask failed", "error", err)
		s.respondError(w, http.StatusBadGateway, "Failed to generate an answer.")
		return
	}
	s.respondJSON(w, http.StatusOK, models.AskResponse{Answer: answer})
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	// The body is an empty JSON object; nothing to decode.
	summary, err := s.pipeline.Summarize(r.Context())
	if err != nil {
		s.logger.Error("summarize failed", "error", err)
		s.respondError(w, http.StatusBadGateway, "Failed to generate a summary.")
		return
	}
	s.respondJSON(w, http.StatusOK, models.SummarizeResponse{Summary: summary})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, models.HealthResponse{
		Status:        "ok",
		DocumentReady: s.index.HasDocuments(),
		Chunks:        s.index.Count(),
	})
}

func (s *Server) respondError(w http.ResponseWriter, code int, detail string) {
	s.respondJSON(w, code, models.ErrorResponse{Detail: detail})
}
