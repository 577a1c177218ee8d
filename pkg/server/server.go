package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/tmc/langchaingo/schema"
)

const defaultMaxUploadBytes = 50 << 20 // 50 MiB

// Indexer is the slice of the vector store the HTTP layer needs.
type Indexer interface {
	Replace(ctx context.Context, docs []schema.Document) error
	HasDocuments() bool
	Count() int
}

// Pipeline answers questions and summarizes from the indexed document.
type Pipeline interface {
	Ask(ctx context.Context, question string) (string, error)
	Summarize(ctx context.Context) (string, error)
}

// Loader turns a PDF on disk into chunked documents.
type Loader func(ctx context.Context, path string) ([]schema.Document, error)

type Config struct {
	Logger         *slog.Logger
	Index          Indexer
	Pipeline       Pipeline
	Load           Loader
	MaxUploadBytes int64
}

// Server wires the upload/ask/summarize handlers onto a mux router.
type Server struct {
	logger         *slog.Logger
	index          Indexer
	pipeline       Pipeline
	load           Loader
	maxUploadBytes int64
}

func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	return &Server{
		logger:         cfg.Logger,
		index:          cfg.Index,
		pipeline:       cfg.Pipeline,
		load:           cfg.Load,
		maxUploadBytes: cfg.MaxUploadBytes,
	}
}

// Handler returns the fully routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/upload", s.handleUpload).Methods(http.MethodPost)
	r.HandleFunc("/ask", s.handleAsk).Methods(http.MethodPost)
	r.HandleFunc("/summarize", s.handleSummarize).Methods(http.MethodPost)
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.Use(s.requestLogger)
	return r
}

func (s *Server) respondJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}
