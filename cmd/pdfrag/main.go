package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"pdfrag/pkg/db/rag"
	"pdfrag/pkg/document/pdf"
	"pdfrag/pkg/dropdir"
	"pdfrag/pkg/llm"
	"pdfrag/pkg/qa"
	"pdfrag/pkg/server"

	"github.com/clocklear/chromem-go"
	"github.com/kelseyhightower/envconfig"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/huggingface"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
)

type config struct {
	Server struct {
		Addr            string        `default:":5000"`
		MaxUploadMB     int64         `default:"50" split_words:"true"`
		ShutdownTimeout time.Duration `default:"10s" split_words:"true"`
	}
	Model struct {
		Generation struct {
			Name    string `default:"google/flan-t5-base"`
			URL     string
			Type    string `default:"huggingface"`
			Token   string
			Headers StringMap
			// Arch forces the decoding branch ("causal" or
			// "encoder-decoder"); empty means detect lazily.
			Arch   string
			HubURL string `default:"https://huggingface.co" split_words:"true"`
		}
		Embedding struct {
			Name         string `default:"mxbai-embed-large:latest"`
			URL          string `default:"http://localhost:11434"`
			Type         string `default:"ollama"`
			Token        string
			PromptPrefix struct {
				Query     string `default:"Represent this sentence for searching relevant passages: "`
				Embedding string
			}
		}
	}
	Chunk struct {
		Size    int `default:"800"`
		Overlap int `default:"150"`
	}
	Retrieval struct {
		AskResults     int `default:"6" split_words:"true"`
		SummaryResults int `default:"8" split_words:"true"`
	}
	AskPromptPath     string `default:"./prompts/ask.tpl" split_words:"true"`
	SummaryPromptPath string `default:"./prompts/summary.tpl" split_words:"true"`
	Document          struct {
		// DropPath enables directory ingestion: PDFs written there are
		// indexed as if uploaded. Empty disables the watch.
		DropPath string `split_words:"true"`
	}
	LogLevel string `default:"info" split_words:"true"`
}

func main() {
	// Load config from environment (using envconfig)
	var cfg config
	envconfig.MustProcess("", &cfg)

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	logger.Info("starting pdfrag",
		"addr", cfg.Server.Addr,
		"generation_model", cfg.Model.Generation.Name,
		"embedding_model", cfg.Model.Embedding.Name,
	)

	// Embedding function for the vector store
	embedding, err := buildEmbeddingFunc(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create embedding func: %v\n", err)
		os.Exit(1)
	}

	index := rag.NewChromemRag(rag.ModelPrompts{
		QueryPrefix:     cfg.Model.Embedding.PromptPrefix.Query,
		EmbeddingPrefix: cfg.Model.Embedding.PromptPrefix.Embedding,
	}, embedding)

	// Generation LLM
	generationLlm, err := buildGenerationLLM(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create generation LLM: %v\n", err)
		os.Exit(1)
	}
	generator := llm.NewGenerator(generationLlm, archOption(cfg))

	loader := func(ctx context.Context, path string) ([]schema.Document, error) {
		return pdf.Load(ctx, path,
			pdf.WithChunkSize(cfg.Chunk.Size),
			pdf.WithChunkOverlap(cfg.Chunk.Overlap))
	}

	pipeline, err := qa.New(index, generator,
		qa.WithAskTemplateFile(cfg.AskPromptPath),
		qa.WithSummaryTemplateFile(cfg.SummaryPromptPath),
		qa.WithAskResults(cfg.Retrieval.AskResults),
		qa.WithSummaryResults(cfg.Retrieval.SummaryResults))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create pipeline: %v\n", err)
		os.Exit(1)
	}

	srv := server.New(server.Config{
		Logger:         logger,
		Index:          index,
		Pipeline:       pipeline,
		Load:           loader,
		MaxUploadBytes: cfg.Server.MaxUploadMB << 20,
	})

	// Optional drop-directory ingestion
	if cfg.Document.DropPath != "" {
		ingestor, err := dropdir.Watch(cfg.Document.DropPath, dropdir.Loader(loader), index, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to watch drop directory: %v\n", err)
			os.Exit(1)
		}
		defer ingestor.Close()
		logger.Info("watching drop directory", "path", cfg.Document.DropPath)
	}

	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "Server failed: %v\n", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "Shutdown failed: %v\n", err)
			os.Exit(1)
		}
	}
}

func buildEmbeddingFunc(cfg config) (chromem.EmbeddingFunc, error) {
	emb := cfg.Model.Embedding
	switch emb.Type {
	case "ollama":
		return chromem.NewEmbeddingFuncOllama(emb.Name, emb.URL), nil
	case "openai":
		return chromem.NewEmbeddingFuncOpenAI(emb.Token, chromem.EmbeddingModelOpenAI(emb.Name)), nil
	case "openaicompat":
		return chromem.NewEmbeddingFuncOpenAICompat(emb.URL, emb.Token, emb.Name, nil), nil
	}
	return nil, fmt.Errorf("unknown embedding type %s", emb.Type)
}

func buildGenerationLLM(cfg config) (llms.Model, error) {
	gen := cfg.Model.Generation

	c := http.DefaultClient
	if len(gen.Headers) > 0 {
		c = &http.Client{
			Transport: &StaticHeadersTransport{
				Transport: http.DefaultTransport,
				Headers:   gen.Headers,
			},
		}
	}

	switch gen.Type {
	case "ollama":
		opts := []ollama.Option{
			ollama.WithModel(gen.Name),
			ollama.WithHTTPClient(c),
		}
		if gen.URL != "" {
			opts = append(opts, ollama.WithServerURL(gen.URL))
		}
		return ollama.New(opts...)
	case "openai":
		opts := []openai.Option{
			openai.WithModel(gen.Name),
			openai.WithToken(gen.Token),
			openai.WithHTTPClient(c),
		}
		if gen.URL != "" {
			opts = append(opts, openai.WithBaseURL(gen.URL))
		}
		return openai.New(opts...)
	case "huggingface":
		opts := []huggingface.Option{
			huggingface.WithModel(gen.Name),
			huggingface.WithToken(gen.Token),
		}
		if gen.URL != "" {
			opts = append(opts, huggingface.WithURL(gen.URL))
		}
		return huggingface.New(opts...)
	}
	return nil, fmt.Errorf("unknown generation type %s", gen.Type)
}

func archOption(cfg config) llm.GeneratorOption {
	gen := cfg.Model.Generation
	switch gen.Arch {
	case "causal":
		return llm.WithArch(llm.ArchCausal)
	case "encoder-decoder":
		return llm.WithArch(llm.ArchEncoderDecoder)
	}
	return llm.WithArchDetector(func(ctx context.Context) llm.ModelArch {
		return llm.DetectArch(ctx, nil, gen.HubURL, gen.Name)
	})
}

func logLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// StaticHeadersTransport is a custom RoundTripper that adds a specific set of headers to every request
type StaticHeadersTransport struct {
	Transport http.RoundTripper
	Headers   map[string]string
}

// RoundTrip executes a single HTTP transaction and adds the custom headers
func (t *StaticHeadersTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	for k, v := range t.Headers {
		req.Header.Set(k, v)
	}
	return t.Transport.RoundTrip(req)
}

type StringMap map[string]string

func (m *StringMap) Decode(value string) error {
	*m = make(map[string]string)
	pairs := strings.Split(value, ",")
	for _, pair := range pairs {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			return fmt.Errorf("invalid map item: %s", pair)
		}
		(*m)[kv[0]] = kv[1]
	}
	return nil
}
