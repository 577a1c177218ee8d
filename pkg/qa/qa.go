package qa

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/tmc/langchaingo/prompts"
	"github.com/tmc/langchaingo/schema"
)

// Canned replies for the two states where generation never runs.
const (
	NoDocumentAnswer = "Please upload a PDF first."
	NotFoundAnswer   = "Not found in document."
)

const (
	defaultAskResults     = 6
	defaultSummaryResults = 8
	askMaxNewTokens       = 300
	summaryMaxNewTokens   = 350

	// summaryProbe is the fixed retrieval query used when no user question
	// exists to steer the search.
	summaryProbe = "Summarize the document"
)

var baseAskTpl = `You are a helpful assistant answering ONLY from the context below.

Context:
{{.context}}

Question: {{.question}}
Answer:`

var baseSummaryTpl = `Summarize the document in 6-8 concise bullet points.

Context:
{{.context}}

Summary:`

// Ragger is the slice of the vector store the pipeline needs.
type Ragger interface {
	Query(ctx context.Context, queryText string, nResults int) ([]schema.Document, error)
	HasDocuments() bool
}

// TextGenerator produces a completion for an assembled prompt.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string, maxNewTokens int) (string, error)
}

// Service is the retrieval-then-generation pipeline behind /ask and
// /summarize.
type Service struct {
	rag Ragger
	gen TextGenerator

	askResults     int
	summaryResults int
	askTpl         prompts.PromptTemplate
	summaryTpl     prompts.PromptTemplate
}

type Option func(*Service) error

// WithAskTemplateFile swaps the answer prompt for the template at path.
// Missing files are skipped so a default deployment needs no prompt dir.
func WithAskTemplateFile(path string) Option {
	return func(s *Service) error {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		s.askTpl = prompts.NewPromptTemplate(string(b), []string{"context", "question"})
		return nil
	}
}

// WithSummaryTemplateFile swaps the summary prompt for the template at path.
func WithSummaryTemplateFile(path string) Option {
	return func(s *Service) error {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		s.summaryTpl = prompts.NewPromptTemplate(string(b), []string{"context"})
		return nil
	}
}

// WithAskResults sets how many chunks are retrieved per question.
func WithAskResults(n int) Option {
	return func(s *Service) error {
		if n > 0 {
			s.askResults = n
		}
		return nil
	}
}

// WithSummaryResults sets how many chunks feed the summary.
func WithSummaryResults(n int) Option {
	return func(s *Service) error {
		if n > 0 {
			s.summaryResults = n
		}
		return nil
	}
}

func New(rag Ragger, gen TextGenerator, opts ...Option) (*Service, error) {
	s := &Service{
		rag:            rag,
		gen:            gen,
		askResults:     defaultAskResults,
		summaryResults: defaultSummaryResults,
		askTpl:         prompts.NewPromptTemplate(baseAskTpl, []string{"context", "question"}),
		summaryTpl:     prompts.NewPromptTemplate(baseSummaryTpl, []string{"context"}),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Ask answers a question from the indexed document. The question is
// expected to be validated (trimmed, non-empty) by the caller.
func (s *Service) Ask(ctx context.Context, question string) (string, error) {
	if !s.rag.HasDocuments() {
		return NoDocumentAnswer, nil
	}

	docs, err := s.rag.Query(ctx, question, s.askResults)
	if err != nil {
		return "", fmt.Errorf("retrieval failed: %w", err)
	}
	if len(docs) == 0 {
		return NotFoundAnswer, nil
	}

	prompt, err := s.askTpl.Format(map[string]any{
		"context":  joinContexts(docs),
		"question": question,
	})
	if err != nil {
		return "", err
	}

	answer, err := s.gen.Generate(ctx, prompt, askMaxNewTokens)
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}
	return squeezeWhitespace(answer), nil
}

// Summarize produces a bullet-point summary of the indexed document.
func (s *Service) Summarize(ctx context.Context) (string, error) {
	if !s.rag.HasDocuments() {
		return NoDocumentAnswer, nil
	}

	docs, err := s.rag.Query(ctx, summaryProbe, s.summaryResults)
	if err != nil {
		return "", fmt.Errorf("retrieval failed: %w", err)
	}

	prompt, err := s.summaryTpl.Format(map[string]any{
		"context": joinContexts(docs),
	})
	if err != nil {
		return "", err
	}

	summary, err := s.gen.Generate(ctx, prompt, summaryMaxNewTokens)
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}
	return summary, nil
}

func joinContexts(docs []schema.Document) string {
	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		parts = append(parts, d.PageContent)
	}
	return strings.Join(parts, "\n\n")
}

var multiSpaceRe = regexp.MustCompile(`\s{2,}`)

func squeezeWhitespace(s string) string {
	return strings.TrimSpace(multiSpaceRe.ReplaceAllString(s, " "))
}
