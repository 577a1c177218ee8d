package llm

import (
	"context"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"github.com/tmc/langchaingo/llms"
)

const (
	defaultMaxPromptTokens = 2048
	truncateEncoding       = "cl100k_base"
)

// Generator produces deterministic completions from a langchaingo model,
// handling the difference between encoder-decoder and causal outputs:
// causal models tend to echo the prompt, so the echoed prefix is stripped
// before the answer is returned.
type Generator struct {
	llm             llms.Model
	maxPromptTokens int

	detect   func(context.Context) ModelArch
	archOnce sync.Once
	arch     ModelArch
}

type GeneratorOption func(*Generator)

// WithArch pins the architecture instead of detecting it lazily.
func WithArch(arch ModelArch) GeneratorOption {
	return func(g *Generator) {
		g.detect = func(context.Context) ModelArch { return arch }
	}
}

// WithArchDetector supplies the architecture probe run once, on the first
// generation.
func WithArchDetector(detect func(context.Context) ModelArch) GeneratorOption {
	return func(g *Generator) {
		g.detect = detect
	}
}

func WithMaxPromptTokens(n int) GeneratorOption {
	return func(g *Generator) {
		if n > 0 {
			g.maxPromptTokens = n
		}
	}
}

func NewGenerator(model llms.Model, opts ...GeneratorOption) *Generator {
	g := &Generator{
		llm:             model,
		maxPromptTokens: defaultMaxPromptTokens,
		detect:          func(context.Context) ModelArch { return ArchCausal },
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Arch resolves the model architecture, probing at most once.
func (g *Generator) Arch(ctx context.Context) ModelArch {
	g.archOnce.Do(func() {
		g.arch = g.detect(ctx)
	})
	return g.arch
}

// Generate runs a single deterministic completion of the prompt, capped at
// maxNewTokens of output.
func (g *Generator) Generate(ctx context.Context, prompt string, maxNewTokens int) (string, error) {
	arch := g.Arch(ctx)
	prompt = truncateTokens(prompt, g.maxPromptTokens)

	out, err := llms.GenerateFromSinglePrompt(ctx, g.llm, prompt,
		llms.WithMaxTokens(maxNewTokens),
		llms.WithTemperature(0),
	)
	if err != nil {
		return "", err
	}

	if arch == ArchCausal {
		out = stripPromptEcho(out, prompt)
	}
	return strings.TrimSpace(out), nil
}

// stripPromptEcho removes a leading copy of the prompt from a causal
// model's output, leaving only the newly generated text.
func stripPromptEcho(out, prompt string) string {
	if trimmed, ok := strings.CutPrefix(out, prompt); ok {
		return trimmed
	}
	// Some backends trim trailing whitespace from the echoed prompt.
	if trimmed, ok := strings.CutPrefix(strings.TrimSpace(out), strings.TrimSpace(prompt)); ok {
		return trimmed
	}
	return out
}

// truncateTokens bounds text to at most maxTokens tokens. If the tokenizer
// is unavailable the text is passed through untouched.
func truncateTokens(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return text
	}
	enc, err := tiktoken.GetEncoding(truncateEncoding)
	if err != nil {
		return text
	}
	tokens := enc.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text
	}
	return enc.Decode(tokens[:maxTokens])
}
