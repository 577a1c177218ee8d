package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// ModelArch describes how a text-generation model consumes and produces
// tokens. Encoder-decoder (seq2seq) models emit only new text; causal
// models continue the prompt, so their output may echo it.
type ModelArch int

const (
	ArchCausal ModelArch = iota
	ArchEncoderDecoder
)

func (a ModelArch) String() string {
	if a == ArchEncoderDecoder {
		return "encoder-decoder"
	}
	return "causal"
}

// DefaultHubURL is where model config files are probed from.
const DefaultHubURL = "https://huggingface.co"

type hubConfig struct {
	IsEncoderDecoder bool     `json:"is_encoder_decoder"`
	Architectures    []string `json:"architectures"`
}

// DetectArch determines the architecture of the named model by fetching
// its config.json from the model hub. If the probe fails (offline, private
// model, non-hub name) it falls back to name heuristics, so it always
// yields an answer.
func DetectArch(ctx context.Context, client *http.Client, hubURL, model string) ModelArch {
	if client == nil {
		client = http.DefaultClient
	}
	if hubURL == "" {
		hubURL = DefaultHubURL
	}

	url := fmt.Sprintf("%s/%s/resolve/main/config.json", strings.TrimRight(hubURL, "/"), model)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ArchFromName(model)
	}
	resp, err := client.Do(req)
	if err != nil {
		return ArchFromName(model)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ArchFromName(model)
	}

	var cfg hubConfig
	if err := json.NewDecoder(resp.Body).Decode(&cfg); err != nil {
		return ArchFromName(model)
	}
	if cfg.IsEncoderDecoder {
		return ArchEncoderDecoder
	}
	for _, arch := range cfg.Architectures {
		switch {
		case strings.HasSuffix(arch, "ForConditionalGeneration"):
			return ArchEncoderDecoder
		case strings.HasSuffix(arch, "ForCausalLM"), strings.HasSuffix(arch, "LMHeadModel"):
			return ArchCausal
		}
	}
	return ArchFromName(model)
}

// seq2seqFamilies are model families known to be encoder-decoder.
var seq2seqFamilies = []string{"t5", "flan", "bart", "pegasus", "marian", "ul2"}

// ArchFromName guesses the architecture from the model name alone.
func ArchFromName(model string) ModelArch {
	name := strings.ToLower(model)
	for _, family := range seq2seqFamilies {
		if strings.Contains(name, family) {
			return ArchEncoderDecoder
		}
	}
	return ArchCausal
}
