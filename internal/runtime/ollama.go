package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/qmd-dev/qmd/internal/qmderr"
)

// ollamaEmbedRequest is the Ollama /api/embed request shape.
type ollamaEmbedRequest struct {
	Model string `json:"model"`
	Input any    `json:"input"`
}

type ollamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
}

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// OllamaProvider is the local Model Runtime variant: it talks
// to a locally-running Ollama daemon over HTTP for embedding and
// generation, formatting text by role before encoding.
type OllamaProvider struct {
	client  *http.Client
	host    string
	model   string
	timeout time.Duration
}

// NewOllamaProvider constructs a provider against host using model for
// embeddings and generation.
func NewOllamaProvider(host, model string, timeout time.Duration) *OllamaProvider {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OllamaProvider{
		client: &http.Client{Transport: &http.Transport{MaxIdleConnsPerHost: 4, IdleConnTimeout: 10 * time.Second}},
		host:   strings.TrimRight(host, "/"),
		model:  model,
		timeout: timeout,
	}
}

// formatForEmbedding applies role-aware prefixing:
// "search_query: …" for queries, "search_document: <title>\n\n…" for
// documents.
func formatForEmbedding(text string, opts EmbedOpts) string {
	if opts.IsQuery {
		return "search_query: " + text
	}
	if opts.Title != "" {
		return "search_document: " + opts.Title + "\n\n" + text
	}
	return "search_document: " + text
}

func (p *OllamaProvider) embedOne(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	reqBody, err := json.Marshal(ollamaEmbedRequest{Model: p.model, Input: text})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.host+"/api/embed", bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama embed: status %d: %s", resp.StatusCode, string(body))
	}

	var out ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if len(out.Embeddings) == 0 {
		return nil, fmt.Errorf("ollama embed: empty response")
	}
	return out.Embeddings[0], nil
}

// Embed implements Provider.Embed. It never returns a partial result: a
// failure yields a nil vector and a non-nil error for the caller to log
// and degrade around.
func (p *OllamaProvider) Embed(ctx context.Context, text string, opts EmbedOpts) (EmbedResult, error) {
	formatted := formatForEmbedding(text, opts)
	vec, err := p.embedOne(ctx, formatted)
	if err != nil {
		return EmbedResult{}, qmderr.External(qmderr.CodeModelLoad, err)
	}
	return EmbedResult{Vector: vec, Model: p.model}, nil
}

// EmbedBatch implements Provider.EmbedBatch, preserving input order and
// degrading per-item on failure.
func (p *OllamaProvider) EmbedBatch(ctx context.Context, texts []string, opts EmbedOpts) ([]*EmbedResult, error) {
	out := make([]*EmbedResult, len(texts))
	for i, t := range texts {
		r, err := p.Embed(ctx, t, opts)
		if err != nil {
			out[i] = nil
			continue
		}
		out[i] = &r
	}
	return out, nil
}

// Generate implements Provider.Generate via Ollama's /api/generate.
func (p *OllamaProvider) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	reqBody, err := json.Marshal(ollamaGenerateRequest{Model: p.model, Prompt: prompt, Stream: false})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.host+"/api/generate", bytes.NewReader(reqBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", qmderr.External(qmderr.CodeRemoteAPI, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", qmderr.External(qmderr.CodeRemoteAPI, fmt.Errorf("status %d: %s", resp.StatusCode, string(body)))
	}

	var out ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", qmderr.External(qmderr.CodeRemoteAPI, err)
	}
	return out.Response, nil
}

// ExpandQuery implements Provider.ExpandQuery by prompting the generation
// model for a JSON object of expansions, falling back to the
// deterministic shape on any failure to call or parse.
func (p *OllamaProvider) ExpandQuery(ctx context.Context, text string, opts ExpandOpts) ([]Queryable, error) {
	prompt := buildExpansionPrompt(text, opts)
	raw, err := p.Generate(ctx, prompt)
	if err != nil {
		return FallbackExpansion(text, opts.IncludeLexical), nil
	}
	expansions, ok := parseExpansionResponse(raw, text, opts.IncludeLexical)
	if !ok || len(expansions) == 0 {
		return FallbackExpansion(text, opts.IncludeLexical), nil
	}
	return expansions, nil
}

// ModelExists reports whether model is present in the Ollama daemon's tag
// list.
func (p *OllamaProvider) ModelExists(ctx context.Context, model string) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.host+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false
	}
	var out ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false
	}
	for _, m := range out.Models {
		if m.Name == model || strings.Split(m.Name, ":")[0] == strings.Split(model, ":")[0] {
			return true
		}
	}
	return false
}

// Rerank implements Provider.Rerank. The Ollama daemon has no dedicated
// cross-encoder rerank endpoint, so this reports unsupported and lets the
// caller (Service) fall back to NoOpRerank, which passes RRF order
// through unchanged.
func (p *OllamaProvider) Rerank(ctx context.Context, query string, candidates []RerankCandidate) (RerankResult, error) {
	return RerankResult{}, qmderr.External(qmderr.CodeModelLoad, fmt.Errorf("ollama provider has no rerank endpoint"))
}

// Dispose releases HTTP connection-pool resources. The Ollama daemon
// itself is a separate process and is not shut down here.
func (p *OllamaProvider) Dispose(ctx context.Context) error {
	p.client.CloseIdleConnections()
	return nil
}

var _ Provider = (*OllamaProvider)(nil)
