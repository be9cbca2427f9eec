package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/qmd-dev/qmd/internal/qmderr"
)

// openAIEmbedRequest is the OpenAI-compatible embeddings request.
type openAIEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

type openAIChatRequest struct {
	Model    string              `json:"model"`
	Messages []openAIChatMessage `json:"messages"`
}

type openAIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message openAIChatMessage `json:"message"`
	} `json:"choices"`
}

// RemoteProvider is the OpenAI-compatible remote variant:
// embeddings and chat completions over HTTPS. Query expansion reuses the
// shared prompt/parse helpers in expand.go.
type RemoteProvider struct {
	client     *http.Client
	baseURL    string
	apiKey     string
	embedModel string
	chatModel  string
}

// NewRemoteProvider constructs a provider against an OpenAI-compatible
// base URL (e.g. OpenRouter, a self-hosted vLLM gateway).
func NewRemoteProvider(baseURL, apiKey, embedModel, chatModel string, timeout time.Duration) *RemoteProvider {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &RemoteProvider{
		client:     &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		embedModel: embedModel,
		chatModel:  chatModel,
	}
}

func (p *RemoteProvider) authedRequest(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
	return p.client.Do(req)
}

// Embed implements Provider.Embed.
func (p *RemoteProvider) Embed(ctx context.Context, text string, opts EmbedOpts) (EmbedResult, error) {
	results, err := p.EmbedBatch(ctx, []string{formatForEmbedding(text, opts)}, opts)
	if err != nil {
		return EmbedResult{}, err
	}
	if len(results) == 0 || results[0] == nil {
		return EmbedResult{}, qmderr.External(qmderr.CodeRemoteAPI, fmt.Errorf("remote embed: empty response"))
	}
	return *results[0], nil
}

// EmbedBatch implements Provider.EmbedBatch against /v1/embeddings,
// preserving input order and leaving a nil slot on partial failure.
func (p *RemoteProvider) EmbedBatch(ctx context.Context, texts []string, _ EmbedOpts) ([]*EmbedResult, error) {
	reqBody, err := json.Marshal(openAIEmbedRequest{Model: p.embedModel, Input: texts})
	if err != nil {
		return nil, err
	}
	resp, err := p.authedRequest(ctx, http.MethodPost, "/v1/embeddings", reqBody)
	if err != nil {
		return nil, qmderr.External(qmderr.CodeRemoteAPI, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, qmderr.External(qmderr.CodeRemoteAPI, fmt.Errorf("status %d: %s", resp.StatusCode, string(body)))
	}

	var out openAIEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, qmderr.External(qmderr.CodeRemoteAPI, err)
	}

	results := make([]*EmbedResult, len(texts))
	for _, d := range out.Data {
		if d.Index < 0 || d.Index >= len(results) {
			continue
		}
		results[d.Index] = &EmbedResult{Vector: d.Embedding, Model: p.embedModel}
	}
	return results, nil
}

// Generate implements Provider.Generate via a single-turn chat completion.
func (p *RemoteProvider) Generate(ctx context.Context, prompt string) (string, error) {
	reqBody, err := json.Marshal(openAIChatRequest{
		Model:    p.chatModel,
		Messages: []openAIChatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", err
	}
	resp, err := p.authedRequest(ctx, http.MethodPost, "/v1/chat/completions", reqBody)
	if err != nil {
		return "", qmderr.External(qmderr.CodeRemoteAPI, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", qmderr.External(qmderr.CodeRemoteAPI, fmt.Errorf("status %d: %s", resp.StatusCode, string(body)))
	}

	var out openAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", qmderr.External(qmderr.CodeRemoteAPI, err)
	}
	if len(out.Choices) == 0 {
		return "", qmderr.External(qmderr.CodeRemoteAPI, fmt.Errorf("remote generate: no choices returned"))
	}
	return out.Choices[0].Message.Content, nil
}

// ExpandQuery implements Provider.ExpandQuery, same contract as
// OllamaProvider.ExpandQuery.
func (p *RemoteProvider) ExpandQuery(ctx context.Context, text string, opts ExpandOpts) ([]Queryable, error) {
	raw, err := p.Generate(ctx, buildExpansionPrompt(text, opts))
	if err != nil {
		return FallbackExpansion(text, opts.IncludeLexical), nil
	}
	expansions, ok := parseExpansionResponse(raw, text, opts.IncludeLexical)
	if !ok {
		return FallbackExpansion(text, opts.IncludeLexical), nil
	}
	return expansions, nil
}

// Rerank implements Provider.Rerank for a remote provider with no
// dedicated rerank endpoint: returns a not-supported error so the caller
// (runtime.Service) falls back to NoOpRerank.
func (p *RemoteProvider) Rerank(ctx context.Context, query string, candidates []RerankCandidate) (RerankResult, error) {
	return RerankResult{}, qmderr.External(qmderr.CodeModelLoad, fmt.Errorf("remote provider has no rerank endpoint"))
}

// ModelExists always reports true for a remote provider: there is no
// tag-listing endpoint guaranteed by the OpenAI-compatible surface, so
// existence is assumed and failures surface on first real call instead.
func (p *RemoteProvider) ModelExists(ctx context.Context, model string) bool { return true }

// Dispose releases the HTTP client's idle connections.
func (p *RemoteProvider) Dispose(ctx context.Context) error {
	p.client.CloseIdleConnections()
	return nil
}

var _ Provider = (*RemoteProvider)(nil)

// RerankRemoteProvider wraps a RemoteProvider and adds a dedicated
// rerank endpoint.
type RerankRemoteProvider struct {
	*RemoteProvider
	rerankBaseURL string
	rerankAPIKey  string
	rerankModel   string
}

// NewRerankRemoteProvider builds a RerankRemoteProvider sharing embed/chat
// wiring with inner but posting rerank requests to its own endpoint (the
// common case when a provider front-ends a cross-encoder separately from
// its chat/embedding models).
func NewRerankRemoteProvider(inner *RemoteProvider, rerankBaseURL, rerankAPIKey, rerankModel string) *RerankRemoteProvider {
	return &RerankRemoteProvider{RemoteProvider: inner, rerankBaseURL: strings.TrimRight(rerankBaseURL, "/"), rerankAPIKey: rerankAPIKey, rerankModel: rerankModel}
}

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// Rerank posts query and the candidate texts to the dedicated endpoint;
// results are sorted by score descending and scores lie in [0, 1].
func (p *RerankRemoteProvider) Rerank(ctx context.Context, query string, candidates []RerankCandidate) (RerankResult, error) {
	docs := make([]string, len(candidates))
	for i, c := range candidates {
		docs[i] = c.Text
	}
	reqBody, err := json.Marshal(rerankRequest{Model: p.rerankModel, Query: query, Documents: docs})
	if err != nil {
		return RerankResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.rerankBaseURL+"/v1/rerank", bytes.NewReader(reqBody))
	if err != nil {
		return RerankResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.rerankAPIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.rerankAPIKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return RerankResult{}, qmderr.External(qmderr.CodeRemoteAPI, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return RerankResult{}, qmderr.External(qmderr.CodeRemoteAPI, fmt.Errorf("status %d: %s", resp.StatusCode, string(body)))
	}

	var out rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return RerankResult{}, qmderr.External(qmderr.CodeRemoteAPI, err)
	}

	hits := make([]RerankHit, 0, len(out.Results))
	for _, r := range out.Results {
		if r.Index < 0 || r.Index >= len(candidates) {
			continue
		}
		hits = append(hits, RerankHit{File: candidates[r.Index].File, Score: r.RelevanceScore, Index: r.Index})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	return RerankResult{Results: hits, Model: p.rerankModel}, nil
}

var _ Provider = (*RerankRemoteProvider)(nil)
