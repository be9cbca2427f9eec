package mcp

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/qmd-dev/qmd/internal/format"
	"github.com/qmd-dev/qmd/internal/retrieval"
	"github.com/qmd-dev/qmd/internal/runtime"
)

// queryHandler implements the `query` tool: a multi-sub-search request
// fused by RRF and reranked.
func (s *Server) queryHandler(ctx context.Context, _ *sdkmcp.CallToolRequest, input QueryInput) (
	*sdkmcp.CallToolResult,
	QueryOutput,
	error,
) {
	if len(input.Searches) == 0 {
		return nil, QueryOutput{}, NewInvalidParamsError("searches must contain at least one {type, query} entry")
	}
	if len(input.Searches) > 10 {
		return nil, QueryOutput{}, NewInvalidParamsError("searches accepts at most 10 entries")
	}

	searches := make([]retrieval.SubQuery, 0, len(input.Searches))
	var text string
	for _, sub := range input.Searches {
		qt, err := parseQueryableType(sub.Type)
		if err != nil {
			return nil, QueryOutput{}, NewInvalidParamsError(err.Error())
		}
		if text == "" {
			text = sub.Query
		}
		searches = append(searches, retrieval.SubQuery{Type: qt, Query: sub.Query})
	}

	req := retrieval.Request{
		Text:        text,
		Searches:    searches,
		Limit:       input.Limit,
		MinScore:    input.MinScore,
		Collections: input.Collections,
	}

	results, err := s.engine.Search(ctx, req)
	if err != nil {
		return nil, QueryOutput{}, MapError(err)
	}

	out := QueryOutput{Results: make([]QueryResultOutput, 0, len(results))}
	for _, r := range results {
		out.Results = append(out.Results, QueryResultOutput{
			DocID:   r.DocID,
			File:    r.DisplayPath,
			Title:   r.Title,
			Score:   r.Score,
			Context: r.Context,
			Snippet: r.Snippet,
		})
	}

	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: summarizeQuery(text, out.Results)}},
	}, out, nil
}

func parseQueryableType(t string) (runtime.QueryableType, error) {
	switch t {
	case "lex":
		return runtime.QueryLex, nil
	case "vec":
		return runtime.QueryVec, nil
	case "hyde":
		return runtime.QueryHyde, nil
	default:
		return "", fmt.Errorf("unsupported search type %q (expected lex, vec, or hyde)", t)
	}
}

func summarizeQuery(query string, results []QueryResultOutput) string {
	if len(results) == 0 {
		return fmt.Sprintf("No results found for %q.", query)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d result", len(results))
	if len(results) != 1 {
		sb.WriteString("s")
	}
	fmt.Fprintf(&sb, " for %q:\n\n", query)
	for i, r := range results {
		fmt.Fprintf(&sb, "%d. %s (%s) — %s\n", i+1, r.File, format.Score(r.Score), r.Snippet)
	}
	return sb.String()
}

// getHandler implements the `get` tool: a single document lookup with
// `path:line` sugar and nearest-path suggestions on a miss.
func (s *Server) getHandler(ctx context.Context, _ *sdkmcp.CallToolRequest, input GetInput) (
	*sdkmcp.CallToolResult,
	GetOutput,
	error,
) {
	path, fromLine := splitPathLineSugar(input.File)
	if input.FromLine > 0 {
		fromLine = input.FromLine
	}

	result, err := s.store.FindDocument(path, true)
	if err != nil {
		return nil, GetOutput{}, MapError(err)
	}
	if !result.Found {
		msg := fmt.Sprintf("no document matches %q", path)
		if len(result.SimilarPaths) > 0 {
			msg += "; did you mean: " + strings.Join(result.SimilarPaths, ", ")
		}
		return nil, GetOutput{SimilarPaths: result.SimilarPaths}, NewInvalidParamsError(msg)
	}

	body := result.Document.Body
	if fromLine > 0 || input.MaxLines > 0 {
		body, err = s.store.GetBody(result.Document.DisplayPath, fromLine, input.MaxLines)
		if err != nil {
			return nil, GetOutput{}, MapError(err)
		}
	}
	if input.LineNumbers {
		start := fromLine
		if start <= 0 {
			start = 1
		}
		body = format.AddLineNumbers(body, start)
	}

	uri := encodeResourceURI(result.Document.DisplayPath)
	return nil, GetOutput{URI: uri, Body: body}, nil
}

// splitPathLineSugar parses the `get` tool's `path:line` shorthand;
// returns the bare path and a 1-based line, or 0 if no trailing
// `:<digits>` is present.
func splitPathLineSugar(file string) (string, int) {
	idx := strings.LastIndex(file, ":")
	if idx < 0 || idx == len(file)-1 {
		return file, 0
	}
	line, err := strconv.Atoi(file[idx+1:])
	if err != nil || line <= 0 {
		return file, 0
	}
	return file[:idx], line
}

// multiGetHandler implements the `multi_get` tool: a glob or CSV list of
// paths, each returned in full or replaced with a skip notice when it
// exceeds MaxBytes.
func (s *Server) multiGetHandler(ctx context.Context, _ *sdkmcp.CallToolRequest, input MultiGetInput) (
	*sdkmcp.CallToolResult,
	MultiGetOutput,
	error,
) {
	if strings.TrimSpace(input.Pattern) == "" {
		return nil, MultiGetOutput{}, NewInvalidParamsError("pattern is required")
	}
	maxBytes := input.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 10240
	}

	matches, skips, errs := s.store.FindDocuments(input.Pattern, true, maxBytes)
	if len(matches) == 0 && len(skips) == 0 {
		msg := fmt.Sprintf("no documents matched %q", input.Pattern)
		if len(errs) > 0 {
			msg = strings.Join(errs, "; ")
		}
		return nil, MultiGetOutput{}, NewInvalidParamsError(msg)
	}

	out := MultiGetOutput{Entries: make([]MultiGetEntry, 0, len(matches)+len(skips))}
	for _, m := range matches {
		body := m.Document.Body
		if input.MaxLines > 0 {
			body, _ = s.store.GetBody(m.Document.DisplayPath, 1, input.MaxLines)
		}
		if input.LineNumbers {
			body = format.AddLineNumbers(body, 1)
		}
		out.Entries = append(out.Entries, MultiGetEntry{
			URI:  encodeResourceURI(m.Document.DisplayPath),
			Body: body,
		})
	}
	for _, sk := range skips {
		out.Entries = append(out.Entries, MultiGetEntry{
			URI:     encodeResourceURI(sk.Filepath),
			Skipped: true,
			Reason:  sk.Reason,
		})
	}

	return nil, out, nil
}

// statusHandler implements the `status` tool.
func (s *Server) statusHandler(ctx context.Context, _ *sdkmcp.CallToolRequest, _ StatusInput) (
	*sdkmcp.CallToolResult,
	StatusOutput,
	error,
) {
	st, err := s.store.Status()
	if err != nil {
		return nil, StatusOutput{}, MapError(err)
	}

	out := StatusOutput{
		Total:          st.Total,
		NeedsEmbedding: st.NeedsEmbedding,
		HasVectorIndex: st.HasVectorIndex,
		Collections:    make([]StatusCollectionOutput, 0, len(st.Collections)),
	}
	for _, c := range st.Collections {
		lastUpdated := ""
		if !c.LastUpdated.IsZero() {
			lastUpdated = format.TimeAgo(c.LastUpdated)
		}
		out.Collections = append(out.Collections, StatusCollectionOutput{
			Name:        c.Name,
			Path:        c.Path,
			Pattern:     c.Pattern,
			Documents:   c.Documents,
			LastUpdated: lastUpdated,
		})
	}

	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: summarizeStatus(out)}},
	}, out, nil
}

func summarizeStatus(out StatusOutput) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d document(s) indexed, %d needing embedding.\n", out.Total, out.NeedsEmbedding)
	if !out.HasVectorIndex {
		sb.WriteString("No vector index yet.\n")
	}
	for _, c := range out.Collections {
		fmt.Fprintf(&sb, "- %s (%s): %d document(s)", c.Name, c.Pattern, c.Documents)
		if c.LastUpdated != "" {
			fmt.Fprintf(&sb, ", last updated %s", c.LastUpdated)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
