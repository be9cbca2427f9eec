package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/qmd-dev/qmd/internal/config"
	"github.com/qmd-dev/qmd/internal/retrieval"
	"github.com/qmd-dev/qmd/internal/runtime"
	"github.com/qmd-dev/qmd/internal/store"
	"github.com/qmd-dev/qmd/pkg/version"
)

// Server is the MCP surface: it registers the query/get/multi_get/
// status tools, publishes qmd:// resources for every active document,
// and serves the stdio and HTTP transports.
type Server struct {
	store   *store.Store
	runtime *runtime.Service
	engine  *retrieval.Engine
	cfg     *config.Config

	indexName string
	mcpSrv    *sdkmcp.Server
	logger    *slog.Logger
	startTime time.Time
}

// NewServer wires a Server over an already-open Store, Model Runtime
// Service, and Retrieval Engine. Instructions text for the stdio
// transport's `initialize` handshake is built once here from the index's
// current status; the HTTP `/mcp` endpoint builds it afresh for each
// `initialize` request.
func NewServer(st *store.Store, rt *runtime.Service, engine *retrieval.Engine, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if st == nil {
		return nil, fmt.Errorf("mcp: store is required")
	}
	if engine == nil {
		return nil, fmt.Errorf("mcp: retrieval engine is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		store:     st,
		runtime:   rt,
		engine:    engine,
		cfg:       cfg,
		indexName: cfg.IndexName,
		logger:    logger,
		startTime: time.Now(),
	}

	status, err := st.Status()
	if err != nil {
		return nil, err
	}

	s.mcpSrv = sdkmcp.NewServer(
		&sdkmcp.Implementation{
			Name:    "qmd",
			Version: version.Version,
		},
		&sdkmcp.ServerOptions{
			Instructions: buildInstructions(status),
		},
	)

	s.registerTools()
	if err := s.RegisterResources(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.mcpSrv, &sdkmcp.Tool{
		Name:        "query",
		Description: "Search the indexed corpus with 1-10 typed sub-searches (lex/vec/hyde), fused by RRF and reranked. The first sub-search carries 2x weight.",
	}, s.queryHandler)

	sdkmcp.AddTool(s.mcpSrv, &sdkmcp.Tool{
		Name:        "get",
		Description: "Fetch a single document by path, display path, content hash (#<prefix>), or numeric doc id. Accepts path:line sugar. Returns nearby path suggestions on a miss.",
	}, s.getHandler)

	sdkmcp.AddTool(s.mcpSrv, &sdkmcp.Tool{
		Name:        "multi_get",
		Description: "Fetch several documents at once by glob or comma-separated path list; oversize documents are replaced with a skip notice instead of being truncated.",
	}, s.multiGetHandler)

	sdkmcp.AddTool(s.mcpSrv, &sdkmcp.Tool{
		Name:        "status",
		Description: "Report index status: total documents, how many still need embedding, whether the vector index exists, and per-collection counts.",
	}, s.statusHandler)

	s.logger.Info("mcp tools registered", "count", 4)
}

// Serve runs the server until ctx is cancelled. transport is "stdio" or
// "http"; addr is only consulted for "http".
func (s *Server) Serve(ctx context.Context, transport, addr string) error {
	s.logger.Info("starting mcp server", "transport", transport, "addr", addr)

	switch transport {
	case "stdio":
		err := s.mcpSrv.Run(ctx, &sdkmcp.StdioTransport{})
		if err != nil && err != context.Canceled {
			s.logger.Error("mcp server stopped with error", "error", err)
			return err
		}
		s.logger.Info("mcp server stopped gracefully")
		return nil
	case "http":
		return s.serveHTTP(ctx, addr)
	default:
		return fmt.Errorf("mcp: unknown transport %q (supported: stdio, http)", transport)
	}
}

// Close releases server-owned resources. The underlying MCP session
// stops when its context is cancelled; this only exists so callers have
// a single symmetric lifecycle method to defer.
func (s *Server) Close() error {
	return nil
}

// buildInstructions renders the dynamic `initialize` instructions text
// from the current index status, so an agent knows what is
// searchable before it calls any tool.
func buildInstructions(st *store.Status) string {
	if st.Total == 0 {
		return "This index is empty. Run `qmd add <glob>` and `qmd embed` before calling query."
	}
	msg := fmt.Sprintf("Index has %d documents across %d collection(s).", st.Total, len(st.Collections))
	if st.NeedsEmbedding > 0 {
		msg += fmt.Sprintf(" %d document(s) still need embedding; vector search results may be incomplete until `qmd embed` runs.", st.NeedsEmbedding)
	}
	if !st.HasVectorIndex {
		msg += " No vector index exists yet; query falls back to lexical search only."
	}
	return msg
}
