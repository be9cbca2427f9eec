package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/qmd-dev/qmd/pkg/version"
)

// jsonRPCRequest and jsonRPCResponse are the minimal envelope shapes the
// POST /mcp endpoint needs. The SDK only ships a stdio transport, so
// the HTTP surface is a small hand-rolled net/http layer that
// dispatches the same tool logic the stdio path uses.
type jsonRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type jsonRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *MCPError       `json:"error,omitempty"`
}

type toolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type resourceReadParams struct {
	URI string `json:"uri"`
}

// serveHTTP binds the fixed routes on addr and
// blocks until ctx is cancelled, then shuts down gracefully.
func (s *Server) serveHTTP(ctx context.Context, addr string) error {
	host, port, err := normalizeHostPort(addr, s.cfg.Server.HTTPHost, s.cfg.Server.HTTPPort)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /search", s.handleRESTQuery)
	mux.HandleFunc("POST /query", s.handleRESTQuery)
	mux.HandleFunc("POST /mcp", s.handleJSONRPC)

	srv := &http.Server{
		Addr:    net.JoinHostPort(host, fmt.Sprintf("%d", port)),
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http transport listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// normalizeHostPort defaults to localhost and accepts a bracketed
// "[::1]" host (bind ::1, display [::1]).
func normalizeHostPort(addr, configHost string, configPort int) (string, int, error) {
	host := configHost
	port := configPort
	if addr != "" {
		h, p, err := net.SplitHostPort(addr)
		if err == nil {
			host = h
			parsed, convErr := strconv.Atoi(p)
			if convErr != nil {
				return "", 0, fmt.Errorf("mcp: invalid port %q", p)
			}
			port = parsed
		}
	}
	host = strings.Trim(host, "[]")
	if host == "" {
		host = "127.0.0.1"
	}
	if port == 0 {
		port = 8730
	}
	return host, port, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": int(time.Since(s.startTime).Seconds()),
	})
}

// handleRESTQuery implements `POST /search` and `POST /query`: the same
// contract as the `query` tool, without the JSON-RPC envelope.
func (s *Server) handleRESTQuery(w http.ResponseWriter, r *http.Request) {
	var input QueryInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeJSON(w, http.StatusBadRequest, NewInvalidParamsError("malformed request body"))
		return
	}

	_, output, err := s.queryHandler(r.Context(), nil, input)
	if err != nil {
		writeJSONError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, output)
}

// handleJSONRPC implements `POST /mcp`: a JSON-RPC body with the same
// behaviour as the stdio transport for `initialize`, `tools/call`, and
// `resources/read`.
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	var req jsonRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, jsonRPCResponse{
			JSONRPC: "2.0",
			Error:   &MCPError{Code: ErrCodeInvalidRequest, Message: "malformed JSON-RPC request"},
		})
		return
	}

	resp := jsonRPCResponse{JSONRPC: "2.0", ID: req.ID}

	switch req.Method {
	case "initialize":
		status, err := s.store.Status()
		if err != nil {
			resp.Error = MapError(err)
			break
		}
		resp.Result = map[string]any{
			"serverInfo":   map[string]string{"name": "qmd", "version": version.Version},
			"instructions": buildInstructions(status),
		}

	case "tools/call":
		var params toolCallParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			resp.Error = NewInvalidParamsError("malformed tools/call params")
			break
		}
		result, toolErr := s.dispatchTool(r.Context(), params.Name, params.Arguments)
		if toolErr != nil {
			resp.Error = MapError(toolErr)
			break
		}
		resp.Result = result

	case "resources/read":
		var params resourceReadParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			resp.Error = NewInvalidParamsError("malformed resources/read params")
			break
		}
		result, readErr := s.ReadResourceByURI(params.URI)
		if readErr != nil {
			resp.Error = MapError(readErr)
			break
		}
		resp.Result = result

	default:
		resp.Error = &MCPError{Code: ErrCodeMethodNotFound, Message: fmt.Sprintf("unknown method %q", req.Method)}
	}

	writeJSON(w, http.StatusOK, resp)
}

// dispatchTool routes a raw tools/call payload to the same handlers the
// stdio transport's mcp.AddTool registrations invoke.
func (s *Server) dispatchTool(ctx context.Context, name string, rawArgs json.RawMessage) (any, error) {
	switch name {
	case "query":
		var input QueryInput
		if err := json.Unmarshal(rawArgs, &input); err != nil {
			return nil, NewInvalidParamsError("malformed query arguments")
		}
		_, out, err := s.queryHandler(ctx, nil, input)
		return out, err

	case "get":
		var input GetInput
		if err := json.Unmarshal(rawArgs, &input); err != nil {
			return nil, NewInvalidParamsError("malformed get arguments")
		}
		_, out, err := s.getHandler(ctx, nil, input)
		return out, err

	case "multi_get":
		var input MultiGetInput
		if err := json.Unmarshal(rawArgs, &input); err != nil {
			return nil, NewInvalidParamsError("malformed multi_get arguments")
		}
		_, out, err := s.multiGetHandler(ctx, nil, input)
		return out, err

	case "status":
		_, out, err := s.statusHandler(ctx, nil, StatusInput{})
		return out, err

	default:
		return nil, &MCPError{Code: ErrCodeMethodNotFound, Message: fmt.Sprintf("unknown tool %q", name)}
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, err error) {
	mcpErr := MapError(err)
	status := http.StatusInternalServerError
	if mcpErr.Code == ErrCodeInvalidParams || mcpErr.Code == ErrCodeInvalidRequest {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, mcpErr)
}

func writeJSONRPCError(w http.ResponseWriter, status int, mcpErr *MCPError) {
	writeJSON(w, status, jsonRPCResponse{JSONRPC: "2.0", Error: mcpErr})
}
