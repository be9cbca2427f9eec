package mcp

import (
	"context"
	"net/url"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/qmd-dev/qmd/internal/store"
)

// encodeResourceURI builds the `qmd://<enc(displayPath)>` URI,
// percent-encoding every path segment but preserving the `/` separators
// between them.
func encodeResourceURI(displayPath string) string {
	segments := strings.Split(displayPath, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return "qmd://" + strings.Join(segments, "/")
}

// decodeResourcePath recovers the display path from a `qmd://...` URI.
func decodeResourcePath(uri string) (string, bool) {
	rest := strings.TrimPrefix(uri, "qmd://")
	if rest == uri {
		return "", false
	}
	segments := strings.Split(rest, "/")
	for i, seg := range segments {
		decoded, err := url.PathUnescape(seg)
		if err != nil {
			return "", false
		}
		segments[i] = decoded
	}
	return strings.Join(segments, "/"), true
}

// RegisterResources registers every currently-active document as an MCP
// resource (the `qmd://{+path}` template) so clients that list
// resources before calling tools see the full corpus. NewServer calls it
// once; documents indexed after that are not registered unless it is
// called again.
func (s *Server) RegisterResources() error {
	docs, err := s.store.ListActiveDocuments()
	if err != nil {
		return err
	}
	for _, d := range docs {
		s.registerDocResource(d)
	}
	s.logger.Info("registered resources", "count", len(docs))
	return nil
}

func (s *Server) registerDocResource(d *store.Document) {
	uri := encodeResourceURI(d.DisplayPath)
	s.mcpSrv.AddResource(
		&sdkmcp.Resource{
			Name:        d.DisplayPath,
			URI:         uri,
			Description: d.Title,
			MIMEType:    mimeTypeFor(d.DisplayPath),
		},
		s.makeResourceHandler(d.DisplayPath),
	)
}

func (s *Server) makeResourceHandler(displayPath string) sdkmcp.ResourceHandler {
	return func(ctx context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
		return s.readResource(displayPath)
	}
}

// readResource loads one document's body by display path, used both by
// registered resource handlers and by ReadResourceByURI. The body
// is prefixed with an HTML comment naming the applicable path context, if
// the document falls under one.
func (s *Server) readResource(displayPath string) (*sdkmcp.ReadResourceResult, error) {
	body, err := s.store.GetBody(displayPath, 0, 0)
	if err != nil {
		return nil, NewResourceNotFoundError(encodeResourceURI(displayPath))
	}
	if ctxLabel, ok, _ := s.store.PathContext(displayPath); ok {
		body = "<!-- Context: " + ctxLabel + " -->\n" + body
	}
	return &sdkmcp.ReadResourceResult{
		Contents: []*sdkmcp.ResourceContents{
			{
				URI:      encodeResourceURI(displayPath),
				MIMEType: mimeTypeFor(displayPath),
				Text:     body,
			},
		},
	}, nil
}

// ReadResourceByURI dispatches a raw `qmd://...` URI, used by the HTTP
// /mcp JSON-RPC transport.
func (s *Server) ReadResourceByURI(uri string) (*sdkmcp.ReadResourceResult, error) {
	path, ok := decodeResourcePath(uri)
	if !ok {
		return nil, NewResourceNotFoundError(uri)
	}
	return s.readResource(path)
}
