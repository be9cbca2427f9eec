package mcp

import "strings"

// mimeTypeFor returns the MIME type for a display path. qmd indexes
// Markdown corpora, so every resource is Markdown text unless
// it's one of the few other prose extensions notes directories tend to
// carry.
func mimeTypeFor(path string) string {
	switch {
	case strings.HasSuffix(path, ".md"), strings.HasSuffix(path, ".markdown"):
		return "text/markdown"
	case strings.HasSuffix(path, ".txt"):
		return "text/plain"
	default:
		return "text/plain"
	}
}
