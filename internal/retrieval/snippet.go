package retrieval

import "strings"

// Extract returns a window of up to window
// bytes centred on the first case-insensitive occurrence of query's first
// whitespace-delimited token in body, falling back to the document's first
// window bytes when that token does not occur. Ellipses are prepended/appended where the window
// does not reach a body boundary, and the 1-based line number the
// snippet starts on is returned alongside the text. The length stays
// within window plus the ellipsis affixes, and the snippet contains
// that token case-insensitively whenever it occurs in body.
func Extract(body, query string, window int) (snippet string, line int) {
	if window <= 0 {
		window = 300
	}
	if body == "" {
		return "", 1
	}

	idx := strings.Index(strings.ToLower(body), strings.ToLower(firstToken(query)))
	if idx < 0 {
		end := window
		if end > len(body) {
			end = len(body)
		}
		text := body[:end]
		if end < len(body) {
			text += "…"
		}
		return text, 1
	}

	half := window / 2
	start := idx - half
	if start < 0 {
		start = 0
	}
	end := start + window
	if end > len(body) {
		end = len(body)
		start = end - window
		if start < 0 {
			start = 0
		}
	}

	text := body[start:end]
	if start > 0 {
		text = "…" + text
	}
	if end < len(body) {
		text = text + "…"
	}
	return text, lineNumber(body, start)
}

// firstToken returns the first whitespace-delimited token of query, or
// query unchanged if it has none — the snippet's primary query token
// for multi-word queries.
func firstToken(query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return query
	}
	if i := strings.IndexAny(query, " \t\n"); i >= 0 {
		return query[:i]
	}
	return query
}

// lineNumber returns the 1-based line that byte offset pos falls on
// within body.
func lineNumber(body string, pos int) int {
	if pos > len(body) {
		pos = len(body)
	}
	return strings.Count(body[:pos], "\n") + 1
}
