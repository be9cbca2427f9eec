package cmd

import (
	"fmt"
	"io"

	"github.com/qmd-dev/qmd/internal/format"
	"github.com/qmd-dev/qmd/internal/retrieval"
)

// printResults renders a retrieval.Result list: one numbered block per
// result with a formatted score and the snippet.
func printResults(w io.Writer, query string, results []retrieval.Result) {
	if len(results) == 0 {
		fmt.Fprintf(w, "no results for %q\n", query)
		return
	}
	fmt.Fprintf(w, "%d result(s) for %q:\n\n", len(results), query)
	for i, r := range results {
		fmt.Fprintf(w, "%d. %s (%s)\n", i+1, r.DisplayPath, format.Score(r.Score))
		if r.Context != "" {
			fmt.Fprintf(w, "   context: %s\n", r.Context)
		}
		fmt.Fprintf(w, "   line %d: %s\n\n", r.SnippetLine, r.Snippet)
	}
}
