package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/qmd-dev/qmd/internal/retrieval"
	"github.com/qmd-dev/qmd/internal/runtime"
)

func newSearchCmd() *cobra.Command {
	var limit int
	var collections []string

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Lexical (BM25) search only, bypassing vector retrieval and query expansion",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubSearch(cmd, strings.Join(args, " "), runtime.QueryLex, limit, collections)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum number of results")
	cmd.Flags().StringSliceVar(&collections, "collections", nil, "restrict to these collection names or root paths")

	return cmd
}

func newVsearchCmd() *cobra.Command {
	var limit int
	var collections []string

	cmd := &cobra.Command{
		Use:   "vsearch <query>",
		Short: "Vector (semantic) search only, bypassing lexical retrieval",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubSearch(cmd, strings.Join(args, " "), runtime.QueryVec, limit, collections)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum number of results")
	cmd.Flags().StringSliceVar(&collections, "collections", nil, "restrict to these collection names or root paths")

	return cmd
}

// runSubSearch runs a single-channel query by handing the engine an
// explicit one-entry Searches list, the same expansion bypass the MCP
// `query` tool's multi-sub-search shape uses.
func runSubSearch(cmd *cobra.Command, text string, channel runtime.QueryableType, limit int, collections []string) error {
	a, close, err := openApp(indexName, debugMode)
	if err != nil {
		return err
	}
	defer close()

	req := retrieval.Request{
		Text:        text,
		Searches:    []retrieval.SubQuery{{Type: channel, Query: text}},
		Limit:       limit,
		Collections: collections,
	}

	results, err := a.engine.Search(cmd.Context(), req)
	if err != nil {
		return err
	}

	printResults(cmd.OutOrStdout(), text, results)
	return nil
}
