// Package cmd provides the CLI commands for qmd.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/qmd-dev/qmd/pkg/version"
)

var (
	debugMode bool
	indexName string
)

// NewRootCmd creates the root command for the qmd CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "qmd",
		Short: "Hybrid BM25 + vector search over a corpus of Markdown files",
		Long: `qmd indexes a corpus of Markdown documents by content hash, embeds
them into a vector space, and answers queries by combining lexical (BM25)
and semantic (vector) retrieval, fused by Reciprocal Rank Fusion and
refined by a cross-encoder reranker.

Run 'qmd add <glob>' to index a collection, 'qmd embed' to generate
vectors, then 'qmd query <text>' to search. 'qmd mcp' exposes the same
pipeline to LLM agents over the Model Context Protocol.`,
		Version: version.Version,
	}

	cmd.SetVersionTemplate("qmd version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug logging")
	cmd.PersistentFlags().StringVar(&indexName, "index", "default", "index name (selects the database file)")

	cmd.AddCommand(newAddCmd())
	cmd.AddCommand(newEmbedCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newVsearchCmd())
	cmd.AddCommand(newQueryCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newMCPCmd())
	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newCleanupCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
