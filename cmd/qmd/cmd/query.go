package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/qmd-dev/qmd/internal/retrieval"
)

func newQueryCmd() *cobra.Command {
	var limit int
	var minScore float64
	var collections []string
	var keywords []string
	var concepts []string
	var passage string
	var intent string

	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Full hybrid search: expansion, RRF fusion, and cross-encoder reranking",
		Long: `Runs the complete retrieval pipeline: a strong-signal probe, LLM
query expansion (unless --keyword/--concept/--passage supply caller
expansions), parallel lexical and vector sub-searches, RRF fusion, and
reranking of the top candidates.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, strings.Join(args, " "), limit, minScore, collections, keywords, concepts, passage, intent)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum number of results")
	cmd.Flags().Float64Var(&minScore, "min-score", 0, "drop results scoring below this threshold")
	cmd.Flags().StringSliceVar(&collections, "collections", nil, "restrict to these collection names or root paths")
	cmd.Flags().StringSliceVar(&keywords, "keyword", nil, "caller-supplied lexical expansion term (repeatable)")
	cmd.Flags().StringSliceVar(&concepts, "concept", nil, "caller-supplied dense-retrieval expansion term (repeatable)")
	cmd.Flags().StringVar(&passage, "passage", "", "caller-supplied hypothetical-document passage")
	cmd.Flags().StringVar(&intent, "intent", "", "explicit intent hint; disables the strong-signal shortcut")

	return cmd
}

func runQuery(cmd *cobra.Command, text string, limit int, minScore float64, collections, keywords, concepts []string, passage, intent string) error {
	a, close, err := openApp(indexName, debugMode)
	if err != nil {
		return err
	}
	defer close()

	req := retrieval.Normalize(retrieval.Request{
		Text:        text,
		Keywords:    keywords,
		Concepts:    concepts,
		Passage:     passage,
		Intent:      intent,
		Limit:       limit,
		MinScore:    minScore,
		Collections: collections,
	})

	results, err := a.engine.Search(cmd.Context(), req)
	if err != nil {
		return err
	}

	printResults(cmd.OutOrStdout(), text, results)
	return nil
}
