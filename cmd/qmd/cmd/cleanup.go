package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCleanupCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Check and repair the State-kind integrity conditions of the index",
		Long: `Reports orphaned vectors, non-contiguous chunk runs, and FTS shadow
drift. Without --dry-run, prunes orphaned vectors and rebuilds the FTS
shadow; partial embeddings are reported only, since repairing them
requires re-embedding. The orphaned-documents count is always 0: the
integrity check does not scan for orphaned documents.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCleanup(cmd, dryRun)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report findings without repairing anything")

	return cmd
}

func runCleanup(cmd *cobra.Command, dryRun bool) error {
	a, close, err := openApp(indexName, debugMode)
	if err != nil {
		return err
	}
	defer close()

	report, err := a.store.CheckIntegrity()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "orphaned vectors: %d\n", len(report.OrphanedVectors))
	fmt.Fprintf(out, "partial embeddings: %d\n", len(report.PartialEmbeddings))
	fmt.Fprintf(out, "fts mismatch: %d\n", report.FTSMismatch)
	fmt.Fprintf(out, "orphaned documents: %d\n", len(report.OrphanedDocuments))

	if dryRun {
		fmt.Fprintln(out, "dry run: no repairs made")
		return nil
	}

	if len(report.OrphanedVectors) > 0 {
		pruned, err := a.store.PruneOrphanVectors()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "pruned %d orphaned vector row(s)\n", pruned)
	}

	if report.FTSMismatch > 0 {
		if err := a.store.RebuildFTS(); err != nil {
			return err
		}
		fmt.Fprintln(out, "rebuilt fts shadow")
	}

	if len(report.PartialEmbeddings) > 0 {
		fmt.Fprintln(out, "partial embeddings found; run `qmd embed --force` to re-embed them")
	}

	return nil
}
