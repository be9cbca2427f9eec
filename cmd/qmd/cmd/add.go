package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/qmd-dev/qmd/internal/ingest"
	"github.com/qmd-dev/qmd/internal/qmderr"
	"github.com/qmd-dev/qmd/internal/ui"
)

func newAddCmd() *cobra.Command {
	var root string
	var watch bool
	var plain bool

	cmd := &cobra.Command{
		Use:   "add <glob>",
		Short: "Index a collection of Markdown files matching glob",
		Long: `Walks --root (default: the current directory) for files matching
glob, hashes and upserts each into the index, and deactivates any
previously-active document that has disappeared.

Pass the glob as a single quoted argument ('qmd add "**/*.md"'); an
unquoted glob that the shell has already expanded into many file
arguments is rejected, since qmd would silently index only the first
match's directory instead of the intended pattern.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 1 {
				return qmderr.Usage(qmderr.CodeShellExpandedGlob,
					"received multiple file arguments; quote the glob so the shell does not expand it, e.g. qmd add \"**/*.md\"")
			}
			return runAdd(cmd, args[0], root, watch, plain)
		},
	}

	cmd.Flags().StringVar(&root, "root", ".", "collection root directory")
	cmd.Flags().BoolVar(&watch, "watch", false, "keep watching root for changes after the initial index")
	cmd.Flags().BoolVar(&plain, "plain", false, "force plain line progress output instead of the interactive TUI")

	return cmd
}

func runAdd(cmd *cobra.Command, glob, root string, watch, plain bool) error {
	a, close, err := openApp(indexName, debugMode)
	if err != nil {
		return err
	}
	defer close()

	ctx := cmd.Context()

	unlock, err := a.store.Lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	renderer := ui.NewRenderer(ui.NewConfig(os.Stdout, ui.WithForcePlain(plain)))
	if err := renderer.Start(ctx); err != nil {
		return qmderr.Fatal(qmderr.CodeIO, err)
	}
	started := time.Now()

	_, counts, err := ingest.Run(ctx, a.store, root, glob, ingest.WithProgress(func(current, total int, currentFile string) {
		renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageScanning, Current: current, Total: total, CurrentFile: currentFile})
	}))
	if err != nil {
		_ = renderer.Stop()
		return err
	}

	renderer.Complete(ui.CompletionStats{
		Summary:  fmt.Sprintf("indexed=%d updated=%d unchanged=%d removed=%d needs_embedding=%d", counts.Indexed, counts.Updated, counts.Unchanged, counts.Removed, counts.NeedsEmbedding),
		Duration: time.Since(started),
	})
	_ = renderer.Stop()

	fmt.Fprintf(cmd.OutOrStdout(), "indexed=%d updated=%d unchanged=%d removed=%d needs_embedding=%d\n",
		counts.Indexed, counts.Updated, counts.Unchanged, counts.Removed, counts.NeedsEmbedding)

	if !watch {
		return nil
	}

	return ingest.Watch(ctx, a.store, root, glob, func(c ingest.Counts, watchErr error) {
		if watchErr != nil {
			a.logger.Error("watch re-ingest failed", "error", watchErr)
			return
		}
		fmt.Fprintf(cmd.OutOrStdout(), "reindexed: indexed=%d updated=%d removed=%d\n", c.Indexed, c.Updated, c.Removed)
	})
}
