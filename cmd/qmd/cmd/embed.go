package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/qmd-dev/qmd/internal/chunk"
	"github.com/qmd-dev/qmd/internal/ingest"
	"github.com/qmd-dev/qmd/internal/qmderr"
	"github.com/qmd-dev/qmd/internal/ui"
)

func newEmbedCmd() *cobra.Command {
	var force bool
	var plain bool

	cmd := &cobra.Command{
		Use:   "embed",
		Short: "Generate embeddings for any active document without a vector yet",
		Long: `Chunks the body of every active document that has no vector, embeds
each chunk through the configured Model Runtime provider, and persists
the vectors. --force deletes all existing vectors first and
re-embeds everything (use after changing the embedding model).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEmbed(cmd, force, plain)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "delete existing vectors and re-embed from scratch")
	cmd.Flags().BoolVar(&plain, "plain", false, "force plain line progress output instead of the interactive TUI")

	return cmd
}

func runEmbed(cmd *cobra.Command, force, plain bool) error {
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

	counts, err := ingest.Embed(ctx, a.store, a.runtime, force,
		ingest.WithChunkConfig(chunk.Config{Size: a.cfg.Search.ChunkSize, Overlap: a.cfg.Search.ChunkOverlap}),
		ingest.WithProgress(func(current, total int, currentFile string) {
			renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageEmbedding, Current: current, Total: total, CurrentFile: currentFile})
		}))
	if err != nil {
		_ = renderer.Stop()
		return err
	}

	renderer.Complete(ui.CompletionStats{
		Summary:  fmt.Sprintf("embedded=%d chunks=%d skipped=%d", counts.Embedded, counts.Chunks, counts.Skipped),
		Duration: time.Since(started),
	})
	_ = renderer.Stop()

	fmt.Fprintf(cmd.OutOrStdout(), "embedded=%d chunks=%d skipped=%d\n", counts.Embedded, counts.Chunks, counts.Skipped)
	return nil
}
