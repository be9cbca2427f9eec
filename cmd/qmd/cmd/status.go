package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/qmd-dev/qmd/internal/format"
)

func newStatusCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print document, embedding, and collection counts for this index",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "emit machine-readable JSON")

	return cmd
}

func runStatus(cmd *cobra.Command, asJSON bool) error {
	a, close, err := openApp(indexName, debugMode)
	if err != nil {
		return err
	}
	defer close()

	st, err := a.store.Status()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}

	fmt.Fprintf(out, "index: %s\n", indexName)
	fmt.Fprintf(out, "documents: %d (needs embedding: %d)\n", st.Total, st.NeedsEmbedding)
	fmt.Fprintf(out, "vector index: %v\n", st.HasVectorIndex)
	if info, err := os.Stat(a.cfg.DBPath); err == nil {
		fmt.Fprintf(out, "database: %s (%s)\n", a.cfg.DBPath, format.Bytes(info.Size()))
	}
	if len(st.Collections) == 0 {
		fmt.Fprintln(out, "collections: none")
		return nil
	}
	fmt.Fprintln(out, "collections:")
	for _, c := range st.Collections {
		fmt.Fprintf(out, "  %-20s %-30s %-15s docs=%-5d updated=%s\n",
			c.Name, c.Path, c.Pattern, c.Documents, format.TimeAgo(c.LastUpdated))
	}
	return nil
}
