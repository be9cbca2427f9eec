package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/qmd-dev/qmd/internal/format"
	"github.com/qmd-dev/qmd/internal/qmderr"
)

func newGetCmd() *cobra.Command {
	var fromLine int
	var maxLines int
	var lineNumbers bool

	cmd := &cobra.Command{
		Use:   "get <path[:line]>",
		Short: "Fetch a single document by path, display path, content hash, or doc id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(cmd, args[0], fromLine, maxLines, lineNumbers)
		},
	}

	cmd.Flags().IntVar(&fromLine, "from-line", 0, "1-based starting line")
	cmd.Flags().IntVar(&maxLines, "max-lines", 0, "maximum lines to return")
	cmd.Flags().BoolVar(&lineNumbers, "line-numbers", false, "prefix each line with its 1-based line number")

	return cmd
}

func runGet(cmd *cobra.Command, arg string, fromLine, maxLines int, lineNumbers bool) error {
	a, close, err := openApp(indexName, debugMode)
	if err != nil {
		return err
	}
	defer close()

	path, sugarLine := splitPathLine(arg)
	if sugarLine > 0 {
		fromLine = sugarLine
	}

	result, err := a.store.FindDocument(path, true)
	if err != nil {
		return err
	}
	if !result.Found {
		msg := fmt.Sprintf("no document matches %q", path)
		if len(result.SimilarPaths) > 0 {
			msg += "; did you mean: " + strings.Join(result.SimilarPaths, ", ")
		}
		return qmderr.Usage(qmderr.CodeUnknownDocument, msg)
	}

	body := result.Document.Body
	if fromLine > 0 || maxLines > 0 {
		body, err = a.store.GetBody(result.Document.DisplayPath, fromLine, maxLines)
		if err != nil {
			return err
		}
	}
	if lineNumbers {
		start := fromLine
		if start <= 0 {
			start = 1
		}
		body = format.AddLineNumbers(body, start)
	}

	fmt.Fprintln(cmd.OutOrStdout(), body)
	return nil
}

func splitPathLine(arg string) (string, int) {
	idx := strings.LastIndex(arg, ":")
	if idx < 0 || idx == len(arg)-1 {
		return arg, 0
	}
	line, err := strconv.Atoi(arg[idx+1:])
	if err != nil || line <= 0 {
		return arg, 0
	}
	return arg[:idx], line
}
