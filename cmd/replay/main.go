// Command replay projects a JSON-lines record export into the configured document store.
//
// Records are split by partition and every partition is consumed by its own PartitionConsumer.
// Acknowledged positions and the exporter watermarks are kept in a badger checkpoint store,
// so a second run over the same export resumes behind the last flushed window.
//
//	PROJECTOR_ENGINE=pgx PROJECTOR_CHECKPOINT_PATH=/tmp/checkpoints replay --input records.jsonl
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "replay failed: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var input string

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Project exported records into documents",
		Long: `Reads records as JSON lines, one record per line, from --input or stdin
and projects them into the document store selected by PROJECTOR_ENGINE.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reader := cmd.InOrStdin()
			if input != "" && input != "-" {
				file, err := os.Open(input)
				if err != nil {
					return fmt.Errorf("open input: %w", err)
				}
				defer func() { _ = file.Close() }()
				reader = file
			}

			return run(cmd.Context(), reader, cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "JSON-lines file to replay, stdin if empty or -")

	return cmd
}
