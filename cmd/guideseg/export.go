package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dgallion1/guideseg/internal/export"
)

var exportKind string

var exportCmd = &cobra.Command{
	Use:   "export <doc-id>",
	Short: "Write a stored document's tree or chunk review as Markdown",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !export.Valid(exportKind) {
			return fmt.Errorf("--kind must be %s or %s", export.KindTree, export.KindChunks)
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		docID := args[0]
		doc, err := st.GetDocument(ctx, docID)
		if err != nil {
			return fmt.Errorf("document %s: %w", docID, err)
		}
		sections, err := st.ListSections(ctx, docID)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if exportKind == export.KindTree {
			return export.Tree(out, doc.Filename, sections)
		}
		chunks, err := st.ListChunks(ctx, docID, 0)
		if err != nil {
			return err
		}
		return export.Chunks(out, docID, sections, chunks)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportKind, "kind", export.KindTree, "Export kind (tree, chunks)")
	rootCmd.AddCommand(exportCmd)
}
