package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dgallion1/guideseg/internal/export"
	"github.com/dgallion1/guideseg/internal/parser"
)

var treeMarkdown bool
var treePack bool

var treeCmd = &cobra.Command{
	Use:   "tree <file>",
	Short: "Print the section hierarchy of a document without storing it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log := cliLogger()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		path := args[0]
		p, err := parser.ForFile(path, parser.Options{PDFFallbackPdftotext: cfg.PDFFallbackPdftotext})
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		elements, err := p.Parse(bytes.NewReader(data), filepath.Base(path))
		if err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}

		seg, err := newSegmenter(cfg, log)
		if err != nil {
			return err
		}
		st, report, err := seg.Structure(elements)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if treeMarkdown {
			return export.Tree(out, filepath.Base(path), st.Hierarchy.Sections)
		}
		printTree(out, filepath.Base(path), st.Hierarchy, report)

		if treePack {
			res, err := seg.Pack(cmd.Context(), st, report)
			if err != nil {
				return err
			}
			printPackSummary(out, res)
		}
		return nil
	},
}

func init() {
	treeCmd.Flags().BoolVar(&treeMarkdown, "markdown", false, "Print the Markdown hierarchy export instead")
	treeCmd.Flags().BoolVar(&treePack, "pack", false, "Also pack chunks and print their token distribution")
	rootCmd.AddCommand(treeCmd)
}
