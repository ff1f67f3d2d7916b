package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dgallion1/guideseg/internal/parser"
	"github.com/dgallion1/guideseg/internal/pipeline"
)

var buildOverwrite bool
var buildJSON bool

var buildCmd = &cobra.Command{
	Use:   "build <file>",
	Short: "Segment a document and store its sections and chunks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log := cliLogger()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		path := args[0]
		if !parser.IsSupportedExtension(path) {
			return fmt.Errorf("unsupported file type: %s", filepath.Ext(path))
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		ctx := cmd.Context()
		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		seg, err := newSegmenter(cfg, log)
		if err != nil {
			return err
		}

		w := pipeline.NewWorker(seg, st, parser.Options{PDFFallbackPdftotext: cfg.PDFFallbackPdftotext}, cfg.PersistBatch, log)
		job := pipeline.NewJob(uuid.NewString(), filepath.Base(path), data, buildOverwrite)
		w.Process(ctx, job)

		snap := job.Snapshot()
		out := cmd.OutOrStdout()
		if buildJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(snap); err != nil {
				return err
			}
		} else {
			printBuildSummary(out, snap)
		}
		if snap.Status == pipeline.StatusFailed {
			return fmt.Errorf("build failed: %d errors", len(snap.Progress.Errors))
		}
		return nil
	},
}

func init() {
	buildCmd.Flags().BoolVar(&buildOverwrite, "overwrite", false, "Rebuild a document whose content is already stored")
	buildCmd.Flags().BoolVar(&buildJSON, "json", false, "Print the job snapshot as JSON")
	rootCmd.AddCommand(buildCmd)
}
