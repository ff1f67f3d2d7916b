// Command guideseg segments clinical guideline documents into a section
// hierarchy and token-bounded parent chunks.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dgallion1/guideseg/internal/config"
	"github.com/dgallion1/guideseg/internal/pipeline"
	"github.com/dgallion1/guideseg/internal/store"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "guideseg",
	Short: "Segment clinical guidelines into sections and retrieval chunks",
	Long: `guideseg parses clinical guideline documents (PDF, DOCX, HTML, Markdown,
text, CSV or element JSON), rebuilds their chapter and topic hierarchy and
packs each topic into parent chunks sized for retrieval.

Configuration comes from .env, the YAML file named by GUIDESEG_CONFIG and
the environment, in that order.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log pipeline progress to stderr")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// cliLogger writes text logs to stderr, silenced below warnings unless
// --verbose is set.
func cliLogger() *slog.Logger {
	if !verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func openStore(ctx context.Context, cfg config.Config) (*store.Store, error) {
	return store.Open(ctx, store.Config{Driver: cfg.DatabaseDriver, DSN: cfg.DatabaseURL})
}

func newSegmenter(cfg config.Config, log *slog.Logger) (*pipeline.Segmenter, error) {
	return pipeline.NewSegmenter(pipeline.SegmentOptionsFrom(cfg), log)
}
