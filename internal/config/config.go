package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dgallion1/guideseg/internal/chunker"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// Persistence
	DatabaseDriver string
	DatabaseURL    string

	// Worker pool
	WorkerCount  int
	MaxQueueSize int
	PackWorkers  int
	PersistBatch int // Topics per chunk insert transaction

	// Upload limits
	MaxUploadBytes int64

	// Job state
	JobTTL time.Duration

	// Segmentation
	Chunking        chunker.Config
	TOCScanPages    int
	MaxHeadingDepth int
	FallbackSpan    int
	Vocabulary      []string // Extra standard subsection names

	// HeadingBoundaries lets a matched heading claim the content after it.
	// Off attributes content by page alone.
	HeadingBoundaries bool

	// PDF
	PDFFallbackPdftotext bool

	// ConfigPath is the YAML file that was applied, if any.
	ConfigPath string
}

// fileConfig is the YAML overlay read from GUIDESEG_CONFIG.
type fileConfig struct {
	Database struct {
		Driver string `yaml:"driver"`
		URL    string `yaml:"url"`
	} `yaml:"database"`
	Workers struct {
		Count        int `yaml:"count"`
		QueueSize    int `yaml:"queue_size"`
		PackWorkers  int `yaml:"pack_workers"`
		PersistBatch int `yaml:"persist_batch"`
	} `yaml:"workers"`
	Chunking struct {
		ParentMinTokens    int     `yaml:"parent_min_tokens"`
		ParentTargetTokens int     `yaml:"parent_target_tokens"`
		ParentMaxTokens    int     `yaml:"parent_max_tokens"`
		ChildTargetTokens  int     `yaml:"child_target_tokens"`
		ChildTolerance     float64 `yaml:"child_tolerance"`
		ChildMaxTokens     int     `yaml:"child_max_tokens"`
	} `yaml:"chunking"`
	Extraction struct {
		TOCScanPages    int `yaml:"toc_scan_pages"`
		MaxHeadingDepth int `yaml:"max_heading_depth"`
		FallbackSpan    int `yaml:"fallback_span"`

		HeadingBoundaries *bool `yaml:"heading_boundaries"`
	} `yaml:"extraction"`
	Vocabulary []string `yaml:"vocabulary"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Port:                 "8090",
		DatabaseDriver:       "sqlite",
		DatabaseURL:          "guideseg.db",
		WorkerCount:          2,
		MaxQueueSize:         100,
		PackWorkers:          4,
		PersistBatch:         10,
		MaxUploadBytes:       104857600, // 100MB
		JobTTL:               1 * time.Hour,
		Chunking:             chunker.DefaultConfig(),
		TOCScanPages:         20,
		MaxHeadingDepth:      4,
		FallbackSpan:         20,
		HeadingBoundaries:    true,
		PDFFallbackPdftotext: true,
	}
}

// Load reads .env, then the optional YAML file named by GUIDESEG_CONFIG,
// then the environment. Later sources win.
func Load() (Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	cfg := Default()
	if path := os.Getenv("GUIDESEG_CONFIG"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return cfg, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setString(&c.DatabaseDriver, fc.Database.Driver)
	setString(&c.DatabaseURL, fc.Database.URL)
	setInt(&c.WorkerCount, fc.Workers.Count)
	setInt(&c.MaxQueueSize, fc.Workers.QueueSize)
	setInt(&c.PackWorkers, fc.Workers.PackWorkers)
	setInt(&c.PersistBatch, fc.Workers.PersistBatch)
	setInt(&c.Chunking.MinTarget, fc.Chunking.ParentMinTokens)
	setInt(&c.Chunking.SoftTarget, fc.Chunking.ParentTargetTokens)
	setInt(&c.Chunking.HardMax, fc.Chunking.ParentMaxTokens)
	setInt(&c.Chunking.ChildTarget, fc.Chunking.ChildTargetTokens)
	setInt(&c.Chunking.ChildHardMax, fc.Chunking.ChildMaxTokens)
	if fc.Chunking.ChildTolerance > 0 {
		c.Chunking.ChildTolerance = fc.Chunking.ChildTolerance
	}
	setInt(&c.TOCScanPages, fc.Extraction.TOCScanPages)
	setInt(&c.MaxHeadingDepth, fc.Extraction.MaxHeadingDepth)
	setInt(&c.FallbackSpan, fc.Extraction.FallbackSpan)
	if fc.Extraction.HeadingBoundaries != nil {
		c.HeadingBoundaries = *fc.Extraction.HeadingBoundaries
	}
	c.Vocabulary = append(c.Vocabulary, fc.Vocabulary...)
	c.ConfigPath = path
	return nil
}

func (c *Config) applyEnv() {
	c.Port = envOr("PORT", c.Port)
	c.APIKey = envOr("GUIDESEG_API_KEY", c.APIKey)

	c.DatabaseDriver = envOr("DATABASE_DRIVER", c.DatabaseDriver)
	c.DatabaseURL = envOr("DATABASE_URL", c.DatabaseURL)

	c.WorkerCount = envInt("WORKER_COUNT", c.WorkerCount)
	c.MaxQueueSize = envInt("MAX_QUEUE_SIZE", c.MaxQueueSize)
	c.PackWorkers = envInt("PACK_WORKERS", c.PackWorkers)
	c.PersistBatch = envInt("PERSIST_BATCH", c.PersistBatch)

	c.MaxUploadBytes = envInt64("MAX_UPLOAD_BYTES", c.MaxUploadBytes)
	c.JobTTL = envDuration("JOB_TTL", c.JobTTL)

	c.Chunking.MinTarget = envInt("PARENT_MIN_TOKENS", c.Chunking.MinTarget)
	c.Chunking.SoftTarget = envInt("PARENT_TARGET_TOKENS", c.Chunking.SoftTarget)
	c.Chunking.HardMax = envInt("PARENT_MAX_TOKENS", c.Chunking.HardMax)
	c.Chunking.ChildTarget = envInt("CHILD_TARGET_TOKENS", c.Chunking.ChildTarget)
	c.Chunking.ChildTolerance = envFloat("CHILD_TOLERANCE", c.Chunking.ChildTolerance)
	c.Chunking.ChildHardMax = envInt("CHILD_MAX_TOKENS", c.Chunking.ChildHardMax)

	c.TOCScanPages = envInt("TOC_SCAN_PAGES", c.TOCScanPages)
	c.MaxHeadingDepth = envInt("MAX_HEADING_DEPTH", c.MaxHeadingDepth)
	c.FallbackSpan = envInt("FALLBACK_SPAN", c.FallbackSpan)
	c.HeadingBoundaries = envBool("HEADING_BOUNDARIES", c.HeadingBoundaries)

	c.PDFFallbackPdftotext = envBool("PDF_FALLBACK_PDFTOTEXT", c.PDFFallbackPdftotext)
}

// Validate checks the settings every command needs.
func (c Config) Validate() error {
	var errs []error
	switch c.DatabaseDriver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("DATABASE_DRIVER must be sqlite or postgres, got %q", c.DatabaseDriver))
	}
	if c.DatabaseDriver == "postgres" && !strings.Contains(c.DatabaseURL, "://") {
		errs = append(errs, errors.New("DATABASE_URL must be a postgres:// URL"))
	}
	for name, v := range map[string]int{
		"WORKER_COUNT":      c.WorkerCount,
		"MAX_QUEUE_SIZE":    c.MaxQueueSize,
		"PACK_WORKERS":      c.PackWorkers,
		"PERSIST_BATCH":     c.PersistBatch,
		"TOC_SCAN_PAGES":    c.TOCScanPages,
		"MAX_HEADING_DEPTH": c.MaxHeadingDepth,
		"FALLBACK_SPAN":     c.FallbackSpan,
	} {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", name, v))
		}
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", c.MaxUploadBytes))
	}
	if err := c.Chunking.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
