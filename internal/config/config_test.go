package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("GUIDESEG_CONFIG", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Chunking.SoftTarget != 1500 || cfg.Chunking.HardMax != 2000 || cfg.PersistBatch != 10 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if !cfg.HeadingBoundaries {
		t.Error("heading boundaries should be on by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guideseg.yaml")
	yaml := `
database:
  driver: postgres
  url: postgres://localhost/guideseg
workers:
  pack_workers: 8
chunking:
  parent_target_tokens: 1200
  parent_max_tokens: 1800
extraction:
  toc_scan_pages: 30
  heading_boundaries: false
vocabulary:
  - Contraindications
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GUIDESEG_CONFIG", path)
	t.Setenv("PARENT_MAX_TOKENS", "1900")
	t.Setenv("JOB_TTL", "10m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DatabaseDriver != "postgres" || cfg.PackWorkers != 8 || cfg.TOCScanPages != 30 {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.HeadingBoundaries {
		t.Error("heading_boundaries: false not applied")
	}
	if cfg.Chunking.SoftTarget != 1200 {
		t.Errorf("SoftTarget = %d, want 1200", cfg.Chunking.SoftTarget)
	}
	if cfg.Chunking.HardMax != 1900 {
		t.Errorf("env should override file: HardMax = %d", cfg.Chunking.HardMax)
	}
	if cfg.JobTTL != 10*time.Minute {
		t.Errorf("JobTTL = %v", cfg.JobTTL)
	}
	if len(cfg.Vocabulary) != 1 || cfg.ConfigPath != path {
		t.Errorf("vocabulary or path not recorded: %v %q", cfg.Vocabulary, cfg.ConfigPath)
	}
}

func TestLoad_BadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("workers: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GUIDESEG_CONFIG", path)
	if _, err := Load(); err == nil {
		t.Fatal("expected parse error")
	}

	t.Setenv("GUIDESEG_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Fatal("expected read error")
	}
}

func TestEnvHelpers_IgnoreGarbage(t *testing.T) {
	t.Setenv("WORKER_COUNT", "many")
	t.Setenv("PDF_FALLBACK_PDFTOTEXT", "nope")
	if got := envInt("WORKER_COUNT", 3); got != 3 {
		t.Errorf("envInt = %d, want fallback 3", got)
	}
	if got := envBool("PDF_FALLBACK_PDFTOTEXT", true); !got {
		t.Error("envBool should fall back on garbage")
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.DatabaseDriver = "mysql"
	cfg.PackWorkers = 0
	cfg.Chunking.HardMax = 10
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"DATABASE_DRIVER", "PACK_WORKERS"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q should mention %s", err, want)
		}
	}
}
